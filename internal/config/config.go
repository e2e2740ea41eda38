package config

import (
	"fmt"
	"time"

	"storyboard-server/shared/utils"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит конфигурацию планировщика кадров.
type Config struct {
	// Настройки AI (OpenAI-совместимый endpoint, например OpenRouter)
	AIBaseURL        string        `envconfig:"AI_BASE_URL" default:"https://openrouter.ai/api/v1"`
	AIModel          string        `envconfig:"AI_MODEL" default:"deepseek/deepseek-chat"`
	AITimeout        time.Duration `envconfig:"AI_TIMEOUT" default:"120s"`
	AIMaxAttempts    int           `envconfig:"AI_MAX_ATTEMPTS" default:"3"`
	AIBaseRetryDelay time.Duration `envconfig:"AI_BASE_RETRY_DELAY" default:"1s"`
	AIMaxTokens      int           `envconfig:"AI_MAX_TOKENS" default:"4096"`
	AITemperature    float64       `envconfig:"AI_TEMPERATURE" default:"0.7"`
	// Секретное поле БЕЗ envconfig тега
	AIAPIKey string

	// Настройки планирования
	// PlanningShotDuration - базовая длительность одного кадра в секундах.
	PlanningShotDuration float64 `envconfig:"PLANNING_SHOT_DURATION" default:"8"`
	// SceneDelay - пауза между сценами для соблюдения лимитов внешнего API.
	SceneDelay time.Duration `envconfig:"SCENE_DELAY" default:"1s"`
	// EnableQualityCheck - выключает цикл оценки/ремонта качества целиком.
	EnableQualityCheck bool `envconfig:"ENABLE_QUALITY_CHECK" default:"true"`
	// ArtDirectionSeed - глобальные правила визуальной консистентности,
	// попадают в промпты и в сигнатуру переиспользования.
	ArtDirectionSeed string `envconfig:"ART_DIRECTION_SEED" default:""`

	// Настройки логгера
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`
	LogFile     string `envconfig:"LOG_FILE" default:""`
}

// LoadConfig загружает конфигурацию из переменных окружения и секретов.
func LoadConfig() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	cfg.AIAPIKey, err = utils.ReadSecret("ai_api_key")
	if err != nil {
		return nil, err
	}

	if cfg.PlanningShotDuration <= 0 {
		return nil, fmt.Errorf("PLANNING_SHOT_DURATION должна быть положительной, получено %v", cfg.PlanningShotDuration)
	}
	if cfg.AIMaxAttempts < 1 {
		cfg.AIMaxAttempts = 1
	}

	return &cfg, nil
}
