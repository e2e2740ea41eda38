package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"storyboard-server/internal/config"

	"github.com/pkoukk/tiktoken-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrAIGenerationFailed - ошибка при генерации текста AI.
var ErrAIGenerationFailed = errors.New("ошибка генерации текста AI")

// GenerationParams - параметры генерации. Используем указатели,
// чтобы отличить 0/0.0 от отсутствия значения.
type GenerationParams struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
	// JSONObject - запросить response_format=json_object.
	// Вызывающий все равно обязан зачистить markdown-обертки перед парсингом.
	JSONObject bool
}

// AIClient - интерфейс для взаимодействия с AI API.
type AIClient interface {
	// GenerateText генерирует текст на основе системного промпта и ввода.
	// Ретраи с экспоненциальной задержкой выполняются внутри; наружу
	// отдается только финальный результат. Отмена контекста прерывает
	// и попытку, и ожидание между попытками.
	GenerateText(ctx context.Context, systemPrompt string, userInput string, params GenerationParams) (string, error)
}

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shot_planner_ai_requests_total",
			Help: "Total number of requests to the AI API.",
		},
		[]string{"model", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shot_planner_ai_request_duration_seconds",
			Help:    "Histogram of AI API request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)
	aiPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shot_planner_ai_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"model"},
	)
	aiCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shot_planner_ai_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(100, 100, 20),
		},
		[]string{"model"},
	)
)

// openAIClient реализует AIClient с использованием go-openai.
type openAIClient struct {
	client      *openaigo.Client
	model       string
	maxAttempts int
	baseDelay   time.Duration
	timeout     time.Duration
	logger      *zap.Logger
}

// NewAIClient создает клиент для OpenAI-совместимого endpoint'а
// (OpenAI, OpenRouter, локальный Ollama с /v1).
func NewAIClient(cfg *config.Config, log *zap.Logger) (AIClient, error) {
	if strings.TrimSpace(cfg.AIAPIKey) == "" {
		return nil, fmt.Errorf("AI API key пуст")
	}

	openaiConfig := openaigo.DefaultConfig(cfg.AIAPIKey)
	openaiConfig.BaseURL = cfg.AIBaseURL
	openaiConfig.HTTPClient = &http.Client{Timeout: cfg.AITimeout}
	client := openaigo.NewClientWithConfig(openaiConfig)

	log.Info("OpenAI клиент создан",
		zap.String("base_url", cfg.AIBaseURL),
		zap.String("model", cfg.AIModel),
		zap.Duration("timeout", cfg.AITimeout))

	return &openAIClient{
		client:      client,
		model:       cfg.AIModel,
		maxAttempts: cfg.AIMaxAttempts,
		baseDelay:   cfg.AIBaseRetryDelay,
		timeout:     cfg.AITimeout,
		logger:      log,
	}, nil
}

// GenerateText генерирует текст с ретраями на транспортные ошибки.
func (c *openAIClient) GenerateText(ctx context.Context, systemPrompt string, userInput string, params GenerationParams) (string, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", fmt.Errorf("%w: системный промпт пуст", ErrAIGenerationFailed)
	}

	// Оцениваем размер промпта до отправки; точные значения придут в Usage
	if estimated := c.estimateTokens(systemPrompt + userInput); estimated > 0 {
		c.logger.Debug("Оценка размера промпта",
			zap.String("model", c.model),
			zap.Int("estimated_prompt_tokens", estimated))
	}

	messages := []openaigo.ChatCompletionMessage{
		{
			Role:    openaigo.ChatMessageRoleSystem,
			Content: systemPrompt,
		},
	}
	if userInput != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{
			Role:    openaigo.ChatMessageRoleUser,
			Content: userInput,
		})
	}

	request := openaigo.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: float32Val(params.Temperature),
		MaxTokens:   intVal(params.MaxTokens),
		TopP:        float32Val(params.TopP),
	}
	if params.JSONObject {
		request.ResponseFormat = &openaigo.ChatCompletionResponseFormat{
			Type: openaigo.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			// Отмена приоритетнее любых накопленных ошибок
			return "", err
		}

		startTime := time.Now()
		resp, err := c.client.CreateChatCompletion(ctx, request)
		duration := time.Since(startTime)

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "cancelled"}).Inc()
				return "", ctxErr
			}
			lastErr = err
			aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
			c.logger.Warn("Ошибка от AI API",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", c.maxAttempts),
				zap.Duration("duration", duration),
				zap.Error(err))
			if attempt < c.maxAttempts {
				if waitErr := c.waitBeforeRetry(ctx, attempt); waitErr != nil {
					return "", waitErr
				}
			}
			continue
		}

		if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
			lastErr = fmt.Errorf("получен пустой ответ")
			aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_empty_response"}).Inc()
			c.logger.Warn("AI API вернул пустой ответ",
				zap.Int("attempt", attempt),
				zap.Duration("duration", duration))
			if attempt < c.maxAttempts {
				if waitErr := c.waitBeforeRetry(ctx, attempt); waitErr != nil {
					return "", waitErr
				}
			}
			continue
		}

		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success"}).Inc()
		aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())
		if resp.Usage.TotalTokens > 0 {
			aiPromptTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(resp.Usage.PromptTokens))
			aiCompletionTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(resp.Usage.CompletionTokens))
			c.logger.Debug("AI Usage",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
				zap.Int("total_tokens", resp.Usage.TotalTokens))
		}

		generatedText := resp.Choices[0].Message.Content
		c.logger.Debug("Ответ от AI API получен",
			zap.Duration("duration", duration),
			zap.Int("length", len(generatedText)))
		return generatedText, nil
	}

	return "", fmt.Errorf("%w: %v", ErrAIGenerationFailed, lastErr)
}

// waitBeforeRetry ждет перед следующей попыткой с экспоненциальной
// задержкой и джиттером. Отмена контекста прерывает ожидание.
func (c *openAIClient) waitBeforeRetry(ctx context.Context, attempt int) error {
	delay := float64(c.baseDelay) * math.Pow(2, float64(attempt-1))
	jitter := delay * 0.1
	delay += jitter * (rand.Float64()*2 - 1)
	waitDuration := time.Duration(delay)
	if waitDuration < c.baseDelay {
		waitDuration = c.baseDelay
	}
	c.logger.Debug("Ожидание перед следующей попыткой", zap.Duration("wait", waitDuration))

	timer := time.NewTimer(waitDuration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// estimateTokens оценивает число токенов промпта через tiktoken.
// При неизвестной модели возвращает 0 (оценка не критична).
func (c *openAIClient) estimateTokens(text string) int {
	tke, err := tiktoken.EncodingForModel(c.model)
	if err != nil {
		tke, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return 0
		}
	}
	return len(tke.Encode(text, nil, nil))
}

// float32Val конвертирует *float64 в float32 (0 = дефолт API).
func float32Val(f64 *float64) float32 {
	if f64 == nil {
		return 0
	}
	return float32(*f64)
}

// intVal конвертирует *int в int (0 = без лимита).
func intVal(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
