package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"storyboard-server/internal/config"
	"storyboard-server/internal/model"
	"storyboard-server/internal/service"
	"storyboard-server/shared/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Дефолты для кадров, у которых генерация не заполнила поля.
const (
	DefaultCameraMovement = "Static Shot"
	DefaultShotSize       = "Medium Shot"
)

// systemPrompt - инструкции раскадровщика. Контракт: строго JSON-объект
// с массивом shots ровно указанной длины.
const systemPrompt = `You are a professional storyboard director. Based on the scene description and narrative text, plan a list of shots for video generation.

Respond with a single JSON object of the form:
{"shots": [{"actionSummary": "...", "dialogue": "...", "cameraMovement": "...", "shotSize": "...", "characters": ["id"], "props": ["id"], "keyframes": [{"type": "start", "visualPrompt": "..."}, {"type": "end", "visualPrompt": "..."}]}]}

Rules:
- The "shots" array MUST contain EXACTLY the requested number of shots.
- "characters" and "props" MUST only reference ids from the provided catalogs.
- Every shot MUST have exactly two keyframes: one "start" and one "end", each with a rich visualPrompt.
- Write visualPrompt in the language of the script and include the visual style.
- Do not output anything except the JSON object.`

// repairPromptPrefix - префикс корректирующего запроса при нарушении
// контракта точного количества.
const repairPromptPrefix = "Your previous answer contained %d shots, but EXACTLY %d are required. Regenerate the full JSON object with exactly %d shots.\n\n"

// Generator строит запрос генерации кадров для сцены и следит
// за контрактом точного количества.
type Generator struct {
	cfg    *config.Config
	ai     service.AIClient
	logger *zap.Logger
}

// NewGenerator создает генератор кандидатов кадров.
func NewGenerator(cfg *config.Config, ai service.AIClient, log *zap.Logger) *Generator {
	return &Generator{cfg: cfg, ai: ai, logger: log}
}

type keyframePayload struct {
	Type         string `json:"type"`
	VisualPrompt string `json:"visualPrompt"`
}

type shotPayload struct {
	ActionSummary  string            `json:"actionSummary"`
	Dialogue       string            `json:"dialogue"`
	CameraMovement string            `json:"cameraMovement"`
	ShotSize       string            `json:"shotSize"`
	Characters     []string          `json:"characters"`
	Props          []string          `json:"props"`
	Keyframes      []keyframePayload `json:"keyframes"`
}

type shotsResponse struct {
	Shots []shotPayload `json:"shots"`
}

// GenerateShots запрашивает у внешнего коллаборатора ровно count кадров
// для сцены. Постусловие: при nil-ошибке возвращается ровно count кадров.
// Ошибка возвращается только при полном сбое (транспорт/непарсибельный
// ответ) или отмене контекста - решение о фолбэке принимает вызывающий.
func (g *Generator) GenerateShots(ctx context.Context, scene model.Scene, action string, count int, script *model.ScriptData) ([]model.Shot, error) {
	userInput := g.buildUserInput(scene, action, count, script)

	raw, err := g.ai.GenerateText(ctx, systemPrompt, userInput, g.generationParams())
	if err != nil {
		return nil, err
	}

	payloads, parseErr := parseShots(raw)
	if parseErr != nil {
		g.logger.Warn("Непарсибельный ответ генерации",
			zap.String("scene_id", scene.ID),
			zap.String("raw", utils.StringShort(raw, 300)),
			zap.Error(parseErr))
		return nil, parseErr
	}

	// Контракт точного количества: один корректирующий запрос,
	// после него принимаем что есть
	if len(payloads) != count {
		g.logger.Warn("Нарушен контракт количества кадров, корректирующий запрос",
			zap.String("scene_id", scene.ID),
			zap.Int("expected", count),
			zap.Int("got", len(payloads)))

		repairInput := fmt.Sprintf(repairPromptPrefix, len(payloads), count, count) + userInput
		repairRaw, repairErr := g.ai.GenerateText(ctx, systemPrompt, repairInput, g.generationParams())
		if repairErr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			g.logger.Warn("Корректирующий запрос не удался, принимаем первый ответ",
				zap.String("scene_id", scene.ID), zap.Error(repairErr))
		} else if repaired, err := parseShots(repairRaw); err == nil {
			payloads = repaired
		}
	}

	shots := make([]model.Shot, 0, count)
	for _, p := range payloads {
		shots = append(shots, payloadToShot(p, scene.ID))
	}

	// Избыток: оставляем самые ранние
	if len(shots) > count {
		shots = shots[:count]
	}

	// Недостаток: синтезируем филлеры от последнего реального кадра
	if len(shots) > 0 && len(shots) < count {
		seed := shots[len(shots)-1]
		for seq := 1; len(shots) < count; seq++ {
			shots = append(shots, fillerShot(seed, seq))
		}
	}

	// Ноль результатов (например, пропавший ключ shots) - полный фолбэк
	if len(shots) == 0 {
		shots = FallbackShots(scene, action, count)
	}

	NormalizeShots(shots, scene.ID, script)
	return shots, nil
}

func (g *Generator) generationParams() service.GenerationParams {
	temperature := g.cfg.AITemperature
	maxTokens := g.cfg.AIMaxTokens
	return service.GenerationParams{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		JSONObject:  true,
	}
}

// buildUserInput собирает контекст сцены: метаданные, разрешенный текст
// повествования, каталоги персонажей/реквизита, стиль и длительность.
func (g *Generator) buildUserInput(scene model.Scene, action string, count int, script *model.ScriptData) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Scene: %s\nLocation: %s\nTime: %s\nAtmosphere: %s\n", scene.ID, scene.Location, scene.Time, scene.Atmosphere)
	fmt.Fprintf(&sb, "Required shot count: %d\n", count)
	fmt.Fprintf(&sb, "Shot duration: %.0f seconds each\n", script.PlanningShotDuration)
	fmt.Fprintf(&sb, "Visual style: %s\n", script.VisualStyle)
	fmt.Fprintf(&sb, "Language: %s\n", script.Language)
	if g.cfg.ArtDirectionSeed != "" {
		fmt.Fprintf(&sb, "Art direction: %s\n", g.cfg.ArtDirectionSeed)
	}

	sb.WriteString("\nCharacters:\n")
	for _, c := range script.Characters {
		fmt.Fprintf(&sb, "- id=%s name=%s", c.ID, c.Name)
		if c.Appearance != "" {
			fmt.Fprintf(&sb, " appearance=%s", c.Appearance)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\nProps:\n")
	for _, p := range script.Props {
		fmt.Fprintf(&sb, "- id=%s name=%s\n", p.ID, p.Name)
	}

	sb.WriteString("\nNarrative:\n")
	if strings.TrimSpace(action) != "" {
		sb.WriteString(action)
	} else {
		sb.WriteString("(no narrative text; plan shots from the scene metadata)")
	}

	return sb.String()
}

// parseShots извлекает JSON из сырого ответа и разбирает объект shots.
// Отсутствующий ключ shots - ноль результатов, а не ошибка.
func parseShots(raw string) ([]shotPayload, error) {
	content := utils.ExtractJsonContent(raw)
	if content == "" {
		return nil, fmt.Errorf("в ответе не найден JSON")
	}
	var resp shotsResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return nil, fmt.Errorf("ошибка парсинга ответа генерации: %w", err)
	}
	return resp.Shots, nil
}

func payloadToShot(p shotPayload, sceneID string) model.Shot {
	shot := model.Shot{
		ID:             uuid.NewString(),
		SceneID:        sceneID,
		ActionSummary:  strings.TrimSpace(p.ActionSummary),
		Dialogue:       strings.TrimSpace(p.Dialogue),
		CameraMovement: strings.TrimSpace(p.CameraMovement),
		ShotSize:       strings.TrimSpace(p.ShotSize),
		Characters:     p.Characters,
		Props:          p.Props,
	}
	for _, kf := range p.Keyframes {
		shot.Keyframes = append(shot.Keyframes, model.Keyframe{
			Type:         model.KeyframeType(strings.ToLower(strings.TrimSpace(kf.Type))),
			VisualPrompt: strings.TrimSpace(kf.VisualPrompt),
		})
	}
	return shot
}

// fillerShot синтезирует кадр-наполнитель от реального кадра-затравки:
// те же камера, крупность и ссылки, действие с маркером продолжения.
func fillerShot(seed model.Shot, seq int) model.Shot {
	return model.Shot{
		ID:             uuid.NewString(),
		SceneID:        seed.SceneID,
		ActionSummary:  fmt.Sprintf("%s（续%d）", seed.ActionSummary, seq),
		CameraMovement: seed.CameraMovement,
		ShotSize:       seed.ShotSize,
		Characters:     append([]string(nil), seed.Characters...),
		Props:          append([]string(nil), seed.Props...),
	}
}

// FallbackShots синтезирует все кадры сцены из одних метаданных.
// Используется при полном сбое генерации, чтобы пайплайн всегда
// выдавал ровно запланированное число кадров.
func FallbackShots(scene model.Scene, action string, count int) []model.Shot {
	base := strings.TrimSpace(action)
	if base == "" {
		base = strings.TrimSpace(fmt.Sprintf("%s，%s，%s", scene.Location, scene.Time, scene.Atmosphere))
	}
	// Для длинного повествования берем только начало - это затравка
	// для промптов, а не сам текст
	base = utils.StringShort(base, 120)

	shots := make([]model.Shot, 0, count)
	for i := 0; i < count; i++ {
		shots = append(shots, model.Shot{
			ID:             uuid.NewString(),
			SceneID:        scene.ID,
			ActionSummary:  fmt.Sprintf("%s（镜头%d）", base, i+1),
			CameraMovement: DefaultCameraMovement,
			ShotSize:       DefaultShotSize,
		})
	}
	return shots
}
