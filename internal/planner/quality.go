package planner

import (
	"fmt"
	"math"
	"strings"
	"time"

	"storyboard-server/internal/model"
)

// AssessmentVersion - версия рубрики оценки качества.
const AssessmentVersion = 1

// Порог, начиная с которого отдельная проверка считается пройденной.
const checkPassScore = 70

// assessInput - входные данные одной проверки.
type assessInput struct {
	shot  *model.Shot
	prev  *model.Shot // предыдущий кадр той же сцены, nil для первого
	chars map[string]struct{}
	props map[string]struct{}
	style string
}

// qualityCheckSpec - одна проверка рубрики. score возвращает сырую
// оценку (может выйти за [0,100], например штрафы вариативности)
// и детерминированное текстовое обоснование.
type qualityCheckSpec struct {
	key    string
	label  string
	weight float64
	score  func(in assessInput) (float64, string)
}

// Рубрика - упорядоченный список проверок; агрегация не зависит
// от их состава, проверки можно добавлять и убирать независимо.
var qualityChecks = []qualityCheckSpec{
	{key: "required_fields", label: "Required Fields", weight: 0.30, score: scoreRequiredFields},
	{key: "keyframe_structure", label: "Keyframe Structure", weight: 0.25, score: scoreKeyframeStructure},
	{key: "asset_reference", label: "Asset Reference", weight: 0.20, score: scoreAssetReference},
	{key: "scene_variation", label: "Scene Variation", weight: 0.15, score: scoreSceneVariation},
	{key: "prompt_richness", label: "Prompt Richness", weight: 0.10, score: scorePromptRichness},
}

// AssessShot оценивает кадр по взвешенной рубрике.
// prev - непосредственно предыдущий кадр той же сцены (nil, если кадр
// первый в сцене); кадры разных сцен независимы.
func AssessShot(shot *model.Shot, prev *model.Shot, script *model.ScriptData) model.ShotQualityAssessment {
	in := assessInput{
		shot:  shot,
		prev:  prev,
		chars: characterIDSet(script),
		props: propIDSet(script),
		style: script.VisualStyle,
	}

	checks := make([]model.QualityCheck, 0, len(qualityChecks))
	weightedSum := 0.0
	var failedLabels []string

	for _, spec := range qualityChecks {
		raw, details := spec.score(in)
		// Сырая оценка участвует во взвешенной сумме как есть
		// (в том числе отрицательная); в данных храним [0,100]
		weightedSum += spec.weight * raw
		stored := int(math.Round(clamp(raw, 0, 100)))
		passed := stored >= checkPassScore
		if !passed {
			failedLabels = append(failedLabels, spec.label)
		}
		checks = append(checks, model.QualityCheck{
			Key:     spec.key,
			Label:   spec.label,
			Score:   stored,
			Weight:  spec.weight,
			Passed:  passed,
			Details: details,
		})
	}

	score := int(math.Round(clamp(weightedSum, 0, 100)))

	summary := "All quality checks passed"
	if len(failedLabels) > 0 {
		summary = "Checks below threshold: " + strings.Join(failedLabels, ", ")
	}

	return model.ShotQualityAssessment{
		Version:     AssessmentVersion,
		Score:       score,
		Grade:       model.GradeForScore(score),
		GeneratedAt: time.Now().UTC(),
		Checks:      checks,
		Summary:     summary,
	}
}

// scoreRequiredFields: описание действия (45/20/0) + движение камеры (30)
// + крупность плана (25).
func scoreRequiredFields(in assessInput) (float64, string) {
	actionLen := normalizedRuneLen(in.shot.ActionSummary)
	score := 0.0
	switch {
	case actionLen >= 6:
		score += 45
	case actionLen > 0:
		score += 20
	}
	hasCamera := strings.TrimSpace(in.shot.CameraMovement) != ""
	hasSize := strings.TrimSpace(in.shot.ShotSize) != ""
	if hasCamera {
		score += 30
	}
	if hasSize {
		score += 25
	}
	return score, fmt.Sprintf("action=%d chars, camera=%t, shotSize=%t", actionLen, hasCamera, hasSize)
}

// scoreKeyframeStructure: наличие start/end кадров (по 30) и
// содержательность их промптов (по 20/10/0).
func scoreKeyframeStructure(in assessInput) (float64, string) {
	score := 0.0
	startLen, endLen := -1, -1

	if kf, ok := in.shot.Keyframe(model.KeyframeStart); ok {
		score += 30
		startLen = len([]rune(strings.TrimSpace(kf.VisualPrompt)))
		score += promptLengthPoints(startLen)
	}
	if kf, ok := in.shot.Keyframe(model.KeyframeEnd); ok {
		score += 30
		endLen = len([]rune(strings.TrimSpace(kf.VisualPrompt)))
		score += promptLengthPoints(endLen)
	}
	return score, fmt.Sprintf("start=%d chars, end=%d chars", startLen, endLen)
}

func promptLengthPoints(runeLen int) float64 {
	switch {
	case runeLen >= 14:
		return 20
	case runeLen > 0:
		return 10
	default:
		return 0
	}
}

// scoreAssetReference: 100 без ссылок, иначе 82 минус штрафы
// за каждую невалидную ссылку; не ниже 0.
func scoreAssetReference(in assessInput) (float64, string) {
	total := len(in.shot.Characters) + len(in.shot.Props)
	if total == 0 {
		return 100, "no asset references"
	}
	invalidChars := 0
	for _, id := range in.shot.Characters {
		if _, ok := in.chars[id]; !ok {
			invalidChars++
		}
	}
	invalidProps := 0
	for _, id := range in.shot.Props {
		if _, ok := in.props[id]; !ok {
			invalidProps++
		}
	}
	score := 82.0 - 45.0*float64(invalidChars) - 30.0*float64(invalidProps)
	if score < 0 {
		score = 0
	}
	return score, fmt.Sprintf("refs=%d, invalid characters=%d, invalid props=%d", total, invalidChars, invalidProps)
}

// scoreSceneVariation: сравнение с предыдущим кадром той же сцены.
// Сырая оценка может уйти в минус - агрегат все равно зажимается.
func scoreSceneVariation(in assessInput) (float64, string) {
	if in.prev == nil {
		return 88, "first shot of the scene"
	}
	score := 100.0
	var penalties []string
	if normalizeText(in.shot.ActionSummary) == normalizeText(in.prev.ActionSummary) {
		score -= 55
		penalties = append(penalties, "identical action")
	}
	if in.shot.CameraMovement == in.prev.CameraMovement {
		score -= 20
		penalties = append(penalties, "same camera")
	}
	if in.shot.ShotSize == in.prev.ShotSize {
		score -= 20
		penalties = append(penalties, "same shot size")
	}
	if len(penalties) == 0 {
		return score, "distinct from previous shot"
	}
	return score, strings.Join(penalties, ", ")
}

// scorePromptRichness: средняя длина промптов ключевых кадров
// плюс бонус за буквальное вхождение визуального стиля.
func scorePromptRichness(in assessInput) (float64, string) {
	startLen, endLen := 0, 0
	var combined strings.Builder
	if kf, ok := in.shot.Keyframe(model.KeyframeStart); ok {
		startLen = len([]rune(kf.VisualPrompt))
		combined.WriteString(kf.VisualPrompt)
	}
	if kf, ok := in.shot.Keyframe(model.KeyframeEnd); ok {
		endLen = len([]rune(kf.VisualPrompt))
		combined.WriteString(kf.VisualPrompt)
	}
	avg := float64(startLen+endLen) / 2.0

	var score float64
	switch {
	case avg >= 60:
		score = 100
	case avg >= 35:
		score = 82
	case avg >= 20:
		score = 65
	default:
		score = 35
	}

	styleHit := in.style != "" && strings.Contains(combined.String(), in.style)
	if styleHit {
		score += 8
		if score > 100 {
			score = 100
		}
	}
	return score, fmt.Sprintf("avg prompt=%.0f chars, style mentioned=%t", avg, styleHit)
}

// normalizedRuneLen - длина текста в рунах без пробельных символов.
func normalizedRuneLen(s string) int {
	return len([]rune(strings.Join(strings.Fields(s), "")))
}

// normalizeText - ключ сравнения текстов действия.
func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
