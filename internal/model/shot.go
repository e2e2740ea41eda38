package model

import "time"

// KeyframeType - тип ключевого кадра.
type KeyframeType string

const (
	KeyframeStart KeyframeType = "start"
	KeyframeEnd   KeyframeType = "end"
)

// KeyframeStatus - статус жизненного цикла ключевого кадра.
// Планировщик всегда выставляет только KeyframeStatusPending,
// остальные статусы проставляют внешние генераторы изображений.
type KeyframeStatus string

const (
	KeyframeStatusPending    KeyframeStatus = "pending"
	KeyframeStatusGenerating KeyframeStatus = "generating"
	KeyframeStatusCompleted  KeyframeStatus = "completed"
	KeyframeStatusFailed     KeyframeStatus = "failed"
)

// Keyframe - ключевой кадр (начальное или конечное состояние кадра).
type Keyframe struct {
	ID           string         `json:"id"`
	Type         KeyframeType   `json:"type"`
	VisualPrompt string         `json:"visualPrompt"`
	Status       KeyframeStatus `json:"status"`
}

// Grade - классификация кадра по взвешенной оценке качества.
type Grade string

const (
	GradePass    Grade = "pass"    // score >= 80
	GradeWarning Grade = "warning" // 60 <= score < 80
	GradeFail    Grade = "fail"    // score < 60
)

// QualityCheck - результат одной проверки качества.
// Details воспроизводимы из оценки: при одинаковых входных данных
// текст всегда одинаковый.
type QualityCheck struct {
	Key     string  `json:"key"`
	Label   string  `json:"label"`
	Score   int     `json:"score"` // [0,100]
	Weight  float64 `json:"weight"`
	Passed  bool    `json:"passed"` // score >= 70
	Details string  `json:"details"`
}

// ShotQualityAssessment - итоговая оценка качества кадра.
type ShotQualityAssessment struct {
	Version     int            `json:"version"`
	Score       int            `json:"score"` // взвешенное среднее, [0,100]
	Grade       Grade          `json:"grade"`
	GeneratedAt time.Time      `json:"generatedAt"`
	Checks      []QualityCheck `json:"checks"`
	Summary     string         `json:"summary"`
}

// Shot - один кадр раскадровки.
// Инвариант: Keyframes всегда содержит ровно два элемента,
// один type='start' и один type='end', оба с непустым VisualPrompt.
type Shot struct {
	ID             string                 `json:"id"`
	SceneID        string                 `json:"sceneId"`
	ActionSummary  string                 `json:"actionSummary"`
	Dialogue       string                 `json:"dialogue,omitempty"`
	CameraMovement string                 `json:"cameraMovement"`
	ShotSize       string                 `json:"shotSize"`
	Characters     []string               `json:"characters"`
	Props          []string               `json:"props"`
	Keyframes      []Keyframe             `json:"keyframes"`
	Quality        *ShotQualityAssessment `json:"qualityAssessment,omitempty"`
}

// Keyframe возвращает ключевой кадр заданного типа.
func (s *Shot) Keyframe(t KeyframeType) (*Keyframe, bool) {
	for i := range s.Keyframes {
		if s.Keyframes[i].Type == t {
			return &s.Keyframes[i], true
		}
	}
	return nil, false
}

// GradeForScore возвращает грейд как чистую функцию от оценки.
func GradeForScore(score int) Grade {
	switch {
	case score >= 80:
		return GradePass
	case score >= 60:
		return GradeWarning
	default:
		return GradeFail
	}
}
