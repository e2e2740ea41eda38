package model

// Scene описывает одну сцену сценария.
// Поля Location/Time/Atmosphere участвуют в сигнатуре переиспользования,
// поэтому считаются неизменяемой частью идентичности сцены.
type Scene struct {
	ID         string `json:"id"`
	Location   string `json:"location"`
	Time       string `json:"time"`
	Atmosphere string `json:"atmosphere"`
}

// StoryParagraph - абзац повествования. SceneRefID может отсутствовать
// или быть неоднозначным, тогда привязку определяет резолвер.
type StoryParagraph struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	SceneRefID string `json:"sceneRefId,omitempty"`
}

// Character - персонаж. Для планировщика важны только ID (идентичность)
// и Name (ключ нечеткого сопоставления при переиспользовании).
type Character struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Appearance  string `json:"appearance,omitempty"`
}

// Prop - реквизит сцены.
type Prop struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ScriptData - структурированные данные сценария, вход планировщика.
type ScriptData struct {
	Scenes          []Scene          `json:"scenes"`
	Characters      []Character      `json:"characters"`
	Props           []Prop           `json:"props"`
	StoryParagraphs []StoryParagraph `json:"storyParagraphs"`

	// TargetDuration - целевая длительность ролика в секундах.
	TargetDuration float64 `json:"targetDuration"`
	VisualStyle    string  `json:"visualStyle"`
	Language       string  `json:"language"`

	// PlanningShotDuration - базовая длительность одного кадра в секундах.
	// Фиксируется при первом расчете бюджета, чтобы смена активной
	// конфигурации генерации не меняла арифметику уже запущенного плана.
	PlanningShotDuration float64 `json:"planningShotDuration,omitempty"`
}
