package service

import "storyboard-server/internal/model"

// SceneSource - откуда взяты кадры сцены.
type SceneSource string

const (
	SceneSourceGenerated SceneSource = "generated" // внешняя генерация
	SceneSourceReused    SceneSource = "reused"    // попадание в кэш переиспользования
	SceneSourceFallback  SceneSource = "fallback"  // синтезированные кадры после сбоя
)

// SceneProgress - событие завершения обработки одной сцены.
type SceneProgress struct {
	SceneIndex int
	SceneID    string
	ShotCount  int
	Source     SceneSource
	ActionTier string
}

// ProgressObserver получает события хода планирования.
// Передается явно в вызов пайплайна вместо глобального колбэка.
type ProgressObserver interface {
	PipelineStarted(totalScenes int, totalShots int)
	SceneStarted(sceneIndex int, sceneID string)
	SceneCompleted(progress SceneProgress)
	PipelineCompleted(shots []model.Shot)
}

// NopObserver - наблюдатель, игнорирующий все события.
type NopObserver struct{}

func (NopObserver) PipelineStarted(totalScenes int, totalShots int) {}
func (NopObserver) SceneStarted(sceneIndex int, sceneID string)     {}
func (NopObserver) SceneCompleted(progress SceneProgress)           {}
func (NopObserver) PipelineCompleted(shots []model.Shot)            {}

var _ ProgressObserver = NopObserver{}
