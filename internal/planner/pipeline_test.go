package planner_test

import (
	"context"
	"errors"
	"testing"

	"storyboard-server/internal/config"
	"storyboard-server/internal/mocks"
	"storyboard-server/internal/model"
	"storyboard-server/internal/planner"
	"storyboard-server/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func pipelineConfig() *config.Config {
	return &config.Config{
		AIModel:              "test-model",
		AITemperature:        0.7,
		AIMaxTokens:          2048,
		PlanningShotDuration: 8,
		SceneDelay:           0,
		EnableQualityCheck:   true,
	}
}

// singleSceneScript: бюджет = max(round(16/8), 1) = 2 кадра.
func singleSceneScript() *model.ScriptData {
	return &model.ScriptData{
		Scenes: []model.Scene{{ID: "s1", Location: "码头", Time: "黄昏", Atmosphere: "喧闹"}},
		StoryParagraphs: []model.StoryParagraph{
			{ID: "p1", Text: "李伟穿过黄昏的码头集市。", SceneRefID: "s1"},
		},
		Characters:           []model.Character{{ID: "c1", Name: "李伟"}},
		Props:                []model.Prop{{ID: "pr1", Name: "灯笼"}},
		TargetDuration:       16,
		VisualStyle:          "水彩",
		Language:             "zh",
		PlanningShotDuration: 8,
	}
}

func TestPlan_EndToEnd(t *testing.T) {
	mockAI := mocks.NewMockAIClient(t)
	mockAI.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(twoShotsJSON, nil).Once()

	observer := mocks.NewMockProgressObserver(t)
	observer.On("PipelineStarted", 1, 2).Once()
	observer.On("SceneStarted", 0, "s1").Once()
	observer.On("SceneCompleted", mock.MatchedBy(func(p service.SceneProgress) bool {
		return p.SceneID == "s1" && p.ShotCount == 2 && p.Source == service.SceneSourceGenerated
	})).Once()
	observer.On("PipelineCompleted", mock.Anything).Once()

	p := planner.New(pipelineConfig(), mockAI, zap.NewNop())
	shots, err := p.Plan(context.Background(), singleSceneScript(), planner.Options{Observer: observer})

	require.NoError(t, err)
	require.Len(t, shots, 2)
	assert.Equal(t, "shot_001", shots[0].ID)
	assert.Equal(t, "shot_002", shots[1].ID)
	require.NotNil(t, shots[0].Quality)
	assert.NotZero(t, shots[0].Quality.Score)
	mockAI.AssertExpectations(t)
	observer.AssertExpectations(t)
}

func TestPlan_SceneFailureBecomesFallback(t *testing.T) {
	// 3 сцены, 60 секунд по 8: бюджеты [3 3 2]
	script := &model.ScriptData{
		Scenes: []model.Scene{
			{ID: "s1", Location: "码头"},
			{ID: "s2", Location: "小巷"},
			{ID: "s3", Location: "屋顶"},
		},
		TargetDuration:       60,
		PlanningShotDuration: 8,
		VisualStyle:          "水彩",
	}

	mockAI := mocks.NewMockAIClient(t)
	// Транспорт лежит целиком: каждая сцена делает основной запрос
	mockAI.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("сбой транспорта"))

	p := planner.New(pipelineConfig(), mockAI, zap.NewNop())
	shots, err := p.Plan(context.Background(), script, planner.Options{})

	require.NoError(t, err)
	require.Len(t, shots, 8)
	assert.Equal(t, "shot_001", shots[0].ID)
	assert.Equal(t, "shot_008", shots[7].ID)

	counts := map[string]int{}
	for _, s := range shots {
		counts[s.SceneID]++
	}
	assert.Equal(t, map[string]int{"s1": 3, "s2": 3, "s3": 2}, counts)
}

func TestPlan_NoScenes(t *testing.T) {
	p := planner.New(pipelineConfig(), mocks.NewMockAIClient(t), zap.NewNop())
	_, err := p.Plan(context.Background(), &model.ScriptData{}, planner.Options{})
	assert.ErrorIs(t, err, planner.ErrNoScenes)
}

func TestPlan_CancelledContext(t *testing.T) {
	mockAI := mocks.NewMockAIClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := planner.New(pipelineConfig(), mockAI, zap.NewNop())
	_, err := p.Plan(ctx, singleSceneScript(), planner.Options{})

	assert.ErrorIs(t, err, context.Canceled)
	mockAI.AssertNotCalled(t, "GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPlan_ReusesPreviousRun(t *testing.T) {
	cfg := pipelineConfig()
	cfg.EnableQualityCheck = false

	mockAI := mocks.NewMockAIClient(t)
	mockAI.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(twoShotsJSON, nil).Once()

	p := planner.New(cfg, mockAI, zap.NewNop())
	first, err := p.Plan(context.Background(), singleSceneScript(), planner.Options{})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Nil(t, first[0].Quality) // проверка качества выключена
	mockAI.AssertExpectations(t)

	// Повторный запуск того же сценария: все сцены из кэша, без
	// единого обращения к внешнему коллаборатору
	silentAI := mocks.NewMockAIClient(t)
	second, err := planner.New(cfg, silentAI, zap.NewNop()).
		Plan(context.Background(), singleSceneScript(), planner.Options{
			PreviousScript: singleSceneScript(),
			PreviousShots:  first,
		})
	require.NoError(t, err)
	require.Len(t, second, 2)
	silentAI.AssertNotCalled(t, "GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	for i := range second {
		assert.Equal(t, first[i].ActionSummary, second[i].ActionSummary)
		require.Len(t, second[i].Keyframes, 2)
		assert.Equal(t, first[i].Keyframes[0].VisualPrompt, second[i].Keyframes[0].VisualPrompt)
		assert.Equal(t, first[i].Keyframes[1].VisualPrompt, second[i].Keyframes[1].VisualPrompt)
	}
	assert.Equal(t, "shot_001", second[0].ID)
}

func TestPlan_ChangedSceneIsRegenerated(t *testing.T) {
	cfg := pipelineConfig()
	cfg.EnableQualityCheck = false

	mockAI := mocks.NewMockAIClient(t)
	mockAI.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(twoShotsJSON, nil).Once()

	p := planner.New(cfg, mockAI, zap.NewNop())
	first, err := p.Plan(context.Background(), singleSceneScript(), planner.Options{})
	require.NoError(t, err)

	// Смена атмосферы меняет сигнатуру сцены: кэш мимо, генерация заново
	changed := singleSceneScript()
	changed.Scenes[0].Atmosphere = "寂静"

	regenAI := mocks.NewMockAIClient(t)
	regenAI.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(twoShotsJSON, nil).Once()

	second, err := planner.New(cfg, regenAI, zap.NewNop()).
		Plan(context.Background(), changed, planner.Options{
			PreviousScript: singleSceneScript(),
			PreviousShots:  first,
		})
	require.NoError(t, err)
	require.Len(t, second, 2)
	regenAI.AssertExpectations(t)
}
