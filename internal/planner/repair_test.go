package planner_test

import (
	"testing"

	"storyboard-server/internal/model"
	"storyboard-server/internal/planner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func repairScript() *model.ScriptData {
	return &model.ScriptData{
		Scenes:      []model.Scene{{ID: "s1", Location: "码头", Time: "黄昏", Atmosphere: "喧闹"}},
		VisualStyle: "水彩",
		Characters:  []model.Character{{ID: "c1", Name: "李伟"}},
	}
}

func TestRunQualityLoop_RepairsDegenerateShot(t *testing.T) {
	script := repairScript()
	shots := []model.Shot{{ID: "shot_001", SceneID: "s1", Characters: []string{"ghost"}}}

	planner.RunQualityLoop(shots, script, zap.NewNop())

	repaired := shots[0]
	assert.Equal(t, "码头，第1镜", repaired.ActionSummary)
	assert.Equal(t, planner.DefaultCameraMovement, repaired.CameraMovement)
	assert.Equal(t, planner.DefaultShotSize, repaired.ShotSize)
	assert.Empty(t, repaired.Characters)

	require.Len(t, repaired.Keyframes, 2)
	assert.Equal(t, "码头，第1镜，起始状态，水彩风格", repaired.Keyframes[0].VisualPrompt)
	assert.Equal(t, "码头，第1镜，结束状态，水彩风格", repaired.Keyframes[1].VisualPrompt)

	// Финальная оценка прикрепляется даже после ремонта
	require.NotNil(t, repaired.Quality)
	assert.NotZero(t, repaired.Quality.Score)
}

func TestRunQualityLoop_DeduplicatesRepeatedAction(t *testing.T) {
	script := repairScript()
	good := richShot("雨夜街头追逐戏", "Pan Left", "Wide Shot")
	good.ID = "shot_001"
	broken := model.Shot{
		ID:            "shot_002",
		SceneID:       "s1",
		ActionSummary: "雨夜街头追逐戏",
	}
	shots := []model.Shot{good, broken}

	planner.RunQualityLoop(shots, script, zap.NewNop())

	// Первый кадр полноценный и ремонту не подлежит
	assert.Equal(t, "雨夜街头追逐戏", shots[0].ActionSummary)
	assert.Equal(t, "Pan Left", shots[0].CameraMovement)

	// Второй отремонтирован: суффикс против повтора, дефолты камеры
	assert.Equal(t, "雨夜街头追逐戏（镜头2）", shots[1].ActionSummary)
	assert.Equal(t, planner.DefaultCameraMovement, shots[1].CameraMovement)
	assert.Equal(t, planner.DefaultShotSize, shots[1].ShotSize)
	require.Len(t, shots[1].Keyframes, 2)
	assert.Equal(t, "雨夜街头追逐戏（镜头2），起始状态，水彩风格", shots[1].Keyframes[0].VisualPrompt)
}

func TestRepairShot_Idempotent(t *testing.T) {
	script := repairScript()
	shot := model.Shot{ID: "shot_001", SceneID: "s1"}
	opts := planner.RepairOptions{ForcePromptRewrite: true}

	planner.RepairShot(&shot, 0, nil, script, opts)
	first := shot

	planner.RepairShot(&shot, 0, nil, script, opts)
	assert.Equal(t, first, shot)
}
