package planner_test

import (
	"testing"

	"storyboard-server/internal/model"
	"storyboard-server/internal/planner"

	"github.com/stretchr/testify/assert"
)

func normalizerScript() *model.ScriptData {
	return &model.ScriptData{
		VisualStyle: "水彩",
		Characters:  []model.Character{{ID: "c1", Name: "李伟"}},
		Props:       []model.Prop{{ID: "pr1", Name: "灯笼"}},
	}
}

func TestNormalizeShot_FillsMissingKeyframes(t *testing.T) {
	shot := model.Shot{ID: "x", ActionSummary: "雨夜追逐"}

	planner.NormalizeShot(&shot, normalizerScript())

	assert.Len(t, shot.Keyframes, 2)
	start, ok := shot.Keyframe(model.KeyframeStart)
	assert.True(t, ok)
	end, ok := shot.Keyframe(model.KeyframeEnd)
	assert.True(t, ok)

	assert.Equal(t, "雨夜追逐，起始状态，水彩风格", start.VisualPrompt)
	assert.Equal(t, "雨夜追逐，结束状态，水彩风格", end.VisualPrompt)
	assert.Equal(t, model.KeyframeStatusPending, start.Status)
	assert.Equal(t, model.KeyframeStatusPending, end.Status)
	assert.NotEmpty(t, start.ID)
	assert.NotEmpty(t, end.ID)
}

func TestNormalizeShot_KeepsExistingPrompts(t *testing.T) {
	shot := model.Shot{
		ID:            "x",
		ActionSummary: "雨夜追逐",
		Keyframes: []model.Keyframe{
			{Type: model.KeyframeStart, VisualPrompt: "已有起始промпт"},
			{Type: model.KeyframeEnd, VisualPrompt: "  "}, // пустой - заменяется
			{Type: model.KeyframeStart, VisualPrompt: "дубликат отбрасывается"},
		},
	}

	planner.NormalizeShot(&shot, normalizerScript())

	assert.Len(t, shot.Keyframes, 2)
	start, _ := shot.Keyframe(model.KeyframeStart)
	end, _ := shot.Keyframe(model.KeyframeEnd)
	assert.Equal(t, "已有起始промпт", start.VisualPrompt)
	assert.Equal(t, "雨夜追逐，结束状态，水彩风格", end.VisualPrompt)
}

func TestNormalizeShot_FiltersAssetReferences(t *testing.T) {
	shot := model.Shot{
		ID:         "x",
		Characters: []string{"c1", "c1", "missing"},
		Props:      []string{"pr1", "ghost"},
	}

	planner.NormalizeShot(&shot, normalizerScript())

	assert.Equal(t, []string{"c1"}, shot.Characters)
	assert.Equal(t, []string{"pr1"}, shot.Props)
}

func TestNormalizeShots_AssignsSceneID(t *testing.T) {
	shots := []model.Shot{{ID: "a"}, {ID: "b", SceneID: "stale"}}

	planner.NormalizeShots(shots, "s7", normalizerScript())

	for _, shot := range shots {
		assert.Equal(t, "s7", shot.SceneID)
		assert.Len(t, shot.Keyframes, 2)
	}
}
