package planner_test

import (
	"testing"

	"storyboard-server/internal/model"
	"storyboard-server/internal/planner"

	"github.com/stretchr/testify/assert"
)

func TestResolveSceneAction_DirectTier(t *testing.T) {
	scenes := []model.Scene{{ID: "s1", Location: "harbor"}}
	paragraphs := []model.StoryParagraph{
		{ID: "p1", Text: "First paragraph.", SceneRefID: "s1"},
		{ID: "p2", Text: "Second paragraph.", SceneRefID: "s1"},
		{ID: "p3", Text: "Unrelated.", SceneRefID: "s9"},
	}

	action := planner.ResolveSceneAction(0, scenes, paragraphs)

	assert.Equal(t, planner.TierDirect, action.Tier)
	assert.Equal(t, "First paragraph.\nSecond paragraph.", action.Text)
}

func TestResolveSceneAction_SemanticTier(t *testing.T) {
	// Прямых привязок нет, но абзац пересекается с метаданными сцены
	scenes := []model.Scene{{ID: "s1", Location: "harbor market", Time: "dusk", Atmosphere: "tense"}}
	paragraphs := []model.StoryParagraph{
		{ID: "p1", Text: "The harbor market was crowded and loud."},
		{ID: "p2", Text: "Elsewhere, a quiet office hummed."},
	}

	action := planner.ResolveSceneAction(0, scenes, paragraphs)

	assert.Equal(t, planner.TierSemantic, action.Tier)
	assert.Equal(t, "The harbor market was crowded and loud.", action.Text)
}

func TestResolveSceneAction_SemanticTierCJK(t *testing.T) {
	// Для CJK-текста пробельная сегментация не работает,
	// пересечение считается по биграммам символов
	scenes := []model.Scene{{ID: "s1", Location: "码头集市", Time: "黄昏", Atmosphere: "紧张"}}
	paragraphs := []model.StoryParagraph{
		{ID: "p1", Text: "码头集市的黄昏人声鼎沸。"},
		{ID: "p2", Text: "另一边的办公室安静无声。"},
	}

	action := planner.ResolveSceneAction(0, scenes, paragraphs)

	assert.Equal(t, planner.TierSemantic, action.Tier)
	assert.Equal(t, "码头集市的黄昏人声鼎沸。", action.Text)
}

func TestResolveSceneAction_NeighborTier(t *testing.T) {
	scenes := []model.Scene{
		{ID: "s1", Location: "qqq"},
		{ID: "s2", Location: "zzz"}, // ни прямых, ни семантических совпадений
	}
	paragraphs := []model.StoryParagraph{
		{ID: "p1", Text: "One.", SceneRefID: "s1"},
		{ID: "p2", Text: "Two.", SceneRefID: "s1"},
		{ID: "p3", Text: "Three.", SceneRefID: "s1"},
	}

	action := planner.ResolveSceneAction(1, scenes, paragraphs)

	assert.Equal(t, planner.TierNeighbor, action.Tier)
	// Последние два прямо привязанных абзаца предыдущей сцены
	assert.Equal(t, "Two.\nThree.", action.Text)
}

func TestResolveSceneAction_GlobalTier(t *testing.T) {
	scenes := []model.Scene{{ID: "s1", Location: "zzz"}}
	paragraphs := []model.StoryParagraph{
		{ID: "p1", Text: "Opening paragraph."},
		{ID: "p2", Text: "Second paragraph."},
		{ID: "p3", Text: "Third paragraph."},
	}

	action := planner.ResolveSceneAction(0, scenes, paragraphs)

	assert.Equal(t, planner.TierGlobal, action.Tier)
	assert.Equal(t, "Opening paragraph.\nSecond paragraph.", action.Text)
}

func TestResolveSceneAction_NoneTier(t *testing.T) {
	scenes := []model.Scene{{ID: "s1", Location: "zzz"}}

	action := planner.ResolveSceneAction(0, scenes, nil)

	assert.Equal(t, planner.TierNone, action.Tier)
	assert.Empty(t, action.Text)
}
