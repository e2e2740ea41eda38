package planner_test

import (
	"testing"

	"storyboard-server/internal/model"
	"storyboard-server/internal/planner"

	"github.com/stretchr/testify/assert"
)

func testSignatureParams() planner.SignatureParams {
	return planner.SignatureParams{
		ShotCount:   3,
		VisualStyle: "watercolor",
		Language:    "zh",
		ModelID:     "test-model",
		ArtSeed:     "seed-v1",
	}
}

func TestSceneSignature_Deterministic(t *testing.T) {
	scene := model.Scene{ID: "s1", Location: "harbor", Time: "dusk", Atmosphere: "tense"}

	first := planner.SceneSignature(scene, "action text", testSignatureParams())
	second := planner.SceneSignature(scene, "action text", testSignatureParams())

	assert.Equal(t, first, second)
	assert.Len(t, first, 64) // hex sha256
}

func TestSceneSignature_ChangesWithInputs(t *testing.T) {
	scene := model.Scene{ID: "s1", Location: "harbor", Time: "dusk", Atmosphere: "tense"}
	base := planner.SceneSignature(scene, "action text", testSignatureParams())

	// Любое изменение генерационно-значимого входа меняет хэш
	assert.NotEqual(t, base, planner.SceneSignature(scene, "other text", testSignatureParams()))

	changedScene := scene
	changedScene.Atmosphere = "calm"
	assert.NotEqual(t, base, planner.SceneSignature(changedScene, "action text", testSignatureParams()))

	params := testSignatureParams()
	params.ShotCount = 4
	assert.NotEqual(t, base, planner.SceneSignature(scene, "action text", params))

	params = testSignatureParams()
	params.ArtSeed = "seed-v2"
	assert.NotEqual(t, base, planner.SceneSignature(scene, "action text", params))
}

func TestReuseCache_PopConsumesAtMostOnce(t *testing.T) {
	cache := planner.NewReuseCache()
	groupA := []model.Shot{{ID: "a1"}, {ID: "a2"}}
	groupB := []model.Shot{{ID: "b1"}}
	cache.Add("sig", groupA)
	cache.Add("sig", groupB)

	first, ok := cache.Pop("sig")
	assert.True(t, ok)
	assert.Equal(t, "a1", first[0].ID)

	second, ok := cache.Pop("sig")
	assert.True(t, ok)
	assert.Equal(t, "b1", second[0].ID)

	// Две группы - максимум два попадания
	_, ok = cache.Pop("sig")
	assert.False(t, ok)

	_, ok = cache.Pop("unknown")
	assert.False(t, ok)
}

func TestReuseCache_AddClonesGroups(t *testing.T) {
	cache := planner.NewReuseCache()
	group := []model.Shot{{ID: "a1", Characters: []string{"c1"}}}
	cache.Add("sig", group)

	// Мутация исходной группы не влияет на содержимое кэша
	group[0].Characters[0] = "mutated"

	popped, ok := cache.Pop("sig")
	assert.True(t, ok)
	assert.Equal(t, []string{"c1"}, popped[0].Characters)
}

func TestRemapAssets(t *testing.T) {
	script := &model.ScriptData{
		Characters: []model.Character{{ID: "c1", Name: "Li Wei"}},
		Props:      []model.Prop{{ID: "pr1", Name: "Old Lantern"}},
	}
	shots := []model.Shot{{
		ID:         "shot",
		Characters: []string{"c1", "LiWei", "ghost"},
		Props:      []string{"OldLantern", "unknown-prop"},
	}}

	planner.RemapAssets(shots, script)

	// c1 валиден; "LiWei" сопоставлен по нормализованному имени и
	// схлопнут как дубликат; ghost отброшен
	assert.Equal(t, []string{"c1"}, shots[0].Characters)
	assert.Equal(t, []string{"pr1"}, shots[0].Props)
}
