package planner

import (
	"fmt"
	"strings"

	"storyboard-server/internal/model"

	"github.com/google/uuid"
)

// Слова состояния для шаблона фолбэк-промпта ключевых кадров.
// Промпты генерации изображений пишутся на языке исходного материала.
const (
	startPhaseWord = "起始"
	endPhaseWord   = "结束"
)

// fallbackKeyframePrompt строит промпт ключевого кадра из описания
// действия, фазы кадра и визуального стиля.
func fallbackKeyframePrompt(actionSummary, phaseWord, visualStyle string) string {
	return fmt.Sprintf("%s，%s状态，%s风格", actionSummary, phaseWord, visualStyle)
}

// NormalizeShot приводит кадр к инвариантам модели:
// ровно два ключевых кадра (start, end) с непустыми промптами,
// ссылки на персонажей/реквизит без дубликатов и только из каталогов.
func NormalizeShot(shot *model.Shot, script *model.ScriptData) {
	normalizeKeyframes(shot, script.VisualStyle)
	shot.Characters = filterKnownIDs(shot.Characters, characterIDSet(script))
	shot.Props = filterKnownIDs(shot.Props, propIDSet(script))
	if shot.Characters == nil {
		shot.Characters = []string{}
	}
	if shot.Props == nil {
		shot.Props = []string{}
	}
}

// NormalizeShots нормализует группу кадров одной сцены и привязывает
// их к сцене.
func NormalizeShots(shots []model.Shot, sceneID string, script *model.ScriptData) {
	for i := range shots {
		shots[i].SceneID = sceneID
		NormalizeShot(&shots[i], script)
	}
}

func normalizeKeyframes(shot *model.Shot, visualStyle string) {
	start := takeKeyframe(shot.Keyframes, model.KeyframeStart)
	end := takeKeyframe(shot.Keyframes, model.KeyframeEnd)

	if start == nil {
		start = &model.Keyframe{Type: model.KeyframeStart}
	}
	if end == nil {
		end = &model.Keyframe{Type: model.KeyframeEnd}
	}

	fillKeyframe(start, shot.ActionSummary, startPhaseWord, visualStyle)
	fillKeyframe(end, shot.ActionSummary, endPhaseWord, visualStyle)

	shot.Keyframes = []model.Keyframe{*start, *end}
}

func fillKeyframe(kf *model.Keyframe, actionSummary, phaseWord, visualStyle string) {
	if kf.ID == "" {
		kf.ID = uuid.NewString()
	}
	if strings.TrimSpace(kf.VisualPrompt) == "" {
		kf.VisualPrompt = fallbackKeyframePrompt(actionSummary, phaseWord, visualStyle)
	}
	// Планировщик выставляет только pending; остальные статусы
	// принадлежат внешним генераторам изображений.
	if kf.Status == "" {
		kf.Status = model.KeyframeStatusPending
	}
}

// takeKeyframe возвращает первый ключевой кадр заданного типа.
func takeKeyframe(keyframes []model.Keyframe, t model.KeyframeType) *model.Keyframe {
	for i := range keyframes {
		if keyframes[i].Type == t {
			kf := keyframes[i]
			return &kf
		}
	}
	return nil
}

func characterIDSet(script *model.ScriptData) map[string]struct{} {
	set := make(map[string]struct{}, len(script.Characters))
	for _, c := range script.Characters {
		set[c.ID] = struct{}{}
	}
	return set
}

func propIDSet(script *model.ScriptData) map[string]struct{} {
	set := make(map[string]struct{}, len(script.Props))
	for _, p := range script.Props {
		set[p.ID] = struct{}{}
	}
	return set
}

// filterKnownIDs отбрасывает дубликаты и неизвестные id, сохраняя порядок.
func filterKnownIDs(ids []string, known map[string]struct{}) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
