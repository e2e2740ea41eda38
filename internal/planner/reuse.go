package planner

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"storyboard-server/internal/model"
)

// SignatureParams - параметры генерации, входящие в сигнатуру
// переиспользования. Любое изменение параметра меняет хэш и
// принудительно ведет к регенерации; явной инвалидации нет.
type SignatureParams struct {
	ShotCount   int
	VisualStyle string
	Language    string
	ModelID     string
	ArtSeed     string
}

// SceneSignature вычисляет детерминированный хэш сцены: канонический
// JSON с отсортированными ключами, затем sha256 в hex.
func SceneSignature(scene model.Scene, actionText string, params SignatureParams) string {
	fields := map[string]interface{}{
		"loc":    scene.Location,
		"time":   scene.Time,
		"atmo":   scene.Atmosphere,
		"action": actionText,
		"count":  params.ShotCount,
		"style":  params.VisualStyle,
		"lang":   params.Language,
		"model":  params.ModelID,
		"seed":   params.ArtSeed,
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range keys {
		// json.Marshal для строк и чисел не возвращает ошибку
		valueBytes, _ := json.Marshal(fields[k])
		sb.WriteString(fmt.Sprintf("%q:%s", k, string(valueBytes)))
		if i < len(keys)-1 {
			sb.WriteString(",")
		}
	}
	sb.WriteString("}")

	hash := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(hash[:])
}

// ReuseCache - content-addressed хранилище групп кадров предыдущего
// запуска. Мультимап сигнатура -> очередь групп; каждая группа
// выдается не более одного раза (FIFO), чтобы две разные текущие
// сцены не получили одну и ту же кэшированную группу.
type ReuseCache struct {
	buckets map[string][][]model.Shot
	cursors map[string]int
}

// NewReuseCache создает пустой кэш.
func NewReuseCache() *ReuseCache {
	return &ReuseCache{
		buckets: make(map[string][][]model.Shot),
		cursors: make(map[string]int),
	}
}

// Add кладет клон группы кадров в очередь сигнатуры.
func (c *ReuseCache) Add(signature string, group []model.Shot) {
	if len(group) == 0 {
		return
	}
	c.buckets[signature] = append(c.buckets[signature], cloneShots(group))
}

// Pop забирает следующую невыданную группу для сигнатуры.
// Продвигаем курсор вместо удаления из слайса - O(1) на выдачу.
func (c *ReuseCache) Pop(signature string) ([]model.Shot, bool) {
	queue, ok := c.buckets[signature]
	if !ok {
		return nil, false
	}
	cursor := c.cursors[signature]
	if cursor >= len(queue) {
		return nil, false
	}
	c.cursors[signature] = cursor + 1
	return cloneShots(queue[cursor]), true
}

// Len возвращает число еще не выданных групп (для логирования).
func (c *ReuseCache) Len() int {
	total := 0
	for sig, queue := range c.buckets {
		total += len(queue) - c.cursors[sig]
	}
	return total
}

// RemapAssets переносит ссылки на персонажей/реквизит кэшированных
// кадров в текущие каталоги: сначала по id, затем по нормализованному
// имени; несопоставимые ссылки отбрасываются.
func RemapAssets(shots []model.Shot, script *model.ScriptData) {
	charByID := make(map[string]string, len(script.Characters))
	charByName := make(map[string]string, len(script.Characters))
	for _, c := range script.Characters {
		charByID[c.ID] = c.ID
		charByName[normalizeName(c.Name)] = c.ID
	}
	propByID := make(map[string]string, len(script.Props))
	propByName := make(map[string]string, len(script.Props))
	for _, p := range script.Props {
		propByID[p.ID] = p.ID
		propByName[normalizeName(p.Name)] = p.ID
	}

	// Имена из предыдущего запуска нужны для нечеткого сопоставления,
	// но в кэшированных кадрах хранятся только id. Сопоставление по
	// имени возможно, когда старый id совпадает с нормализованным
	// именем либо когда id просто остался валидным.
	for i := range shots {
		shots[i].Characters = remapIDs(shots[i].Characters, charByID, charByName)
		shots[i].Props = remapIDs(shots[i].Props, propByID, propByName)
	}
}

func remapIDs(ids []string, byID, byName map[string]string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		mapped, ok := byID[id]
		if !ok {
			mapped, ok = byName[normalizeName(id)]
		}
		if !ok {
			continue
		}
		if _, dup := seen[mapped]; dup {
			continue
		}
		seen[mapped] = struct{}{}
		out = append(out, mapped)
	}
	return out
}

// normalizeName приводит имя к ключу сопоставления:
// нижний регистр, без пробельных символов.
func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), ""))
}

func cloneShots(shots []model.Shot) []model.Shot {
	out := make([]model.Shot, len(shots))
	for i, s := range shots {
		out[i] = s
		out[i].Characters = append([]string(nil), s.Characters...)
		out[i].Props = append([]string(nil), s.Props...)
		out[i].Keyframes = append([]model.Keyframe(nil), s.Keyframes...)
		if s.Quality != nil {
			q := *s.Quality
			q.Checks = append([]model.QualityCheck(nil), s.Quality.Checks...)
			out[i].Quality = &q
		}
	}
	return out
}
