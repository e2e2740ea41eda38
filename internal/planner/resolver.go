package planner

import (
	"sort"
	"strings"
	"unicode"

	"storyboard-server/internal/model"
)

// ActionTier - уровень цепочки фолбэков, которым был разрешен текст сцены.
// Влияет только на логирование/телеметрию, не на корректность.
type ActionTier string

const (
	TierDirect   ActionTier = "direct"
	TierSemantic ActionTier = "semantic"
	TierNeighbor ActionTier = "neighbor"
	TierGlobal   ActionTier = "global"
	TierNone     ActionTier = "none"
)

// ResolvedAction - текст повествования, привязанный к сцене.
type ResolvedAction struct {
	Text string
	Tier ActionTier
}

// Пороговые значения семантического сопоставления подобраны эмпирически
// по исходным данным; это настраиваемые константы, а не гарантированно
// оптимальные.
const (
	semanticScoreThreshold = 0.18
	semanticLocationBonus  = 0.3
	semanticTimeBonus      = 0.15
	semanticMaxParagraphs  = 3
	neighborParagraphs     = 2
	globalParagraphs       = 2
)

// ResolveSceneAction находит текст повествования для сцены по цепочке
// direct -> semantic -> neighbor -> global -> none.
func ResolveSceneAction(sceneIndex int, scenes []model.Scene, paragraphs []model.StoryParagraph) ResolvedAction {
	scene := scenes[sceneIndex]

	// 1. Прямая привязка по sceneRefId
	if text := directParagraphs(scene.ID, paragraphs); text != "" {
		return ResolvedAction{Text: text, Tier: TierDirect}
	}

	// 2. Семантическое сопоставление по пересечению токенов
	if text := semanticParagraphs(scene, paragraphs); text != "" {
		return ResolvedAction{Text: text, Tier: TierSemantic}
	}

	// 3. Заимствование у соседних сцен
	if text := neighborParagraphsText(sceneIndex, scenes, paragraphs); text != "" {
		return ResolvedAction{Text: text, Tier: TierNeighbor}
	}

	// 4. Первые абзацы всей истории как общий наполнитель
	if text := globalParagraphsText(paragraphs); text != "" {
		return ResolvedAction{Text: text, Tier: TierGlobal}
	}

	// 5. Текста нет совсем - вызывающий обязан синтезировать фолбэк
	return ResolvedAction{Tier: TierNone}
}

func directParagraphs(sceneID string, paragraphs []model.StoryParagraph) string {
	var parts []string
	for _, p := range paragraphs {
		if p.SceneRefID == sceneID && strings.TrimSpace(p.Text) != "" {
			parts = append(parts, strings.TrimSpace(p.Text))
		}
	}
	return strings.Join(parts, "\n")
}

func semanticParagraphs(scene model.Scene, paragraphs []model.StoryParagraph) string {
	sceneText := strings.TrimSpace(scene.Location + " " + scene.Time + " " + scene.Atmosphere)
	sceneTokens := tokenize(sceneText)
	if len(sceneTokens) == 0 {
		return ""
	}

	type scored struct {
		index int
		score float64
	}
	var candidates []scored

	for i, p := range paragraphs {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		score := tokenOverlap(sceneTokens, tokenize(p.Text))
		if scene.Location != "" && strings.Contains(p.Text, scene.Location) {
			score += semanticLocationBonus
		}
		if scene.Time != "" && strings.Contains(p.Text, scene.Time) {
			score += semanticTimeBonus
		}
		if score >= semanticScoreThreshold {
			candidates = append(candidates, scored{index: i, score: score})
		}
	}

	if len(candidates) == 0 {
		return ""
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score > candidates[b].score
	})
	if len(candidates) > semanticMaxParagraphs {
		candidates = candidates[:semanticMaxParagraphs]
	}

	parts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		parts = append(parts, strings.TrimSpace(paragraphs[c.index].Text))
	}
	return strings.Join(parts, "\n")
}

func neighborParagraphsText(sceneIndex int, scenes []model.Scene, paragraphs []model.StoryParagraph) string {
	var parts []string

	// Последние абзацы ближайшей предыдущей сцены с прямой привязкой
	for i := sceneIndex - 1; i >= 0; i-- {
		direct := collectDirect(scenes[i].ID, paragraphs)
		if len(direct) == 0 {
			continue
		}
		if len(direct) > neighborParagraphs {
			direct = direct[len(direct)-neighborParagraphs:]
		}
		parts = append(parts, direct...)
		break
	}

	// Первые абзацы ближайшей следующей сцены
	for i := sceneIndex + 1; i < len(scenes); i++ {
		direct := collectDirect(scenes[i].ID, paragraphs)
		if len(direct) == 0 {
			continue
		}
		if len(direct) > neighborParagraphs {
			direct = direct[:neighborParagraphs]
		}
		parts = append(parts, direct...)
		break
	}

	return strings.Join(parts, "\n")
}

func globalParagraphsText(paragraphs []model.StoryParagraph) string {
	var parts []string
	for _, p := range paragraphs {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		parts = append(parts, strings.TrimSpace(p.Text))
		if len(parts) == globalParagraphs {
			break
		}
	}
	return strings.Join(parts, "\n")
}

func collectDirect(sceneID string, paragraphs []model.StoryParagraph) []string {
	var out []string
	for _, p := range paragraphs {
		if p.SceneRefID == sceneID && strings.TrimSpace(p.Text) != "" {
			out = append(out, strings.TrimSpace(p.Text))
		}
	}
	return out
}

// tokenize разбивает текст на множество токенов: слова по пробелам
// плюс биграммы символов для CJK-последовательностей, у которых
// пробельная сегментация не работает.
func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, field := range strings.Fields(strings.ToLower(text)) {
		tokens[field] = struct{}{}
		addCJKBigrams(field, tokens)
	}
	return tokens
}

func addCJKBigrams(word string, tokens map[string]struct{}) {
	runes := []rune(word)
	for i := 0; i+1 < len(runes); i++ {
		if isCJK(runes[i]) && isCJK(runes[i+1]) {
			tokens[string(runes[i:i+2])] = struct{}{}
		}
	}
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}

// tokenOverlap - доля токенов сцены, встретившихся в абзаце.
func tokenOverlap(sceneTokens, paragraphTokens map[string]struct{}) float64 {
	if len(sceneTokens) == 0 {
		return 0
	}
	matched := 0
	for t := range sceneTokens {
		if _, ok := paragraphTokens[t]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(sceneTokens))
}
