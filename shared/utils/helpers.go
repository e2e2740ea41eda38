package utils

import (
	"encoding/json"
	"regexp"
	"strings"
)

// isValidJson проверяет, можно ли распарсить строку как JSON.
func isValidJson(s string) bool {
	var js json.RawMessage
	return json.Unmarshal([]byte(s), &js) == nil
}

// balanceBrackets пытается добавить/удалить закрывающие скобки в конце строки.
// Скобки внутри строковых литералов не учитываются.
func balanceBrackets(text string) string {
	balanceCurly := 0
	balanceSquare := 0
	inString := false
	escape := false

	for _, r := range text {
		if escape {
			escape = false
			continue
		}
		if r == '\\' {
			escape = true
			continue
		}
		if r == '"' {
			inString = !inString
		}
		if !inString {
			switch r {
			case '{':
				balanceCurly++
			case '}':
				balanceCurly--
			case '[':
				balanceSquare++
			case ']':
				balanceSquare--
			}
		}
	}

	balancedText := text
	trimmed := strings.TrimSpace(text)

	appendMissing := func(open int, closer string) int {
		for open > 0 {
			balancedText += closer
			open--
		}
		return open
	}
	trimExtra := func(open int, closer string) int {
		for open < 0 && strings.HasSuffix(balancedText, closer) {
			// Не трогаем скобку, если рядом кавычка - она может быть частью строки
			tail := balancedText
			if len(tail) > 5 {
				tail = tail[len(tail)-5:]
			}
			if strings.Contains(tail, "\"") {
				break
			}
			balancedText = balancedText[:len(balancedText)-1]
			open++
		}
		return open
	}

	if strings.HasPrefix(trimmed, "{") {
		balanceCurly = appendMissing(balanceCurly, "}")
		balanceCurly = trimExtra(balanceCurly, "}")
		balanceSquare = appendMissing(balanceSquare, "]")
		balanceSquare = trimExtra(balanceSquare, "]")
	} else if strings.HasPrefix(trimmed, "[") {
		balanceSquare = appendMissing(balanceSquare, "]")
		balanceSquare = trimExtra(balanceSquare, "]")
		balanceCurly = appendMissing(balanceCurly, "}")
		balanceCurly = trimExtra(balanceCurly, "}")
	}

	return balancedText
}

// processPotentialJson пытается привести строку к валидному JSON (trim, балансировка скобок).
func processPotentialJson(content string) string {
	trimmed := strings.TrimSpace(content)
	if isValidJson(trimmed) {
		return trimmed
	}
	balanced := balanceBrackets(trimmed)
	if isValidJson(balanced) {
		return balanced
	}
	return ""
}

var (
	jsonBlockRegex = regexp.MustCompile("(?s)```json\\s*([\\s\\S]*?)\\s*```")
	anyBlockRegex  = regexp.MustCompile("(?s)```\\s*([\\s\\S]*?)\\s*```")
)

// ExtractJsonContent извлекает JSON из сырого ответа модели.
// Даже при responseFormat=json_object модели иногда оборачивают ответ
// в markdown-блоки, поэтому сначала ищем ```json ... ```, потом любой
// код-блок, потом содержимое между первой и последней скобкой.
func ExtractJsonContent(rawText string) string {
	rawText = strings.TrimSpace(rawText)

	if matches := jsonBlockRegex.FindStringSubmatch(rawText); len(matches) > 1 {
		if result := processPotentialJson(matches[1]); result != "" {
			return result
		}
	}

	if matches := anyBlockRegex.FindStringSubmatch(rawText); len(matches) > 1 {
		if result := processPotentialJson(matches[1]); result != "" {
			return result
		}
	}

	firstBrace := strings.Index(rawText, "{")
	lastBrace := strings.LastIndex(rawText, "}")
	firstBracket := strings.Index(rawText, "[")
	lastBracket := strings.LastIndex(rawText, "]")

	startIdx := -1
	endIdx := -1
	if firstBrace != -1 && (firstBracket == -1 || firstBrace < firstBracket) {
		startIdx = firstBrace
		endIdx = lastBrace
	} else if firstBracket != -1 {
		startIdx = firstBracket
		endIdx = lastBracket
	}

	if startIdx != -1 {
		var potentialJson string
		if endIdx != -1 && endIdx > startIdx {
			potentialJson = rawText[startIdx : endIdx+1]
		} else {
			potentialJson = rawText[startIdx:]
		}
		if result := processPotentialJson(potentialJson); result != "" {
			return result
		}
	}

	// Ничего валидного не нашли - возвращаем хвост от первой скобки как есть,
	// пусть вызывающий получит осмысленную ошибку парсинга.
	if firstBrace != -1 {
		return strings.TrimSpace(rawText[firstBrace:])
	}
	if firstBracket != -1 {
		return strings.TrimSpace(rawText[firstBracket:])
	}

	return ""
}

// StringShort обрезает строку до указанной максимальной длины,
// добавляя многоточие, если строка была обрезана.
func StringShort(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}
