package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJsonContent(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		expected string
	}{
		{
			name:     "чистый JSON без обертки",
			raw:      `{"shots": []}`,
			expected: `{"shots": []}`,
		},
		{
			name:     "markdown-блок json",
			raw:      "Вот план:\n```json\n{\"shots\": [1, 2]}\n```\nГотово.",
			expected: `{"shots": [1, 2]}`,
		},
		{
			name:     "анонимный код-блок",
			raw:      "```\n{\"a\": 1}\n```",
			expected: `{"a": 1}`,
		},
		{
			name:     "JSON внутри прозы",
			raw:      `Модель решила пояснить: {"a": {"b": 2}} вот так.`,
			expected: `{"a": {"b": 2}}`,
		},
		{
			name:     "оборванный объект добивается скобками",
			raw:      `{"scene": {"id": 1}`,
			expected: `{"scene": {"id": 1}}`,
		},
		{
			name:     "совсем не JSON",
			raw:      "извините, не могу помочь",
			expected: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ExtractJsonContent(tc.raw))
		})
	}
}

func TestStringShort(t *testing.T) {
	assert.Equal(t, "short", StringShort("short", 10))
	assert.Equal(t, "0123456...", StringShort("0123456789abcdef", 10))
	assert.Equal(t, "...", StringShort("0123456789", 3))
}
