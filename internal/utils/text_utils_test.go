package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "hello", TruncateText("hello", 10))
	assert.Equal(t, "hel", TruncateText("hello", 3))
	assert.Equal(t, "hello", TruncateText("hello", 0))

	// Never cuts through a multi-byte rune.
	assert.Equal(t, "caf", TruncateText("café", 4))
}

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "clean text", SanitizeUTF8("clean text"))
	assert.Equal(t, "café", SanitizeUTF8("café"))
	assert.Equal(t, "ab", SanitizeUTF8("a\xffb"))
}

func TestExtractJSON(t *testing.T) {
	t.Run("bare object", func(t *testing.T) {
		out, ok := ExtractJSON(`{"is_new_category": true}`)
		require.True(t, ok)
		assert.Equal(t, `{"is_new_category": true}`, out)
	})

	t.Run("markdown fenced", func(t *testing.T) {
		out, ok := ExtractJSON("Here you go:\n```json\n{\"name\": \"crypto_newsletter\"}\n```\nHope that helps.")
		require.True(t, ok)
		assert.Equal(t, `{"name": "crypto_newsletter"}`, out)
	})

	t.Run("surrounding prose", func(t *testing.T) {
		out, ok := ExtractJSON(`The answer is {"a": 1} as requested.`)
		require.True(t, ok)
		assert.Equal(t, `{"a": 1}`, out)
	})

	t.Run("no object", func(t *testing.T) {
		_, ok := ExtractJSON("no json here")
		assert.False(t, ok)
	})
}
