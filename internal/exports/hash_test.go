package exports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentHashIsDeterministic(t *testing.T) {
	content := map[string]interface{}{"title": "Acme BCP", "risks": []string{"flood", "fire"}}
	metadata := map[string]interface{}{"company": "Acme", "version": 3}

	first, err := ContentHash(content, metadata)
	require.NoError(t, err)
	second, err := ContentHash(content, metadata)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64, "sha-256 hex digest")
}

func TestContentHashIgnoresKeyOrder(t *testing.T) {
	a, err := ContentHash(map[string]interface{}{"x": 1, "y": 2, "z": 3}, nil)
	require.NoError(t, err)
	b, err := ContentHash(map[string]interface{}{"z": 3, "y": 2, "x": 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestContentHashStructAndMapAgree(t *testing.T) {
	type payload struct {
		Title string `json:"title"`
		Count int    `json:"count"`
	}
	fromStruct, err := ContentHash(payload{Title: "Acme", Count: 2}, nil)
	require.NoError(t, err)
	fromMap, err := ContentHash(map[string]interface{}{"count": 2, "title": "Acme"}, nil)
	require.NoError(t, err)
	assert.Equal(t, fromStruct, fromMap)
}

func TestContentHashSensitiveToContent(t *testing.T) {
	a, err := ContentHash(map[string]interface{}{"title": "Acme"}, nil)
	require.NoError(t, err)
	b, err := ContentHash(map[string]interface{}{"title": "Acme Pty"}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	c, err := ContentHash(map[string]interface{}{"title": "Acme"}, map[string]interface{}{"v": 2})
	require.NoError(t, err)
	assert.NotEqual(t, a, c, "metadata participates in the digest")
}
