package errors

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForCLI_ShortFormat(t *testing.T) {
	// Given: a cache store error with a hint
	err := CacheStoreError("failed to begin transaction", errors.New("database is locked")).
		WithSuggestion("Another morie process may be rebuilding the index")

	// When: formatting for CLI
	result := FormatForCLI(err)

	// Then: message, cause, hint and code are present
	assert.Contains(t, result, "Error: failed to begin transaction")
	assert.Contains(t, result, "Cause: database is locked")
	assert.Contains(t, result, "Hint: Another morie process")
	assert.Contains(t, result, "Code: ERR_208_CACHE_STORE")
}

func TestFormatForCLI_StandardError(t *testing.T) {
	result := FormatForCLI(errors.New("something went wrong"))

	assert.Contains(t, result, "something went wrong")
	assert.Contains(t, result, ErrCodeInternal)
}

func TestFormatForCLI_NilError(t *testing.T) {
	assert.Empty(t, FormatForCLI(nil))
}

func TestFormatJSON_BasicError(t *testing.T) {
	err := NotFoundError("a.md")

	data, jsonErr := FormatJSON(err)
	require.NoError(t, jsonErr)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, ErrCodeNotFound, parsed["code"])
	assert.Equal(t, "IO", parsed["category"])
	assert.Equal(t, "a.md", parsed["details"].(map[string]any)["path"])
}

func TestFormatJSON_WithCause(t *testing.T) {
	err := ContentStoreError("failed to resolve HEAD", errors.New("reference not found"))

	data, jsonErr := FormatJSON(err)
	require.NoError(t, jsonErr)
	assert.Contains(t, string(data), `"cause":"reference not found"`)
}

func TestFormatForLog(t *testing.T) {
	assert.Nil(t, FormatForLog(nil))
	assert.Equal(t, map[string]any{"error": "plain"}, FormatForLog(errors.New("plain")))

	fields := FormatForLog(NotFoundError("b.md"))
	assert.Equal(t, ErrCodeNotFound, fields["error_code"])
	assert.Equal(t, "b.md", fields["detail_path"])
}
