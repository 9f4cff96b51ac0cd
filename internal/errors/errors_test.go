package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMorieError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("object not found")

	// When: wrapping with MorieError
	err := ContentStoreError("failed to read blob", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, err)
	assert.Equal(t, originalErr, errors.Unwrap(err))
	assert.True(t, errors.Is(err, originalErr))
}

func TestMorieError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigInvalid,
			message:  "bad debounce",
			expected: "[ERR_102_CONFIG_INVALID] bad debounce",
		},
		{
			name:     "content store error",
			code:     ErrCodeContentStore,
			message:  "corrupt object",
			expected: "[ERR_207_CONTENT_STORE] corrupt object",
		},
		{
			name:     "cache store error",
			code:     ErrCodeCacheStore,
			message:  "database is locked",
			expected: "[ERR_208_CACHE_STORE] database is locked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestMorieError_Is_MatchesByCode(t *testing.T) {
	err1 := New(ErrCodeCacheStore, "commit failed", nil)
	err2 := New(ErrCodeCacheStore, "begin failed", nil)

	assert.True(t, errors.Is(err1, err2))
	assert.True(t, errors.Is(err1, ErrCacheStore))
	assert.False(t, errors.Is(err1, ErrContentStore))
}

func TestMorieError_Is_FindsRootCauseThroughIndexFailure(t *testing.T) {
	// Given: a content store failure wrapped by a maintenance failure
	root := ContentStoreError("failed to diff trees", errors.New("zlib: invalid header"))
	err := New(ErrCodeIndexFailed, "maintenance failed", root)

	// Then: both codes match along the chain
	assert.True(t, errors.Is(err, ErrIndexFailed))
	assert.True(t, errors.Is(err, ErrContentStore))
	assert.False(t, errors.Is(err, ErrCacheStore))
	assert.Equal(t, ErrCodeIndexFailed, GetCode(err))
}

func TestNotFoundError(t *testing.T) {
	err := NotFoundError("notes/missing.md")

	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(fmt.Errorf("get: %w", err)))
	assert.False(t, IsNotFound(ContentStoreError("boom", nil)))
	assert.Equal(t, "notes/missing.md", err.Details["path"])
	assert.Equal(t, SeverityInfo, err.Severity)
	assert.Equal(t, CategoryIO, err.Category)
}

func TestMorieError_WithDetailAndSuggestion(t *testing.T) {
	err := New(ErrCodeInvalidFilter, "bad pattern", nil).
		WithDetail("pattern", "[").
		WithSuggestion("Quote the pattern in your shell")

	assert.Equal(t, "[", err.Details["pattern"])
	assert.Equal(t, "Quote the pattern in your shell", err.Suggestion)
}

func TestCategoryFromCode(t *testing.T) {
	tests := []struct {
		code     string
		expected Category
	}{
		{ErrCodeConfigNotFound, CategoryConfig},
		{ErrCodeContentStore, CategoryIO},
		{ErrCodeCacheStore, CategoryIO},
		{ErrCodeInvalidFilter, CategoryValidation},
		{ErrCodeIndexFailed, CategoryInternal},
		{"bad", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, categoryFromCode(tt.code))
		})
	}
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeCorruptIndex, "corrupt", nil)))
	assert.False(t, IsFatal(New(ErrCodeCacheStore, "locked", nil)))
	assert.False(t, IsFatal(errors.New("plain")))
	assert.False(t, IsFatal(nil))
}

func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}
