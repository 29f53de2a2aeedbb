package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsSentinel(t *testing.T) {
	err := Wrapf(ErrSearchFailure, "query %q", "scooters")
	require.Error(t, err)
	assert.True(t, Is(err, ErrSearchFailure))
	assert.Equal(t, `query "scooters": web search failure`, err.Error())
	assert.Nil(t, Wrap(nil, "ignored"))
}

func TestValidationErrorMatchesInvalidInput(t *testing.T) {
	err := fmt.Errorf("request: %w", NewValidationError("prompt", "must not be empty", nil))
	assert.True(t, Is(err, ErrInvalidInput))

	var vErr *ValidationError
	require.True(t, As(err, &vErr))
	assert.Equal(t, "prompt", vErr.Field)
}

func TestMultiErrorUnwrapsAll(t *testing.T) {
	var m MultiError
	assert.Nil(t, m.ToError())

	m.Add(nil)
	m.Add(ErrTimeout)
	m.Add(ErrUnavailable)

	err := m.ToError()
	require.Error(t, err)
	assert.True(t, Is(err, ErrTimeout))
	assert.True(t, Is(err, ErrUnavailable))
	assert.Contains(t, err.Error(), "multiple errors (2)")
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", Excerpt("short", 10))
	assert.Equal(t, "abc…", Excerpt("abcdef", 3))
	assert.Equal(t, "", Excerpt("abc", 0))
	assert.Equal(t, "жжж…", Excerpt("жжжжжж", 3))
}

func TestFailureTags(t *testing.T) {
	assert.Equal(t, map[string]string{
		TagOperation: "research",
		TagStage:     "verify_sources",
		TagReason:    "untraceable_source",
	}, FailureTags("research", "verify_sources", "untraceable_source"))
	assert.Equal(t, map[string]string{TagOperation: "edit"}, FailureTags("edit", "", ""))
}
