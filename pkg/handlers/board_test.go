package handlers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBodyLimitCountsCharactersNotBytes(t *testing.T) {
	// multibyte text at exactly the limit: more bytes than tekens, still fine
	long := strings.Repeat("é", maxBodyLen)
	require.Greater(t, len(long), maxBodyLen)
	assert.False(t, bodyTooLong(long))

	assert.True(t, bodyTooLong(long+"!"))
	assert.False(t, bodyTooLong(""))
}
