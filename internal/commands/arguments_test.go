package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCheckArg(t *testing.T) {
	check, err := ParseCheckArg([]string{"XCrypto"})
	require.NoError(t, err)
	assert.Equal(t, "xcrypto", check.Key())

	_, err = ParseCheckArg(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check name is required")
	assert.Contains(t, err.Error(), "gomock")

	_, err = ParseCheckArg([]string{"nope"})
	assert.Error(t, err)
}
