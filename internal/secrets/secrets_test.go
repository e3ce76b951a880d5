package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvWinsOverKeyring(t *testing.T) {
	t.Setenv("MATSCOUT_SEARCH_API_KEY", "  env-key  ")

	got, err := Get(AccountSearchAPI)
	require.NoError(t, err)
	assert.Equal(t, "env-key", got)
}

func TestMissingSecretErrors(t *testing.T) {
	t.Setenv("MATSCOUT_EMAIL_API_KEY", "")

	_, err := Get(AccountEmailAPI)
	if err == nil {
		t.Skip("keychain entry present on this machine")
	}
	assert.Contains(t, err.Error(), AccountEmailAPI)
	assert.Empty(t, GetOptional(AccountEmailAPI))
}

func TestSetRejectsEmpty(t *testing.T) {
	assert.Error(t, Set("", "v"))
	assert.Error(t, Set(AccountLLMAPI, "  "))
	assert.Error(t, Delete(""))
}
