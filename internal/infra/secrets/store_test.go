package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_ExpandsPlaceholders(t *testing.T) {
	store := StaticStore{"API_TOKEN": "tok-123"}

	out, err := Resolve(store, "Bearer {{SECRET:API_TOKEN}}")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", out)
}

func TestResolve_MissingSecretFails(t *testing.T) {
	store := StaticStore{}

	_, err := Resolve(store, "{{SECRET:NOPE}}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOPE")
}

func TestResolve_NoPlaceholderPassesThrough(t *testing.T) {
	out, err := Resolve(StaticStore{}, "plain value")
	require.NoError(t, err)
	assert.Equal(t, "plain value", out)
}

func TestNames_DeduplicatesAcrossTemplates(t *testing.T) {
	names := Names("{{SECRET:A}} {{SECRET:B}}", "{{SECRET:A}}")
	assert.Equal(t, []string{"A", "B"}, names)
}

func TestCheck_ReportsFirstMissing(t *testing.T) {
	store := StaticStore{"A": "x"}

	assert.NoError(t, Check(store, "{{SECRET:A}}"))
	err := Check(store, "{{SECRET:A}}", "{{SECRET:MISSING}}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MISSING")
}

func TestEnvStore_Prefix(t *testing.T) {
	t.Setenv("AIDJOBS_SECRET_TOKEN", "env-val")
	store := NewEnvStore("AIDJOBS_SECRET_")

	v, ok := store.Lookup("TOKEN")
	require.True(t, ok)
	assert.Equal(t, "env-val", v)

	_, ok = store.Lookup("OTHER")
	assert.False(t, ok)
}
