package keystore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, ok, err := store.UserKey(ctx, "u1", "anthropic")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetUserKey(ctx, "u1", "anthropic", "sk-ant-user"))
	require.NoError(t, store.SetAdminKey(ctx, "anthropic", "sk-ant-admin"))

	key, ok, err := store.UserKey(ctx, "u1", "anthropic")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sk-ant-user", key)

	key, ok, err = store.AdminKey(ctx, "anthropic")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sk-ant-admin", key)

	// Another user never sees u1's key.
	_, ok, err = store.UserKey(ctx, "u2", "anthropic")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.DeleteUserKey(ctx, "u1", "anthropic"))
	_, ok, err = store.UserKey(ctx, "u1", "anthropic")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnvVarName(t *testing.T) {
	assert.Equal(t, "ANTHROPIC_API_KEY", EnvVarName("anthropic"))
	assert.Equal(t, "CLAUDE_CODE_API_KEY", EnvVarName("claude-code"))
}

func TestEnvStore(t *testing.T) {
	store := &EnvStore{lookup: func(name string) (string, bool) {
		if name == "OPENAI_API_KEY" {
			return "sk-env", true
		}
		if name == "GROQ_API_KEY" {
			return "", true
		}
		return "", false
	}}
	ctx := context.Background()

	key, ok, err := store.AdminKey(ctx, "openai")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sk-env", key)

	// Empty values count as absent.
	_, ok, err = store.AdminKey(ctx, "groq")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = store.UserKey(ctx, "u1", "openai")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLayeredPrecedence(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	require.NoError(t, mem.SetAdminKey(ctx, "openai", "sk-mem"))
	env := &EnvStore{lookup: func(name string) (string, bool) {
		switch name {
		case "OPENAI_API_KEY":
			return "sk-env", true
		case "XAI_API_KEY":
			return "sk-xai", true
		}
		return "", false
	}}

	layered := Layered{mem, env}

	key, ok, err := layered.AdminKey(ctx, "openai")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sk-mem", key, "earlier store wins")

	key, ok, err = layered.AdminKey(ctx, "xai")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sk-xai", key, "later store fills gaps")

	_, ok, err = layered.AdminKey(ctx, "mistral")
	require.NoError(t, err)
	assert.False(t, ok)
}
