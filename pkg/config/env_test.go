package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetIntEnvClamped(t *testing.T) {
	t.Setenv("CLAMP_TEST", "5000")
	assert.Equal(t, 2000, GetIntEnvClamped("CLAMP_TEST", 500, 1, 2000))

	t.Setenv("CLAMP_TEST", "0")
	assert.Equal(t, 1, GetIntEnvClamped("CLAMP_TEST", 500, 1, 2000))

	t.Setenv("CLAMP_TEST", "750")
	assert.Equal(t, 750, GetIntEnvClamped("CLAMP_TEST", 500, 1, 2000))
}

func TestGetIntEnvAlias(t *testing.T) {
	t.Setenv("ALIAS_CANONICAL", "")
	t.Setenv("ALIAS_LEGACY", "")
	assert.Equal(t, 60000, GetIntEnvAlias(60000, 1000, 3600000, "ALIAS_CANONICAL", "ALIAS_LEGACY"),
		"default when neither name is set")

	t.Setenv("ALIAS_LEGACY", "90000")
	assert.Equal(t, 90000, GetIntEnvAlias(60000, 1000, 3600000, "ALIAS_CANONICAL", "ALIAS_LEGACY"))

	t.Setenv("ALIAS_CANONICAL", "120000")
	assert.Equal(t, 120000, GetIntEnvAlias(60000, 1000, 3600000, "ALIAS_CANONICAL", "ALIAS_LEGACY"),
		"canonical name wins over the alias")

	t.Setenv("ALIAS_CANONICAL", "10")
	assert.Equal(t, 1000, GetIntEnvAlias(60000, 1000, 3600000, "ALIAS_CANONICAL", "ALIAS_LEGACY"),
		"aliased reads clamp like direct ones")
}
