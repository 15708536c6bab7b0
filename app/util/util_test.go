package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvDefault(t *testing.T) {
	assert.Equal(t, "fallback", Env("SOME_UNSET_VARIABLE_FOR_TESTS", "fallback"))
}

func TestEnvSet(t *testing.T) {
	t.Setenv("SOME_SET_VARIABLE_FOR_TESTS", "value")
	assert.Equal(t, "value", Env("SOME_SET_VARIABLE_FOR_TESTS", "fallback"))
}

func TestEnvBool(t *testing.T) {
	t.Setenv("SOME_BOOL_VARIABLE_FOR_TESTS", "true")
	assert.True(t, EnvBool("SOME_BOOL_VARIABLE_FOR_TESTS"))

	t.Setenv("SOME_BOOL_VARIABLE_FOR_TESTS", "false")
	assert.False(t, EnvBool("SOME_BOOL_VARIABLE_FOR_TESTS"))

	assert.False(t, EnvBool("SOME_UNSET_BOOL_VARIABLE_FOR_TESTS"))
}
