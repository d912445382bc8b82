package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arena-gamesync/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) string { return "" }

func missingEnvFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestRunMintsVerifiableToken(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"-env", missingEnvFile(t), "-secret", "s3cret", "-subject", "ops", "-ttl", "5m"}, noEnv, &out)
	require.NoError(t, err)

	token := strings.TrimSpace(out.String())
	require.NotEmpty(t, token)
	assert.NoError(t, auth.NewVerifier("s3cret").Verify(token))
	assert.ErrorIs(t, auth.NewVerifier("other").Verify(token), auth.ErrInvalidSignature)
}

func TestRunFallsBackToEnvironmentSecret(t *testing.T) {
	var out bytes.Buffer
	getenv := func(key string) string {
		if key == "ADMIN_SECRET" {
			return "from-env"
		}
		return ""
	}
	require.NoError(t, run([]string{"-env", missingEnvFile(t)}, getenv, &out))
	assert.NoError(t, auth.NewVerifier("from-env").Verify(strings.TrimSpace(out.String())))
}

func TestRunWithoutSecret(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"-env", missingEnvFile(t)}, noEnv, &out)
	assert.ErrorIs(t, err, auth.ErrNoSecret)
	assert.Empty(t, out.String())
}
