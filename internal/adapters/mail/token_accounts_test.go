package mail

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestAccountsMissingDirectory(t *testing.T) {
	src := NewTokenAccountSource(filepath.Join(t.TempDir(), "nope"), zap.NewNop())
	accounts, err := src.Accounts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestAccountsListsTokenFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "token_b.json", `{"account_email":"bob@example.com"}`)
	writeFile(t, dir, "token_a.json", `{"account_email":"alice@example.com"}`)
	// Files outside the token_*.json naming convention are ignored.
	writeFile(t, dir, "notes.txt", "not a token")
	writeFile(t, dir, "credentials.json", `{"account_email":"ignored@example.com"}`)

	src := NewTokenAccountSource(dir, zap.NewNop())
	accounts, err := src.Accounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, accounts)
}

func TestAccountsSkipsMalformedTokens(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "token_good.json", `{"account_email":"good@example.com"}`)
	writeFile(t, dir, "token_broken.json", `{not json`)
	writeFile(t, dir, "token_empty.json", `{"refresh_token":"x"}`)

	src := NewTokenAccountSource(dir, zap.NewNop())
	accounts, err := src.Accounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"good@example.com"}, accounts)
}
