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

const testAccount = "alice@example.com"

func spoolFixture(t *testing.T) (*SpoolMailSource, string) {
	t.Helper()
	root := t.TempDir()
	accountPath := filepath.Join(root, accountDir(testAccount))
	require.NoError(t, os.MkdirAll(accountPath, 0o755))
	return NewSpoolMailSource(root, zap.NewNop()), accountPath
}

func TestFetchMissingAccountDirectory(t *testing.T) {
	src := NewSpoolMailSource(t.TempDir(), zap.NewNop())
	emails, err := src.Fetch(context.Background(), testAccount)
	require.NoError(t, err)
	assert.Empty(t, emails)
}

func TestFetchDrainsSpool(t *testing.T) {
	src, dir := spoolFixture(t)
	writeFile(t, dir, "msg_001.json",
		`{"provider_id":"p1","thread_id":"t1","internal_date":100,"from":"x@y.com","subject":"first","body":"hello"}`)
	writeFile(t, dir, "msg_002.json",
		`{"provider_id":"p2","internal_date":200,"subject":"second","body":"world"}`)

	emails, err := src.Fetch(context.Background(), testAccount)
	require.NoError(t, err)
	require.Len(t, emails, 2)

	assert.Equal(t, "p1", emails[0].ProviderID)
	assert.Equal(t, testAccount, emails[0].AccountEmail)
	assert.Equal(t, "first", emails[0].Subject)
	assert.Equal(t, int64(100), emails[0].InternalDate)
	assert.Equal(t, "p2", emails[1].ProviderID)

	// Consumed files are moved aside, not deleted.
	for _, name := range []string{"msg_001.json", "msg_002.json"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.True(t, os.IsNotExist(err))
		_, err = os.Stat(filepath.Join(dir, consumedDir, name))
		assert.NoError(t, err)
	}

	// A second fetch finds nothing new.
	emails, err = src.Fetch(context.Background(), testAccount)
	require.NoError(t, err)
	assert.Empty(t, emails)
}

func TestFetchLeavesMalformedFiles(t *testing.T) {
	src, dir := spoolFixture(t)
	writeFile(t, dir, "msg_bad.json", `{broken`)
	writeFile(t, dir, "msg_noid.json", `{"subject":"no provider id"}`)
	writeFile(t, dir, "msg_ok.json", `{"provider_id":"p1","subject":"fine"}`)
	writeFile(t, dir, "readme.txt", "not a message")

	emails, err := src.Fetch(context.Background(), testAccount)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, "p1", emails[0].ProviderID)

	// Malformed files stay in place for inspection.
	for _, name := range []string{"msg_bad.json", "msg_noid.json", "readme.txt"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err)
	}
}

func TestFetchSanitizesText(t *testing.T) {
	src, dir := spoolFixture(t)
	writeFile(t, dir, "msg.json",
		`{"provider_id":"p1","subject":"café � news","body":"ok"}`)

	emails, err := src.Fetch(context.Background(), testAccount)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Contains(t, emails[0].Subject, "café")
}

func TestFetchStopsOnCancelledContext(t *testing.T) {
	src, dir := spoolFixture(t)
	writeFile(t, dir, "msg.json", `{"provider_id":"p1","subject":"s"}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Fetch(ctx, testAccount)
	assert.ErrorIs(t, err, context.Canceled)
}
