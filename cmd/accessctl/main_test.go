package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"translate-tg-bot/internal/access"
	apperrors "translate-tg-bot/internal/errors"
)

// execute runs rootCmd once with args and returns everything it printed
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	store, adminID = nil, 0
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func useMemoryStore(t *testing.T, admin string) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("TRANSLATE_BOT_STORAGE_DRIVER", "memory")
	t.Setenv("ADMIN_USER_ID", admin)
}

func TestStatusSeedsAdmin(t *testing.T) {
	useMemoryStore(t, "1")

	out, err := execute(t, "status", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "1: approved")
	assert.Equal(t, int64(1), adminID)

	approved, err := store.IsApproved(1)
	require.NoError(t, err)
	assert.True(t, approved)
}

func TestStatusWithoutAdmin(t *testing.T) {
	useMemoryStore(t, "")

	out, err := execute(t, "status", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "1: unknown")
	assert.Zero(t, adminID)
}

func TestDenyWithoutPendingRequest(t *testing.T) {
	useMemoryStore(t, "1")

	out, err := execute(t, "deny", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "10 has no pending request")
}

func TestBanAdminRefused(t *testing.T) {
	useMemoryStore(t, "1")

	_, err := execute(t, "ban", "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCannotBanAdmin)
}

func TestInvalidUserID(t *testing.T) {
	useMemoryStore(t, "1")

	for _, arg := range []string{"abc", "0", "-5"} {
		t.Run(arg, func(t *testing.T) {
			_, err := execute(t, "approve", arg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid user id")
		})
	}
}

func TestApproveThenBanPersists(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("TRANSLATE_BOT_STORAGE_DRIVER", "sqlite")
	t.Setenv("TRANSLATE_BOT_STORAGE_DSN", filepath.Join(dir, "access.db"))
	t.Setenv("ADMIN_USER_ID", "1")

	out, err := execute(t, "approve", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "approved 10")

	out, err = execute(t, "approved")
	require.NoError(t, err)
	assert.Contains(t, out, "USER ID")
	assert.Contains(t, out, "10")

	out, err = execute(t, "ban", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "banned 10")

	out, err = execute(t, "status", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "10: banned")

	out, err = execute(t, "banned")
	require.NoError(t, err)
	assert.Contains(t, out, "10")
}

func TestPendingEmpty(t *testing.T) {
	useMemoryStore(t, "1")

	out, err := execute(t, "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "No pending requests")
}

func TestDenyOpenRequest(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	dsn := filepath.Join(dir, "access.db")
	t.Setenv("TRANSLATE_BOT_STORAGE_DRIVER", "sqlite")
	t.Setenv("TRANSLATE_BOT_STORAGE_DSN", dsn)
	t.Setenv("ADMIN_USER_ID", "1")

	seed, err := access.NewSQLiteStore(dsn)
	require.NoError(t, err)
	created, err := seed.RequestApproval(access.PendingRequest{UserID: 10, RequestID: "req-1", ChatID: 10})
	require.NoError(t, err)
	require.True(t, created)
	require.NoError(t, seed.Close())

	out, err := execute(t, "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "req-1")

	out, err = execute(t, "deny", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "denied 10")

	out, err = execute(t, "status", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "10: unknown")
}
