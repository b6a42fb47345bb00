package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verist/tg-guard/app/storage/engine"
)

func newTestDB(t *testing.T) *engine.SQL {
	t.Helper()
	db, err := engine.NewSqlite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewAuditLog(t *testing.T) {
	t.Run("creates table", func(t *testing.T) {
		db := newTestDB(t)
		a, err := NewAuditLog(context.Background(), db)
		require.NoError(t, err)
		require.NotNil(t, a)

		// second call is idempotent
		_, err = NewAuditLog(context.Background(), db)
		require.NoError(t, err)
	})

	t.Run("nil db", func(t *testing.T) {
		_, err := NewAuditLog(context.Background(), nil)
		assert.ErrorContains(t, err, "db connection is nil")
	})
}

func TestAuditLog_SaveAndRecent(t *testing.T) {
	ctx := context.Background()
	a, err := NewAuditLog(ctx, newTestDB(t))
	require.NoError(t, err)

	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	entries := []AuditEntry{
		{MsgID: 1, ChatID: 123, UserID: 777, UserName: "first", Text: "spam one", Verdict: "maybe_spam", Timestamp: base},
		{MsgID: 2, ChatID: 123, UserID: 777, UserName: "first", Text: "spam two", Verdict: "spam", Reason: "crypto scam", TimedOut: true, Timestamp: base.Add(time.Minute)},
		{MsgID: 3, ChatID: 456, UserID: 888, UserName: "second", Text: "honeypot hit", Verdict: "honeypot", Banned: true, Timestamp: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		require.NoError(t, a.Save(ctx, e))
	}

	res, err := a.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, res, 3)

	assert.Equal(t, 3, res[0].MsgID, "newest first")
	assert.Equal(t, "honeypot", res[0].Verdict)
	assert.True(t, res[0].Banned)
	assert.False(t, res[0].TimedOut)

	assert.Equal(t, 2, res[1].MsgID)
	assert.Equal(t, "crypto scam", res[1].Reason)
	assert.True(t, res[1].TimedOut)

	assert.Equal(t, 1, res[2].MsgID)
	assert.Equal(t, "spam one", res[2].Text)
	assert.Equal(t, int64(777), res[2].UserID)
}

func TestAuditLog_RecentLimit(t *testing.T) {
	ctx := context.Background()
	a, err := NewAuditLog(ctx, newTestDB(t))
	require.NoError(t, err)

	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, a.Save(ctx, AuditEntry{MsgID: i + 1, UserID: 777, Verdict: "spam", Timestamp: base.Add(time.Duration(i) * time.Second)}))
	}

	res, err := a.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, 5, res[0].MsgID)
	assert.Equal(t, 4, res[1].MsgID)

	res, err = a.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, res, 5, "zero limit defaults to 100")
}

func TestAuditLog_CountSince(t *testing.T) {
	ctx := context.Background()
	a, err := NewAuditLog(ctx, newTestDB(t))
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, a.Save(ctx, AuditEntry{MsgID: 1, UserID: 777, Verdict: "spam", Timestamp: now.Add(-2 * time.Hour)}))
	require.NoError(t, a.Save(ctx, AuditEntry{MsgID: 2, UserID: 777, Verdict: "spam", Timestamp: now.Add(-30 * time.Minute)}))
	require.NoError(t, a.Save(ctx, AuditEntry{MsgID: 3, UserID: 888, Verdict: "spam", Timestamp: now.Add(-10 * time.Minute)}))

	count, err := a.CountSince(ctx, 777, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count, "only recent entries for the user")

	count, err = a.CountSince(ctx, 777, now.Add(-3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = a.CountSince(ctx, 999, now.Add(-3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, count, "unknown user")
}

func TestAuditLog_SaveSetsTimestamp(t *testing.T) {
	ctx := context.Background()
	a, err := NewAuditLog(ctx, newTestDB(t))
	require.NoError(t, err)

	require.NoError(t, a.Save(ctx, AuditEntry{MsgID: 1, UserID: 777, Verdict: "spam"}))
	res, err := a.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.WithinDuration(t, time.Now(), res[0].Timestamp, 5*time.Second)
}
