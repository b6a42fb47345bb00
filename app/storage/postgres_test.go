package storage

import (
	"context"
	"testing"
	"time"

	"github.com/go-pkgz/testutils/containers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verist/tg-guard/app/storage/engine"
)

// exercises both stores against a real postgres, the sqlite tests cover the
// rest of the behavior.
func TestStores_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skip postgres test in short mode")
	}

	ctx := context.Background()
	pg := containers.NewPostgresTestContainerWithDB(ctx, t, "tg_guard_test")
	db, err := engine.NewPostgres(pg.ConnectionString())
	require.NoError(t, err)
	defer db.Close()

	require.Equal(t, engine.Postgres, db.Type())

	t.Run("audit log", func(t *testing.T) {
		a, err := NewAuditLog(ctx, db)
		require.NoError(t, err)

		base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
		require.NoError(t, a.Save(ctx, AuditEntry{MsgID: 1, ChatID: 123, UserID: 777, UserName: "user",
			Text: "spam text", Verdict: "spam", Reason: "scam", TimedOut: true, Timestamp: base}))
		require.NoError(t, a.Save(ctx, AuditEntry{MsgID: 2, ChatID: 123, UserID: 777, UserName: "user",
			Verdict: "maybe_spam", Timestamp: base.Add(time.Minute)}))

		res, err := a.Recent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, 2, res[0].MsgID, "newest first")
		assert.Equal(t, "scam", res[1].Reason)
		assert.True(t, res[1].TimedOut)

		count, err := a.CountSince(ctx, 777, base.Add(30*time.Second))
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("reports", func(t *testing.T) {
		r, err := NewReports(ctx, db)
		require.NoError(t, err)

		require.NoError(t, r.Save(ctx, ReportRecord{MsgID: 1, ChatID: 123, AuthorID: 777, Reactors: 4}))
		res, err := r.Recent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, int64(777), res[0].AuthorID)
	})
}
