package modguard

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verist/tg-guard/lib/modcheck"
	"github.com/verist/tg-guard/lib/modguard/mocks"
	"github.com/verist/tg-guard/lib/track"
)

func TestDetector_Check(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	joinedRecently := now.Add(-30 * time.Minute)
	joinedLongAgo := now.Add(-48 * time.Hour)

	newDetector := func(classifier Classifier) (*Detector, *track.JoinRegistry) {
		joins := track.NewJoinRegistry()
		d := NewDetector(Config{}, classifier, NewAllowList(), track.NewHistoryWindow(3), joins)
		d.now = func() time.Time { return now }
		return d, joins
	}

	t.Run("clean message from new account", func(t *testing.T) {
		classifier := &mocks.ClassifierMock{}
		d, _ := newDetector(classifier)
		verdict := d.Check(context.Background(), modcheck.Request{
			Msg: "hello everyone", UserID: 1, UserName: "user1", Sent: now, JoinedAt: &joinedRecently})
		assert.Equal(t, modcheck.StatusNormal, verdict.Status)
		assert.Empty(t, classifier.ClassifyCalls(), "classifier not consulted for clean messages")
	})

	t.Run("allowed link not suspicious", func(t *testing.T) {
		classifier := &mocks.ClassifierMock{}
		d, _ := newDetector(classifier)
		verdict := d.Check(context.Background(), modcheck.Request{
			Msg: "see https://github.com/foo", UserID: 1, UserName: "user1", Sent: now, JoinedAt: &joinedRecently})
		assert.Equal(t, modcheck.StatusNormal, verdict.Status)
		assert.Empty(t, classifier.ClassifyCalls())
	})

	t.Run("suspicious link from established account", func(t *testing.T) {
		classifier := &mocks.ClassifierMock{}
		d, _ := newDetector(classifier)
		verdict := d.Check(context.Background(), modcheck.Request{
			Msg: "cheap pills https://spammy.example.net", UserID: 1, UserName: "user1", Sent: now, JoinedAt: &joinedLongAgo})
		assert.Equal(t, modcheck.StatusNormal, verdict.Status)
		assert.Empty(t, classifier.ClassifyCalls(), "established accounts skip the classifier")
	})

	t.Run("suspicious link from new account, classifier confirms", func(t *testing.T) {
		classifier := &mocks.ClassifierMock{
			ClassifyFunc: func(ctx context.Context, msg string, msgContext []string) (modcheck.ClassifierVerdict, error) {
				return modcheck.ClassifierVerdict{IsSpam: true, Reason: "phishing link"}, nil
			},
		}
		d, _ := newDetector(classifier)
		verdict := d.Check(context.Background(), modcheck.Request{
			Msg: "free money https://spammy.example.net", UserID: 1, UserName: "user1", Sent: now, JoinedAt: &joinedRecently})
		assert.Equal(t, modcheck.StatusSpam, verdict.Status)
		assert.Equal(t, "phishing link", verdict.Reason)
	})

	t.Run("suspicious link from new account, classifier clears", func(t *testing.T) {
		classifier := &mocks.ClassifierMock{
			ClassifyFunc: func(ctx context.Context, msg string, msgContext []string) (modcheck.ClassifierVerdict, error) {
				return modcheck.ClassifierVerdict{IsSpam: false, Reason: "looks legit"}, nil
			},
		}
		d, _ := newDetector(classifier)
		verdict := d.Check(context.Background(), modcheck.Request{
			Msg: "my project https://my-site.example.org", UserID: 1, UserName: "user1", Sent: now, JoinedAt: &joinedRecently})
		assert.Equal(t, modcheck.StatusNormal, verdict.Status)
	})

	t.Run("classifier failure leaves suspicion unconfirmed", func(t *testing.T) {
		classifier := &mocks.ClassifierMock{
			ClassifyFunc: func(ctx context.Context, msg string, msgContext []string) (modcheck.ClassifierVerdict, error) {
				return modcheck.ClassifierVerdict{}, assert.AnError
			},
		}
		d, _ := newDetector(classifier)
		verdict := d.Check(context.Background(), modcheck.Request{
			Msg: "click https://spammy.example.net", UserID: 1, UserName: "user1", Sent: now, JoinedAt: &joinedRecently})
		assert.Equal(t, modcheck.StatusMaybeSpam, verdict.Status)
	})

	t.Run("no classifier configured", func(t *testing.T) {
		d, _ := newDetector(nil)
		verdict := d.Check(context.Background(), modcheck.Request{
			Msg: "click https://spammy.example.net", UserID: 1, UserName: "user1", Sent: now, JoinedAt: &joinedRecently})
		assert.Equal(t, modcheck.StatusMaybeSpam, verdict.Status)
	})

	t.Run("mass mention suspicious without link", func(t *testing.T) {
		classifier := &mocks.ClassifierMock{
			ClassifyFunc: func(ctx context.Context, msg string, msgContext []string) (modcheck.ClassifierVerdict, error) {
				return modcheck.ClassifierVerdict{IsSpam: true, Reason: "mention blast"}, nil
			},
		}
		d, _ := newDetector(classifier)
		verdict := d.Check(context.Background(), modcheck.Request{
			Msg: "hello", UserID: 1, UserName: "user1", Sent: now, MassMention: true, JoinedAt: &joinedRecently})
		assert.Equal(t, modcheck.StatusSpam, verdict.Status)
	})

	t.Run("unknown account treated as new", func(t *testing.T) {
		classifier := &mocks.ClassifierMock{
			ClassifyFunc: func(ctx context.Context, msg string, msgContext []string) (modcheck.ClassifierVerdict, error) {
				return modcheck.ClassifierVerdict{IsSpam: true, Reason: "spam"}, nil
			},
		}
		d, _ := newDetector(classifier)
		verdict := d.Check(context.Background(), modcheck.Request{
			Msg: "click https://spammy.example.net", UserID: 99, UserName: "drifter", Sent: now})
		assert.Equal(t, modcheck.StatusSpam, verdict.Status)
	})

	t.Run("join date recorded once", func(t *testing.T) {
		d, joins := newDetector(nil)
		first := now.Add(-10 * time.Minute)
		later := now.Add(-5 * time.Minute)
		d.Check(context.Background(), modcheck.Request{Msg: "hi", UserID: 7, Sent: now, JoinedAt: &first})
		d.Check(context.Background(), modcheck.Request{Msg: "hi again", UserID: 7, Sent: now.Add(time.Second), JoinedAt: &later})
		ts, ok := joins.JoinDate(7)
		require.True(t, ok)
		assert.Equal(t, first, ts)
	})
}

func TestDetector_Context(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	joined := now.Add(-10 * time.Minute)

	var gotContext []string
	classifier := &mocks.ClassifierMock{
		ClassifyFunc: func(ctx context.Context, msg string, msgContext []string) (modcheck.ClassifierVerdict, error) {
			gotContext = msgContext
			return modcheck.ClassifierVerdict{IsSpam: false}, nil
		},
	}
	d := NewDetector(Config{}, classifier, NewAllowList(), track.NewHistoryWindow(3), track.NewJoinRegistry())
	d.now = func() time.Time { return now }

	d.Check(context.Background(), modcheck.Request{Msg: "first", UserID: 1, Sent: now.Add(-2 * time.Minute), JoinedAt: &joined})
	d.Check(context.Background(), modcheck.Request{Msg: "second", UserID: 1, Sent: now.Add(-time.Minute), JoinedAt: &joined})
	d.Check(context.Background(), modcheck.Request{Msg: "now https://spammy.example.net", UserID: 1, Sent: now, JoinedAt: &joined})

	assert.Equal(t, []string{"first", "second"}, gotContext, "candidate itself excluded from context")
}

func TestDetector_WithLuaRule(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	joined := now.Add(-10 * time.Minute)

	script := `
function check(req)
	if string.find(req.msg, "crypto") then
		return true, "crypto keyword"
	end
	return false, ""
end
`
	file := filepath.Join(t.TempDir(), "rule.lua")
	require.NoError(t, os.WriteFile(file, []byte(script), 0o600))
	rule, err := NewLuaRule(file)
	require.NoError(t, err)
	defer rule.Close()

	classifier := &mocks.ClassifierMock{
		ClassifyFunc: func(ctx context.Context, msg string, msgContext []string) (modcheck.ClassifierVerdict, error) {
			return modcheck.ClassifierVerdict{IsSpam: true, Reason: "confirmed"}, nil
		},
	}
	d := NewDetector(Config{}, classifier, NewAllowList(), track.NewHistoryWindow(3), track.NewJoinRegistry()).WithLuaRule(rule)
	d.now = func() time.Time { return now }

	t.Run("rule flags message", func(t *testing.T) {
		verdict := d.Check(context.Background(), modcheck.Request{
			Msg: "best crypto deal", UserID: 1, Sent: now, JoinedAt: &joined})
		assert.Equal(t, modcheck.StatusSpam, verdict.Status)
	})

	t.Run("rule passes message", func(t *testing.T) {
		classifier.ResetCalls()
		verdict := d.Check(context.Background(), modcheck.Request{
			Msg: "regular chat", UserID: 1, Sent: now.Add(time.Second), JoinedAt: &joined})
		assert.Equal(t, modcheck.StatusNormal, verdict.Status)
		assert.Empty(t, classifier.ClassifyCalls())
	})
}
