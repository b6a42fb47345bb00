package server

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	tbapi "github.com/OvyFlash/telegram-bot-api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verist/tg-guard/app/server/mocks"
	"github.com/verist/tg-guard/app/storage"
	"github.com/verist/tg-guard/app/storage/engine"
)

func newTestWeb(t *testing.T, mockAPI *mocks.TbAPIMock) *Web {
	t.Helper()
	db, err := engine.NewSqlite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	audit, err := storage.NewAuditLog(context.Background(), db)
	require.NoError(t, err)

	web, err := NewWeb(mockAPI, audit, Params{Secret: "secret", URL: "http://localhost", TgGroup: "123"})
	require.NoError(t, err)
	return web
}

func TestNewWeb(t *testing.T) {
	t.Run("numeric group", func(t *testing.T) {
		web, err := NewWeb(&mocks.TbAPIMock{}, nil, Params{TgGroup: "123"})
		require.NoError(t, err)
		assert.Equal(t, int64(123), web.chatID)
	})

	t.Run("group resolved by name", func(t *testing.T) {
		mockAPI := &mocks.TbAPIMock{
			GetChatFunc: func(config tbapi.ChatInfoConfig) (tbapi.ChatFullInfo, error) {
				assert.Equal(t, "@mygroup", config.SuperGroupUsername)
				return tbapi.ChatFullInfo{Chat: tbapi.Chat{ID: 456}}, nil
			},
		}
		web, err := NewWeb(mockAPI, nil, Params{TgGroup: "mygroup"})
		require.NoError(t, err)
		assert.Equal(t, int64(456), web.chatID)
	})

	t.Run("group resolution failed", func(t *testing.T) {
		mockAPI := &mocks.TbAPIMock{
			GetChatFunc: func(config tbapi.ChatInfoConfig) (tbapi.ChatFullInfo, error) {
				return tbapi.ChatFullInfo{}, fmt.Errorf("no such group")
			},
		}
		_, err := NewWeb(mockAPI, nil, Params{TgGroup: "missing"})
		assert.ErrorContains(t, err, "can't get chat ID for missing")
	})
}

func TestWeb_AuditHandler(t *testing.T) {
	web := newTestWeb(t, &mocks.TbAPIMock{})

	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		entry := storage.AuditEntry{MsgID: i + 1, UserID: 777, Verdict: "spam", Timestamp: base.Add(time.Duration(i) * time.Second)}
		require.NoError(t, web.Audit.Save(context.Background(), entry))
	}

	t.Run("all entries", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/audit", http.NoBody)
		w := httptest.NewRecorder()
		web.auditHandler(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Count   int                  `json:"count"`
			Entries []storage.AuditEntry `json:"entries"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 3, resp.Count)
		assert.Equal(t, 3, resp.Entries[0].MsgID, "newest first")
	})

	t.Run("with limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/audit?limit=1", http.NoBody)
		w := httptest.NewRecorder()
		web.auditHandler(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Count)
	})

	t.Run("bad limit", func(t *testing.T) {
		for _, limit := range []string{"bogus", "-1", "0"} {
			req := httptest.NewRequest(http.MethodGet, "/audit?limit="+limit, http.NoBody)
			w := httptest.NewRecorder()
			web.auditHandler(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code, "limit %q", limit)
		}
	})
}

func TestWeb_UnbanHandler(t *testing.T) {
	token := func(userID int64, secret string) string {
		return fmt.Sprintf("%x", sha256.Sum256([]byte(fmt.Sprintf("%d::%s", userID, secret))))
	}

	t.Run("valid token unbans", func(t *testing.T) {
		mockAPI := &mocks.TbAPIMock{
			RequestFunc: func(c tbapi.Chattable) (*tbapi.APIResponse, error) {
				return &tbapi.APIResponse{Ok: true}, nil
			},
		}
		web := newTestWeb(t, mockAPI)

		url := fmt.Sprintf("/unban?user=777&token=%s", token(777, "secret"))
		w := httptest.NewRecorder()
		web.unbanHandler(w, httptest.NewRequest(http.MethodGet, url, http.NoBody))

		assert.Equal(t, http.StatusOK, w.Code)
		require.Len(t, mockAPI.RequestCalls(), 1)
		unban, ok := mockAPI.RequestCalls()[0].C.(tbapi.UnbanChatMemberConfig)
		require.True(t, ok)
		assert.Equal(t, int64(777), unban.UserID)
		assert.Equal(t, int64(123), unban.ChatConfig.ChatID)
	})

	t.Run("invalid token rejected", func(t *testing.T) {
		mockAPI := &mocks.TbAPIMock{}
		web := newTestWeb(t, mockAPI)

		url := fmt.Sprintf("/unban?user=777&token=%s", token(777, "wrong-secret"))
		w := httptest.NewRecorder()
		web.unbanHandler(w, httptest.NewRequest(http.MethodGet, url, http.NoBody))

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, mockAPI.RequestCalls())
	})

	t.Run("token for another user rejected", func(t *testing.T) {
		mockAPI := &mocks.TbAPIMock{}
		web := newTestWeb(t, mockAPI)

		url := fmt.Sprintf("/unban?user=777&token=%s", token(888, "secret"))
		w := httptest.NewRecorder()
		web.unbanHandler(w, httptest.NewRequest(http.MethodGet, url, http.NoBody))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("bad user id", func(t *testing.T) {
		web := newTestWeb(t, &mocks.TbAPIMock{})
		w := httptest.NewRecorder()
		web.unbanHandler(w, httptest.NewRequest(http.MethodGet, "/unban?user=bogus&token=x", http.NoBody))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("api failure reported", func(t *testing.T) {
		mockAPI := &mocks.TbAPIMock{
			RequestFunc: func(c tbapi.Chattable) (*tbapi.APIResponse, error) {
				return nil, fmt.Errorf("api down")
			},
		}
		web := newTestWeb(t, mockAPI)

		url := fmt.Sprintf("/unban?user=777&token=%s", token(777, "secret"))
		w := httptest.NewRecorder()
		web.unbanHandler(w, httptest.NewRequest(http.MethodGet, url, http.NoBody))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestWeb_UnbanURL(t *testing.T) {
	web, err := NewWeb(&mocks.TbAPIMock{}, nil, Params{Secret: "secret", URL: "https://example.com", TgGroup: "123"})
	require.NoError(t, err)

	url := web.UnbanURL(777)
	assert.Contains(t, url, "https://example.com/unban?user=777&token=")

	// the link must round-trip through the handler's token check
	expToken := fmt.Sprintf("%x", sha256.Sum256([]byte(fmt.Sprintf("%d::%s", int64(777), "secret"))))
	assert.Contains(t, url, expToken)
}

func TestWeb_Run(t *testing.T) {
	web := newTestWeb(t, &mocks.TbAPIMock{})
	web.ListenAddr = "127.0.0.1:18643"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- web.Run(ctx) }()

	// wait for the server to come up
	var resp *http.Response
	var err error
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://127.0.0.1:18643/ping")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
