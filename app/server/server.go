// Package server provides a small REST API next to the bot: liveness ping,
// read-only access to the audit log and a signed unban link for users timed
// out or banned by mistake.
package server

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	tbapi "github.com/OvyFlash/telegram-bot-api"
	"github.com/didip/tollbooth/v8"
	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/routegroup"

	"github.com/verist/tg-guard/app/storage"
)

//go:generate moq --out mocks/tb_api.go --pkg mocks --with-resets --skip-ensure . TbAPI

// Web is a REST API for audit access and unban actions
type Web struct {
	Params
	TbAPI  TbAPI
	Audit  *storage.AuditLog
	chatID int64
}

// Params defines REST API parameters
type Params struct {
	Secret     string // secret key to sign unban tokens
	URL        string // root url
	ListenAddr string // listen address
	TgGroup    string // telegram group name/id
	Version    string
}

// TbAPI is an interface for telegram bot API, only subset of methods used
type TbAPI interface {
	Request(c tbapi.Chattable) (*tbapi.APIResponse, error)
	GetChat(config tbapi.ChatInfoConfig) (tbapi.ChatFullInfo, error)
}

// NewWeb creates new REST API server
func NewWeb(tbAPI TbAPI, audit *storage.AuditLog, params Params) (*Web, error) {
	res := Web{Params: params, TbAPI: tbAPI, Audit: audit}
	chatID, err := res.getChatID(params.TgGroup)
	if err != nil {
		return nil, fmt.Errorf("can't get chat ID for %s: %w", params.TgGroup, err)
	}
	res.chatID = chatID
	return &res, nil
}

// Run starts the server, blocked call
func (s *Web) Run(ctx context.Context) error {
	router := routegroup.New(http.NewServeMux())
	router.Use(rest.Recoverer(lgr.Default()))
	router.Use(rest.AppInfo("tg-guard", "verist", s.Version), rest.Ping)
	router.Use(tollbooth.HTTPMiddleware(tollbooth.NewLimiter(10, nil)))
	router.Use(rest.SizeLimit(64 * 1024))

	router.HandleFunc("GET /audit", s.auditHandler)
	router.HandleFunc("GET /unban", s.unbanHandler)

	srv := &http.Server{Addr: s.ListenAddr, Handler: router, ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("[WARN] failed to shutdown rest server: %v", err)
		}
	}()

	log.Printf("[INFO] start server on %s", s.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to run server: %w", err)
	}
	return nil
}

// auditHandler returns recent audit entries, GET /audit?limit=<n>
func (s *Web) auditHandler(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			w.WriteHeader(http.StatusBadRequest)
			rest.RenderJSON(w, rest.JSON{"error": "invalid limit"})
			return
		}
		limit = parsed
	}
	entries, err := s.Audit.Recent(r.Context(), limit)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		rest.RenderJSON(w, rest.JSON{"error": "can't get audit entries", "details": err.Error()})
		return
	}
	rest.RenderJSON(w, rest.JSON{"entries": entries, "count": len(entries)})
}

// unbanHandler handles unban requests, GET /unban?user=<user_id>&token=<token>
func (s *Web) unbanHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("user")
	token := r.URL.Query().Get("token")
	userID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		rest.RenderJSON(w, rest.JSON{"error": fmt.Sprintf("failed to get user ID for %q", id)})
		return
	}
	expToken := fmt.Sprintf("%x", sha256.Sum256([]byte(fmt.Sprintf("%d::%s", userID, s.Secret))))
	if len(token) != len(expToken) || subtle.ConstantTimeCompare([]byte(token), []byte(expToken)) != 1 {
		w.WriteHeader(http.StatusForbidden)
		rest.RenderJSON(w, rest.JSON{"error": fmt.Sprintf("invalid token for %q", id)})
		return
	}
	log.Printf("[INFO] unban user %d", userID)
	_, err = s.TbAPI.Request(tbapi.UnbanChatMemberConfig{ChatMemberConfig: tbapi.ChatMemberConfig{
		ChatConfig: tbapi.ChatConfig{ChatID: s.chatID}, UserID: userID}})
	if err != nil {
		log.Printf("[WARN] failed to unban %s, %v", id, err)
		w.WriteHeader(http.StatusInternalServerError)
		rest.RenderJSON(w, rest.JSON{"error": fmt.Sprintf("failed to unban %s", id), "details": err.Error()})
		return
	}
	rest.RenderJSON(w, rest.JSON{"unbanned": userID})
}

// UnbanURL returns URL to unban user
func (s *Web) UnbanURL(userID int64) string {
	key := fmt.Sprintf("%x", sha256.Sum256([]byte(fmt.Sprintf("%d::%s", userID, s.Secret))))
	return fmt.Sprintf("%s/unban?user=%d&token=%s", s.URL, userID, key)
}

func (s *Web) getChatID(group string) (int64, error) {
	chatID, err := strconv.ParseInt(group, 10, 64)
	if err == nil {
		return chatID, nil
	}

	chat, err := s.TbAPI.GetChat(tbapi.ChatInfoConfig{ChatConfig: tbapi.ChatConfig{SuperGroupUsername: "@" + group}})
	if err != nil {
		return 0, fmt.Errorf("can't get chat for %s: %w", group, err)
	}
	return chat.ID, nil
}
