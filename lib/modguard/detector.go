// Package modguard implements the moderation decision engine: cheap local
// suspicion heuristics gating an external LLM classifier, producing a
// three-way verdict per message.
package modguard

import (
	"context"
	"log"
	"time"

	"github.com/verist/tg-guard/lib/modcheck"
)

//go:generate moq --out mocks/classifier.go --pkg mocks --with-resets --skip-ensure . Classifier

// Classifier is the external spam oracle. Classify must return an error,
// distinct from a negative verdict, on transport failure or a malformed
// response body.
type Classifier interface {
	Classify(ctx context.Context, msg string, msgContext []string) (modcheck.ClassifierVerdict, error)
}

// History is the per-user recent-message window consulted for classifier context.
type History interface {
	Push(userID int64, ts time.Time, text string)
	Context(userID int64, ref time.Time, window time.Duration) []string
}

// Joins is the first-write-wins registry of account join dates.
type Joins interface {
	Add(userID int64, ts time.Time) bool
	IsRecent(userID int64, now time.Time, threshold time.Duration) bool
}

// Config is a set of parameters for Detector.
type Config struct {
	RecentAccountThreshold time.Duration // accounts younger than this are suspicious, default 1h
	ContextWindow          time.Duration // how far back history entries count as context, default 5m
}

// Detector evaluates message events and produces verdicts. Stateless itself;
// all shared state lives in the injected history and joins stores.
type Detector struct {
	Config
	classifier Classifier
	allowList  *AllowList
	history    History
	joins      Joins
	luaRule    *LuaRule

	now func() time.Time // for tests
}

// NewDetector makes a detector with the given collaborators.
func NewDetector(cfg Config, classifier Classifier, allowList *AllowList, history History, joins Joins) *Detector {
	if cfg.RecentAccountThreshold == 0 {
		cfg.RecentAccountThreshold = time.Hour
	}
	if cfg.ContextWindow == 0 {
		cfg.ContextWindow = 5 * time.Minute
	}
	if allowList == nil {
		allowList = NewAllowList()
	}
	return &Detector{Config: cfg, classifier: classifier, allowList: allowList,
		history: history, joins: joins, now: time.Now}
}

// WithLuaRule attaches an optional operator-provided suspicion rule.
func (d *Detector) WithLuaRule(rule *LuaRule) *Detector {
	d.luaRule = rule
	return d
}

// Check evaluates a single message or edit event. History and join records are
// updated unconditionally first, then the suspicion gate decides if the
// classifier is consulted at all. A failed classifier call is conclusively
// MaybeSpam for this message; retry policy, if any, belongs to the transport
// adapter, not here.
func (d *Detector) Check(ctx context.Context, req modcheck.Request) modcheck.Verdict {
	if req.JoinedAt != nil {
		d.joins.Add(req.UserID, *req.JoinedAt)
	}
	d.history.Push(req.UserID, req.Sent, req.Msg)

	suspicious := SuspiciousURL(req.Msg, d.allowList.Domains()) || req.MassMention
	if !suspicious && d.luaRule != nil {
		hit, details, err := d.luaRule.Check(req)
		if err != nil {
			log.Printf("[WARN] lua rule failed for user %d: %v", req.UserID, err)
		}
		if hit {
			log.Printf("[DEBUG] lua rule flagged message from %q: %s", req.UserName, details)
			suspicious = true
		}
	}

	if !suspicious {
		return modcheck.Normal()
	}
	if !d.joins.IsRecent(req.UserID, d.now(), d.RecentAccountThreshold) {
		// established account, not worth an external call
		return modcheck.Normal()
	}

	if d.classifier == nil {
		log.Printf("[WARN] no classifier configured, suspicious message from %q unconfirmed", req.UserName)
		return modcheck.MaybeSpam()
	}

	verdict, err := d.classifier.Classify(ctx, req.Msg, d.context(req))
	if err != nil {
		log.Printf("[WARN] classifier failed for user %q (%d): %v", req.UserName, req.UserID, err)
		return modcheck.MaybeSpam()
	}

	if !verdict.IsSpam {
		log.Printf("[DEBUG] classifier cleared message from %q: %s", req.UserName, verdict.Reason)
		return modcheck.Normal()
	}
	return modcheck.Spam(verdict.Reason)
}

// context returns the user's recent messages, excluding the candidate itself
// which was pushed into the window right before evaluation.
func (d *Detector) context(req modcheck.Request) []string {
	res := d.history.Context(req.UserID, req.Sent, d.ContextWindow)
	if n := len(res); n > 0 && res[n-1] == req.Msg {
		res = res[:n-1]
	}
	return res
}
