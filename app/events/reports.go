package events

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	tbapi "github.com/OvyFlash/telegram-bot-api"
	"github.com/forPelevin/gomoji"
	cache "github.com/go-pkgz/expirable-cache/v3"

	"github.com/verist/tg-guard/app/storage"
)

//go:generate moq --out mocks/report_store.go --pkg mocks --with-resets --skip-ensure . ReportStore

// ReportStore persists triggered community reports
type ReportStore interface {
	Save(ctx context.Context, rec storage.ReportRecord) error
}

// reactionReports tracks flag reactions on recent messages. Once enough
// distinct users flag the same message within the window, the author is timed
// out for a short period. Reaction state expires with the window, so stale
// reports never accumulate into a trigger.
type reactionReports struct {
	tbAPI   TbAPI
	store   ReportStore
	params  ReportParams
	authors cache.Cache[int, reportTarget]  // msg id -> author, populated from the message stream
	states  cache.Cache[int, *reportState]  // msg id -> reaction state
	mu      sync.Mutex
}

// ReportParams is a set of parameters for reaction reports
type ReportParams struct {
	Emoji     string        // reaction emoji that counts as a report, default 🚩
	Threshold int           // distinct reactors to trigger, default 4
	Window    time.Duration // how long reports on a message stay countable, default 10m
	Timeout   time.Duration // mute duration on trigger, default 15m
	Dry       bool
}

type reportTarget struct {
	authorID   int64
	authorName string
}

type reportState struct {
	reactors  map[int64]struct{}
	triggered bool
	deadline  time.Time
}

const reportsMaxTracked = 10000

func newReactionReports(tbAPI TbAPI, store ReportStore, params ReportParams) *reactionReports {
	if params.Emoji == "" {
		params.Emoji = "🚩"
	}
	if params.Threshold == 0 {
		params.Threshold = 4
	}
	if params.Window == 0 {
		params.Window = 10 * time.Minute
	}
	if params.Timeout == 0 {
		params.Timeout = 15 * time.Minute
	}
	return &reactionReports{
		tbAPI:   tbAPI,
		store:   store,
		params:  params,
		authors: cache.NewCache[int, reportTarget]().WithMaxKeys(reportsMaxTracked).WithTTL(params.Window * 2),
		states:  cache.NewCache[int, *reportState]().WithMaxKeys(reportsMaxTracked).WithTTL(params.Window),
	}
}

// TrackMessage remembers the author of a message so later reactions can be
// attributed. Telegram reaction updates carry no author info.
func (r *reactionReports) TrackMessage(msgID int, authorID int64, authorName string) {
	r.authors.Set(msgID, reportTarget{authorID: authorID, authorName: authorName}, 0)
}

// HandleReaction processes a reaction update and times the author out when
// the report threshold is crossed. Only the first crossing acts, repeated
// reactions on an already triggered message are counted but ignored.
func (r *reactionReports) HandleReaction(ctx context.Context, upd *tbapi.MessageReactionUpdated) error {
	if upd.User == nil {
		return nil // anonymous reactions can't be counted as distinct reporters
	}
	if !r.isReport(upd.NewReaction) {
		return nil
	}

	target, found := r.authors.Get(upd.MessageID)
	if !found {
		log.Printf("[DEBUG] reaction on untracked message %d, ignored", upd.MessageID)
		return nil
	}
	if upd.User.ID == target.authorID {
		return nil // self-reports don't count
	}

	r.mu.Lock()
	state, found := r.states.Get(upd.MessageID)
	if !found {
		state = &reportState{reactors: map[int64]struct{}{}, deadline: time.Now().Add(r.params.Window)}
		r.states.Set(upd.MessageID, state, 0)
	}
	state.reactors[upd.User.ID] = struct{}{}
	count := len(state.reactors)
	trigger := count >= r.params.Threshold && !state.triggered && time.Now().Before(state.deadline)
	if trigger {
		state.triggered = true
	}
	r.mu.Unlock()

	log.Printf("[DEBUG] report reaction on msg %d from %d, %d/%d", upd.MessageID, upd.User.ID, count, r.params.Threshold)
	if !trigger {
		return nil
	}

	log.Printf("[INFO] report threshold reached for msg %d, author %q (%d)", upd.MessageID, target.authorName, target.authorID)
	req := restrictRequest{tbAPI: r.tbAPI, userID: target.authorID, chatID: upd.Chat.ID,
		duration: r.params.Timeout, userName: target.authorName, dry: r.params.Dry}
	if err := restrictUser(req); err != nil {
		return fmt.Errorf("failed to restrict reported user %d: %w", target.authorID, err)
	}

	if r.store != nil {
		rec := storage.ReportRecord{MsgID: upd.MessageID, ChatID: upd.Chat.ID, AuthorID: target.authorID, Reactors: count}
		if err := r.store.Save(ctx, rec); err != nil {
			log.Printf("[WARN] failed to save report record for msg %d: %v", upd.MessageID, err)
		}
	}
	return nil
}

// isReport reports if any of the new reactions matches the report emoji.
// Custom and paid reaction types never count.
func (r *reactionReports) isReport(reactions []tbapi.ReactionType) bool {
	for _, reaction := range reactions {
		if reaction.Type == "emoji" && reaction.Emoji == r.params.Emoji {
			if _, err := gomoji.GetInfo(reaction.Emoji); err != nil {
				continue
			}
			return true
		}
	}
	return false
}
