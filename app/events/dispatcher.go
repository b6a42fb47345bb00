package events

import (
	"context"
	"fmt"
	"log"
	"time"

	tbapi "github.com/OvyFlash/telegram-bot-api"
	"github.com/hashicorp/go-multierror"

	"github.com/verist/tg-guard/app/bot"
	"github.com/verist/tg-guard/app/storage"
	"github.com/verist/tg-guard/lib/modcheck"
)

// Auditor persists dispatched action records
type Auditor interface {
	Save(ctx context.Context, entry storage.AuditEntry) error
}

// ActionDispatcher turns verdicts into telegram actions. All steps of a
// dispatch are best-effort: a failed step is recorded and the remaining steps
// still run, the combined error is returned to the caller.
type ActionDispatcher struct {
	DispatcherParams
	tbAPI TbAPI
	audit Auditor
}

// DispatcherParams is a set of parameters for ActionDispatcher
type DispatcherParams struct {
	AuditChatID    int64         // admin chat to post audit records to, 0 disables posting
	SpamTimeout    time.Duration // mute duration for confirmed spam, default 24h
	HoneypotBan    time.Duration // ban duration for honeypot posters, default 7 days
	ExemptUserID   int64         // never acted on, e.g. the honeypot channel relay bot
	WarnTemplate   string        // warning reply for unconfirmed suspicion
	Dry            bool
}

// NewActionDispatcher makes a dispatcher for the given api and audit store.
func NewActionDispatcher(tbAPI TbAPI, audit Auditor, params DispatcherParams) *ActionDispatcher {
	if params.SpamTimeout == 0 {
		params.SpamTimeout = 24 * time.Hour
	}
	if params.HoneypotBan == 0 {
		params.HoneypotBan = 7 * 24 * time.Hour
	}
	if params.WarnTemplate == "" {
		params.WarnTemplate = "%s, your message looks like spam and was removed. Contact the moderators if this is a mistake."
	}
	return &ActionDispatcher{DispatcherParams: params, tbAPI: tbAPI, audit: audit}
}

// Dispatch executes the action sequence for the verdict. Normal verdicts are
// a no-op. Unconfirmed suspicion gets a warning and message removal, confirmed
// spam additionally mutes the author.
func (d *ActionDispatcher) Dispatch(ctx context.Context, msg bot.Message, verdict modcheck.Verdict) error {
	switch verdict.Status {
	case modcheck.StatusNormal:
		return nil
	case modcheck.StatusMaybeSpam, modcheck.StatusSpam:
	default:
		return fmt.Errorf("unknown verdict %q", verdict.Status)
	}

	if msg.From.ID == d.ExemptUserID && d.ExemptUserID != 0 {
		log.Printf("[DEBUG] exempt user %d, dispatch skipped", msg.From.ID)
		return nil
	}

	log.Printf("[INFO] dispatch %s for msg %d from %q (%d)", verdict.Status, msg.ID, bot.DisplayName(msg), msg.From.ID)
	errs := new(multierror.Error)

	warnText := fmt.Sprintf(d.WarnTemplate, escapeMarkDownV1Text(bot.DisplayName(msg)))
	if verdict.Status == modcheck.StatusSpam && verdict.Reason != "" {
		warnText += fmt.Sprintf("\n_%s_", escapeMarkDownV1Text(verdict.Reason))
	}
	if !d.Dry {
		if err := d.sendChunked(ctx, msg.ChatID, warnText); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("failed to warn user %d: %w", msg.From.ID, err))
		}
		if err := deleteMessage(d.tbAPI, msg.ChatID, msg.ID); err != nil {
			errs = multierror.Append(errs, err)
		}
	} else {
		log.Printf("[INFO] dry run: warn and delete msg %d in chat %d", msg.ID, msg.ChatID)
	}

	timedOut := false
	if verdict.Status == modcheck.StatusSpam {
		req := restrictRequest{tbAPI: d.tbAPI, userID: msg.From.ID, chatID: msg.ChatID,
			duration: d.SpamTimeout, userName: bot.DisplayName(msg), dry: d.Dry}
		if err := restrictUser(req); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("failed to restrict user %d: %w", msg.From.ID, err))
		} else {
			timedOut = !d.Dry
		}
	}

	entry := storage.AuditEntry{
		MsgID:    msg.ID,
		ChatID:   msg.ChatID,
		UserID:   msg.From.ID,
		UserName: bot.DisplayName(msg),
		Text:     bot.Sanitize(msg.Text),
		Verdict:  string(verdict.Status),
		Reason:   verdict.Reason,
		TimedOut: timedOut,
	}
	if err := d.logAudit(ctx, entry); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

// Honeypot handles a message posted to the honeypot chat. Anyone posting
// there, except the exempt user, is banned and the message removed.
func (d *ActionDispatcher) Honeypot(ctx context.Context, msg bot.Message) error {
	if msg.From.ID == d.ExemptUserID && d.ExemptUserID != 0 {
		return nil
	}
	log.Printf("[INFO] honeypot hit by %q (%d), msg %d", bot.DisplayName(msg), msg.From.ID, msg.ID)

	errs := new(multierror.Error)
	if !d.Dry {
		if err := deleteMessage(d.tbAPI, msg.ChatID, msg.ID); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	banned := false
	req := restrictRequest{tbAPI: d.tbAPI, userID: msg.From.ID, chatID: msg.ChatID,
		duration: d.HoneypotBan, userName: bot.DisplayName(msg), dry: d.Dry, ban: true}
	if err := restrictUser(req); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("failed to ban user %d: %w", msg.From.ID, err))
	} else {
		banned = !d.Dry
	}

	entry := storage.AuditEntry{
		MsgID:    msg.ID,
		ChatID:   msg.ChatID,
		UserID:   msg.From.ID,
		UserName: bot.DisplayName(msg),
		Text:     bot.Sanitize(msg.Text),
		Verdict:  "honeypot",
		Banned:   banned,
	}
	if err := d.logAudit(ctx, entry); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

// logAudit saves the entry to the store and posts it to the audit chat if set
func (d *ActionDispatcher) logAudit(ctx context.Context, entry storage.AuditEntry) error {
	errs := new(multierror.Error)
	if d.audit != nil {
		if err := d.audit.Save(ctx, entry); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("failed to save audit entry: %w", err))
		}
	}
	if d.AuditChatID != 0 && !d.Dry {
		text := fmt.Sprintf("**%s** [%s](tg://user?id=%d)", entry.Verdict, escapeMarkDownV1Text(entry.UserName), entry.UserID)
		if entry.Reason != "" {
			text += "\n" + escapeMarkDownV1Text(entry.Reason)
		}
		if entry.Text != "" {
			text += "\n\n" + escapeMarkDownV1Text(entry.Text)
		}
		if err := d.sendChunked(ctx, d.AuditChatID, text); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("failed to post audit message: %w", err))
		}
	}
	return errs.ErrorOrNil()
}

// sendChunked splits the text on the telegram message size limit and sends
// each chunk separately. Warning and audit texts carry user content and can
// grow past the limit.
func (d *ActionDispatcher) sendChunked(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range bot.Split(text, maxTelegramMsgSize) {
		if err := send(ctx, tbapi.NewMessage(chatID, chunk), d.tbAPI); err != nil {
			return err
		}
	}
	return nil
}
