// Package modcheck defines the request and verdict types shared between the
// moderation decision engine and its callers.
package modcheck

import (
	"fmt"
	"strings"
	"time"
)

// Request is a single message event to evaluate for moderation.
type Request struct {
	Msg         string     `json:"msg"`          // message text to check
	UserID      int64      `json:"user_id"`      // author id
	UserName    string     `json:"user_name"`    // author name, for logging only
	Sent        time.Time  `json:"sent"`         // message timestamp
	MassMention bool       `json:"mass_mention"` // true if the message mentions everyone
	JoinedAt    *time.Time `json:"joined_at,omitempty"` // author join date if the transport provided it
}

func (r *Request) String() string {
	return fmt.Sprintf("msg:%q, user:%q, id:%d, sent:%s, mass-mention:%v",
		r.Msg, r.UserName, r.UserID, r.Sent.Format(time.RFC3339), r.MassMention)
}

// Status is the outcome kind of a moderation check.
type Status string

// enum of verdict statuses
const (
	StatusNormal    Status = "normal"     // nothing to do
	StatusMaybeSpam Status = "maybe_spam" // suspicious but the classifier was unreachable
	StatusSpam      Status = "spam"       // classifier confirmed spam
)

// Verdict is the result of evaluating one message. Reason is set only for
// StatusSpam and comes verbatim from the classifier.
type Verdict struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Normal makes a no-action verdict.
func Normal() Verdict { return Verdict{Status: StatusNormal} }

// MaybeSpam makes a suspicious-but-unconfirmed verdict.
func MaybeSpam() Verdict { return Verdict{Status: StatusMaybeSpam} }

// Spam makes a confirmed-spam verdict with the classifier's reason.
func Spam(reason string) Verdict { return Verdict{Status: StatusSpam, Reason: reason} }

func (v Verdict) String() string {
	if v.Status == StatusSpam && v.Reason != "" {
		return string(v.Status) + ": " + v.Reason
	}
	return string(v.Status)
}

// ClassifierVerdict is the structured reply of the external classifier oracle.
type ClassifierVerdict struct {
	IsSpam bool   `json:"is_spam"`
	Reason string `json:"reason"`
}

func (c ClassifierVerdict) String() string {
	spamOrHam := "ham"
	if c.IsSpam {
		spamOrHam = "spam"
	}
	return fmt.Sprintf("%s: %s", spamOrHam, strings.TrimSuffix(c.Reason, "."))
}
