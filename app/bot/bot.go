// Package bot defines the message types passed between the telegram listener,
// the moderation pipeline and the reply features, plus small text utilities
// (chunk splitting, audit sanitizing).
package bot

import (
	"fmt"
	"strings"
	"time"
)

// Message is the primary record to pass message events through the pipeline
type Message struct {
	ID     int
	From   User
	ChatID int64
	Sent   time.Time
	Text   string `json:",omitempty"`

	MassMention bool `json:",omitempty"` // message mentions everyone
	Edited      bool `json:",omitempty"` // this is an edit of an earlier message
}

// User defines user info of the Message
type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"user_name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// Response describes a reply the bot wants to send back to the chat
type Response struct {
	Text    string
	Send    bool // status
	ReplyTo int  // message to reply to, if 0 then no reply but common message
}

// DisplayName returns user's display name or username or id
func DisplayName(msg Message) string {
	displayUsername := msg.From.DisplayName
	if displayUsername == "" {
		displayUsername = msg.From.Username
	}
	if displayUsername == "" {
		displayUsername = fmt.Sprintf("%d", msg.From.ID)
	}
	return strings.TrimSpace(displayUsername)
}
