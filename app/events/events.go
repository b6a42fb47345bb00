package events

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tbapi "github.com/OvyFlash/telegram-bot-api"
	"github.com/go-pkgz/repeater"

	"github.com/verist/tg-guard/app/bot"
)

//go:generate moq --out mocks/tb_api.go --pkg mocks --with-resets --skip-ensure . TbAPI
//go:generate moq --out mocks/detector.go --pkg mocks --with-resets --skip-ensure . Detector
//go:generate moq --out mocks/auditor.go --pkg mocks --with-resets --skip-ensure . Auditor

// TbAPI is an interface for telegram bot API, only subset of methods used
type TbAPI interface {
	GetUpdatesChan(config tbapi.UpdateConfig) tbapi.UpdatesChannel
	Send(c tbapi.Chattable) (tbapi.Message, error)
	Request(c tbapi.Chattable) (*tbapi.APIResponse, error)
	GetChat(config tbapi.ChatInfoConfig) (tbapi.ChatFullInfo, error)
}

// SuperUsers for moderators, messages from them bypass moderation
type SuperUsers []string

// IsSuper checks if username in su list
func (s SuperUsers) IsSuper(userName string) bool {
	for _, super := range s {
		if strings.EqualFold(userName, super) || strings.EqualFold("/"+userName, super) {
			return true
		}
	}
	return false
}

func escapeMarkDownV1Text(text string) string {
	escSymbols := []string{"_", "*", "`", "["}
	for _, esc := range escSymbols {
		text = strings.ReplaceAll(text, esc, "\\"+esc)
	}
	return text
}

// send a message to the telegram as markdown first and if failed - as plain text.
// each attempt is retried a few times as telegram api flakes under load.
func send(ctx context.Context, tbMsg tbapi.Chattable, tbAPI TbAPI) error {
	withParseMode := func(tbMsg tbapi.Chattable, parseMode string) tbapi.Chattable {
		switch msg := tbMsg.(type) {
		case tbapi.MessageConfig:
			msg.ParseMode = parseMode
			msg.LinkPreviewOptions = tbapi.LinkPreviewOptions{IsDisabled: true}
			return msg
		case tbapi.EditMessageTextConfig:
			msg.ParseMode = parseMode
			msg.LinkPreviewOptions = tbapi.LinkPreviewOptions{IsDisabled: true}
			return msg
		}
		return tbMsg // don't touch other types
	}

	trySend := func(m tbapi.Chattable) error {
		return repeater.NewDefault(3, 50*time.Millisecond).Do(ctx, func() error {
			_, err := tbAPI.Send(m)
			return err
		})
	}

	msg := withParseMode(tbMsg, tbapi.ModeMarkdown) // try markdown first
	if err := trySend(msg); err != nil {
		log.Printf("[WARN] failed to send message as markdown, %v", err)
		msg = withParseMode(tbMsg, "") // try plain text
		if err := trySend(msg); err != nil {
			return fmt.Errorf("can't send message to telegram: %w", err)
		}
	}
	return nil
}

type restrictRequest struct {
	tbAPI TbAPI

	userID   int64
	chatID   int64
	duration time.Duration
	userName string

	dry bool
	ban bool // remove from chat instead of muting
}

// The bot must be an administrator in the supergroup and have the
// appropriate admin rights for restrictions and bans to work.
func restrictUser(r restrictRequest) error {
	// From Telegram Bot API documentation:
	// > If user is restricted for more than 366 days or less than 30 seconds from the current time,
	// > they are considered to be restricted forever
	// The API query uses a unix timestamp rather than "ban duration", so short
	// values would land in the 30-second window of a lifetime ban.
	if r.duration < 30*time.Second {
		r.duration = 1 * time.Minute
	}

	if r.dry {
		action := "restrict"
		if r.ban {
			action = "ban"
		}
		log.Printf("[INFO] dry run: %s user %d for %v", action, r.userID, r.duration)
		return nil
	}

	if r.ban {
		resp, err := r.tbAPI.Request(tbapi.BanChatMemberConfig{
			ChatMemberConfig: tbapi.ChatMemberConfig{
				ChatConfig: tbapi.ChatConfig{ChatID: r.chatID},
				UserID:     r.userID,
			},
			UntilDate: time.Now().Add(r.duration).Unix(),
		})
		if err != nil {
			return err
		}
		if !resp.Ok {
			return fmt.Errorf("response is not Ok: %v", string(resp.Result))
		}
		log.Printf("[INFO] user %s banned by bot for %v", r.userName, r.duration)
		return nil
	}

	resp, err := r.tbAPI.Request(tbapi.RestrictChatMemberConfig{
		ChatMemberConfig: tbapi.ChatMemberConfig{
			ChatConfig: tbapi.ChatConfig{ChatID: r.chatID},
			UserID:     r.userID,
		},
		UntilDate: time.Now().Add(r.duration).Unix(),
		Permissions: &tbapi.ChatPermissions{
			CanSendMessages:      false,
			CanSendAudios:        false,
			CanSendDocuments:     false,
			CanSendPhotos:        false,
			CanSendVideos:        false,
			CanSendVideoNotes:    false,
			CanSendVoiceNotes:    false,
			CanSendOtherMessages: false,
			CanChangeInfo:        false,
			CanInviteUsers:       false,
			CanPinMessages:       false,
		},
	})
	if err != nil {
		return err
	}
	if !resp.Ok {
		return fmt.Errorf("response is not Ok: %v", string(resp.Result))
	}
	log.Printf("[INFO] %s restricted by bot for %v", r.userName, r.duration)
	return nil
}

func deleteMessage(tbAPI TbAPI, chatID int64, msgID int) error {
	if _, err := tbAPI.Request(tbapi.DeleteMessageConfig{BaseChatMessage: tbapi.BaseChatMessage{
		MessageID:  msgID,
		ChatConfig: tbapi.ChatConfig{ChatID: chatID},
	}}); err != nil {
		return fmt.Errorf("failed to delete message %d: %w", msgID, err)
	}
	return nil
}

// massMentionThreshold is how many distinct mentions flag a message as mentioning everyone
const massMentionThreshold = 5

func transform(msg *tbapi.Message) *bot.Message {
	message := bot.Message{
		ID:   msg.MessageID,
		Sent: msg.Time(),
		Text: msg.Text,
	}
	message.ChatID = msg.Chat.ID

	if msg.From != nil {
		message.From = bot.User{
			ID:       msg.From.ID,
			Username: msg.From.UserName,
		}
		if strings.TrimSpace(msg.From.FirstName) != "" {
			message.From.DisplayName = msg.From.FirstName
		}
		if strings.TrimSpace(msg.From.LastName) != "" {
			message.From.DisplayName += " " + msg.From.LastName
		}
	}

	if msg.Caption != "" {
		if message.Text == "" {
			message.Text = msg.Caption
		} else {
			message.Text += "\n" + msg.Caption
		}
	}

	mentions := 0
	for _, entity := range msg.Entities {
		if entity.Type == "mention" || entity.Type == "text_mention" {
			mentions++
		}
	}
	message.MassMention = mentions >= massMentionThreshold

	return &message
}
