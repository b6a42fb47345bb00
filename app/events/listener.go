// Package events provides event handlers for the telegram bot. It parses
// updates, feeds messages to the moderation detector and dispatches the
// resulting verdicts. It also handles the honeypot chat, community flag
// reports and the chat commands.
package events

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	tbapi "github.com/OvyFlash/telegram-bot-api"

	"github.com/verist/tg-guard/app/bot"
	"github.com/verist/tg-guard/lib/modcheck"
)

//go:generate moq --out mocks/assistant.go --pkg mocks --with-resets --skip-ensure . Assistant
//go:generate moq --out mocks/roadmapper.go --pkg mocks --with-resets --skip-ensure . Roadmapper

// Detector evaluates message events and produces verdicts
type Detector interface {
	Check(ctx context.Context, req modcheck.Request) modcheck.Verdict
}

// Joins registers account join dates observed in the update stream
type Joins interface {
	Add(userID int64, ts time.Time) bool
}

// Assistant answers "!assist" questions, nil disables the feature
type Assistant interface {
	Answer(ctx context.Context, question string) (string, error)
}

// Roadmapper replies to roadmap requests, nil disables the feature. An empty
// reply means the message merely mentioned roadmaps without asking for one.
type Roadmapper interface {
	Roadmap(ctx context.Context, msg bot.Message) (string, error)
}

// maxTelegramMsgSize is the hard limit on a single telegram message
const maxTelegramMsgSize = 4096

// TelegramListener listens to tg updates, forwards them to the detector and
// dispatches verdicts. Not thread safe, but Do processes each update in its
// own goroutine.
type TelegramListener struct {
	TbAPI        TbAPI
	Detector     Detector
	Dispatcher   *ActionDispatcher
	Joins        Joins
	Assistant    Assistant
	Roadmapper   Roadmapper
	ReportStore  ReportStore
	ReportParams ReportParams
	Group        string // can be int64 or public group username (without "@" prefix)
	Honeypot     string // honeypot group, same format, empty disables
	SuperUsers   SuperUsers
	StartupMsg   string
	Dry          bool

	chatID         int64
	honeypotChatID int64
	reports        *reactionReports
	wg             sync.WaitGroup
}

// Do process all events, blocked call
func (l *TelegramListener) Do(ctx context.Context) error {
	log.Printf("[INFO] start telegram listener for %q", l.Group)

	var getChatErr error
	if l.chatID, getChatErr = l.getChatID(l.Group); getChatErr != nil {
		return fmt.Errorf("failed to get chat ID for group %q: %w", l.Group, getChatErr)
	}

	if l.Honeypot != "" {
		if l.honeypotChatID, getChatErr = l.getChatID(l.Honeypot); getChatErr != nil {
			return fmt.Errorf("failed to get chat ID for honeypot group %q: %w", l.Honeypot, getChatErr)
		}
		log.Printf("[INFO] honeypot chat ID: %d", l.honeypotChatID)
	}

	l.reports = newReactionReports(l.TbAPI, l.ReportStore, l.ReportParams)

	if l.StartupMsg != "" && !l.Dry {
		if err := l.sendBotResponse(ctx, bot.Response{Send: true, Text: l.StartupMsg}, l.chatID); err != nil {
			log.Printf("[WARN] failed to send startup message, %v", err)
		}
	}

	u := tbapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "edited_message", "message_reaction"}

	updates := l.TbAPI.GetUpdatesChan(u)

	defer l.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case update, ok := <-updates:
			if !ok {
				return fmt.Errorf("telegram update chan closed")
			}
			// each update handled concurrently, moderation must not delay the intake
			l.wg.Add(1)
			go func(update tbapi.Update) {
				defer l.wg.Done()
				if err := l.procUpdate(ctx, update); err != nil {
					log.Printf("[WARN] failed to process update: %v", err)
				}
			}(update)
		}
	}
}

func (l *TelegramListener) procUpdate(ctx context.Context, update tbapi.Update) error {
	if update.MessageReaction != nil {
		if update.MessageReaction.Chat.ID != l.chatID {
			return nil
		}
		return l.reports.HandleReaction(ctx, update.MessageReaction)
	}

	tbMsg := update.Message
	edited := false
	if tbMsg == nil {
		tbMsg = update.EditedMessage
		edited = true
	}
	if tbMsg == nil {
		return nil
	}

	// join events register the account's first-seen time
	if len(tbMsg.NewChatMembers) > 0 && tbMsg.Chat.ID == l.chatID {
		for _, member := range tbMsg.NewChatMembers {
			if l.Joins.Add(member.ID, tbMsg.Time()) {
				log.Printf("[INFO] new member %q (%d) joined at %s", member.UserName, member.ID, tbMsg.Time())
			}
		}
		return nil
	}

	msg := transform(tbMsg)
	msg.Edited = edited

	if l.honeypotChatID != 0 && msg.ChatID == l.honeypotChatID {
		return l.Dispatcher.Honeypot(ctx, *msg)
	}

	if msg.ChatID != l.chatID {
		return nil
	}
	if strings.TrimSpace(msg.Text) == "" {
		return nil
	}

	log.Printf("[DEBUG] incoming msg from %q (%d): %q", bot.DisplayName(*msg), msg.From.ID, strings.ReplaceAll(msg.Text, "\n", " "))
	if !edited {
		l.reports.TrackMessage(msg.ID, msg.From.ID, bot.DisplayName(*msg))
	}

	if bot.IsAskCommand(*msg) {
		return l.sendBotResponse(ctx, bot.Ask(*msg), msg.ChatID)
	}
	if l.Assistant != nil && bot.IsAssistCommand(*msg) {
		return l.procAssist(ctx, *msg)
	}
	if l.Roadmapper != nil && bot.IsRoadmapTopic(*msg) {
		handled, err := l.procRoadmap(ctx, *msg)
		if err != nil {
			log.Printf("[WARN] roadmap reply failed: %v", err)
		}
		// anything but a confirmed roadmap request still goes through moderation
		if handled {
			return nil
		}
	}

	if l.SuperUsers.IsSuper(msg.From.Username) {
		log.Printf("[DEBUG] superuser %q, moderation skipped", msg.From.Username)
		return nil
	}

	req := modcheck.Request{
		Msg:         msg.Text,
		UserID:      msg.From.ID,
		UserName:    bot.DisplayName(*msg),
		Sent:        msg.Sent,
		MassMention: msg.MassMention,
	}
	verdict := l.Detector.Check(ctx, req)
	return l.Dispatcher.Dispatch(ctx, *msg, verdict)
}

// procAssist answers an "!assist" question, splitting long answers into
// multiple messages.
func (l *TelegramListener) procAssist(ctx context.Context, msg bot.Message) error {
	answer, err := l.Assistant.Answer(ctx, msg.Text)
	if err != nil {
		return fmt.Errorf("assistant failed: %w", err)
	}
	if answer == "" {
		return nil
	}
	for i, chunk := range bot.Split(answer, maxTelegramMsgSize) {
		resp := bot.Response{Text: chunk, Send: true}
		if i == 0 {
			resp.ReplyTo = msg.ID // only the first chunk replies to the question
		}
		if err := l.sendBotResponse(ctx, resp, msg.ChatID); err != nil {
			return err
		}
	}
	return nil
}

// procRoadmap runs roadmap detection and replies with the generated roadmap
// for confirmed requests. Returns false when the message turned out not to be
// a roadmap request and should continue down the pipeline.
func (l *TelegramListener) procRoadmap(ctx context.Context, msg bot.Message) (bool, error) {
	roadmap, err := l.Roadmapper.Roadmap(ctx, msg)
	if err != nil {
		return false, fmt.Errorf("roadmapper failed: %w", err)
	}
	if roadmap == "" {
		return false, nil
	}
	for i, chunk := range bot.Split(roadmap, maxTelegramMsgSize) {
		resp := bot.Response{Text: chunk, Send: true}
		if i == 0 {
			resp.ReplyTo = msg.ID // only the first chunk replies to the request
		}
		if err := l.sendBotResponse(ctx, resp, msg.ChatID); err != nil {
			return true, err
		}
	}
	return true, nil
}

// sendBotResponse sends a response to the chat
func (l *TelegramListener) sendBotResponse(ctx context.Context, resp bot.Response, chatID int64) error {
	if !resp.Send {
		return nil
	}
	log.Printf("[DEBUG] bot response - %+v", strings.ReplaceAll(resp.Text, "\n", "\\n"))
	tbMsg := tbapi.NewMessage(chatID, resp.Text)
	if resp.ReplyTo != 0 {
		tbMsg.ReplyParameters = tbapi.ReplyParameters{MessageID: resp.ReplyTo}
	}
	if err := send(ctx, tbMsg, l.TbAPI); err != nil {
		return fmt.Errorf("can't send message to telegram %q: %w", resp.Text, err)
	}
	return nil
}

func (l *TelegramListener) getChatID(group string) (int64, error) {
	chatID, err := strconv.ParseInt(group, 10, 64)
	if err == nil {
		return chatID, nil
	}

	chat, err := l.TbAPI.GetChat(tbapi.ChatInfoConfig{
		ChatConfig: tbapi.ChatConfig{SuperGroupUsername: "@" + group},
	})
	if err != nil {
		return 0, fmt.Errorf("can't get chat for %s: %w", group, err)
	}
	return chat.ID, nil
}
