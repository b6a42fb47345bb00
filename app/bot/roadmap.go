package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Roadmapper generates learning roadmaps for members asking for one. Each
// candidate message goes through a detection completion first; only messages
// classified as an actual roadmap request get a generated roadmap back.
type Roadmapper struct {
	client  assistClient
	history contextProvider
	params  RoadmapConfig
}

// RoadmapConfig contains parameters for Roadmapper
type RoadmapConfig struct {
	Model        string
	MaxTokens    int
	DetectPrompt string // system prompt for request detection
	CreatePrompt string // system prompt for roadmap generation

	ContextCount      int           // max number of prior context messages to include
	ContextCharBudget int           // total char budget for candidate plus context
	ContextWindow     time.Duration // how far back history counts as context
}

// contextProvider returns the author's recent messages, oldest first
type contextProvider interface {
	Context(userID int64, ref time.Time, window time.Duration) []string
}

const defaultDetectPrompt = `You watch a programming community chat. I'll give you a message, possibly preceded by the author's recent messages as context, and you decide if the author asks for a learning roadmap (a study plan for a language or technology). Return a json with two fields: {"is_roadmap": true/false, "reason": "short explanation why"}. Reply with the json only.`

const defaultCreatePrompt = `A member of a programming community chat asked for a learning roadmap. Produce a concise step-by-step roadmap for the language or technology they ask about: numbered stages, each with a short goal and the key topics to cover. Plain text only.`

type roadmapRequest struct {
	Reason    string `json:"reason"`
	IsRoadmap bool   `json:"is_roadmap"`
}

// NewRoadmapper makes a roadmap responder backed by the OpenAI API. The
// history provider is optional, nil disables conversational context.
func NewRoadmapper(client assistClient, history contextProvider, params RoadmapConfig) *Roadmapper {
	if params.Model == "" {
		params.Model = "gpt-4o-mini"
	}
	if params.MaxTokens == 0 {
		params.MaxTokens = 1024
	}
	if params.DetectPrompt == "" {
		params.DetectPrompt = defaultDetectPrompt
	}
	if params.CreatePrompt == "" {
		params.CreatePrompt = defaultCreatePrompt
	}
	if params.ContextCount == 0 {
		params.ContextCount = 3
	}
	if params.ContextCharBudget == 0 {
		params.ContextCharBudget = 2048
	}
	if params.ContextWindow == 0 {
		params.ContextWindow = 5 * time.Minute
	}
	return &Roadmapper{client: client, history: history, params: params}
}

// IsRoadmapTopic reports if the message talks about roadmaps at all. It is a
// cheap pre-filter, the detection completion makes the actual call.
func IsRoadmapTopic(msg Message) bool {
	text := strings.ToLower(msg.Text)
	return strings.Contains(text, "roadmap") || strings.Contains(text, "road map")
}

// Roadmap runs detection on the message and, for a confirmed request,
// generates the roadmap text. Returns an empty string when the message merely
// mentions roadmaps without asking for one; the caller should post nothing in
// that case.
func (r *Roadmapper) Roadmap(ctx context.Context, msg Message) (string, error) {
	var msgContext []string
	if r.history != nil {
		msgContext = r.history.Context(msg.From.ID, msg.Sent, r.params.ContextWindow)
	}
	payload := r.contextPayload(msg.Text, msgContext)

	detection, err := r.complete(ctx, r.params.DetectPrompt, payload)
	if err != nil {
		return "", fmt.Errorf("failed to detect roadmap request: %w", err)
	}
	var req roadmapRequest
	if err := json.Unmarshal([]byte(detection), &req); err != nil {
		return "", fmt.Errorf("can't unmarshal detection: %w", err)
	}
	if !req.IsRoadmap {
		log.Printf("[DEBUG] not a roadmap request from %q: %s", DisplayName(msg), req.Reason)
		return "", nil
	}
	log.Printf("[INFO] generating roadmap for %q: %s", DisplayName(msg), req.Reason)

	roadmap, err := r.complete(ctx, r.params.CreatePrompt, payload)
	if err != nil {
		return "", fmt.Errorf("failed to create roadmap: %w", err)
	}
	return roadmap, nil
}

// contextPayload prepends context entries to the candidate message, oldest
// entries first, limited by count and the total char budget. An entry over
// the budget stops inclusion, entries are never truncated.
func (r *Roadmapper) contextPayload(msg string, msgContext []string) string {
	buf := msg
	total := len(msg)
	count := r.params.ContextCount
	if count > len(msgContext) {
		count = len(msgContext)
	}
	for _, ctxMsg := range msgContext[:count] {
		if total+len(ctxMsg) > r.params.ContextCharBudget {
			break
		}
		total += len(ctxMsg)
		buf = ctxMsg + buf
	}
	return buf
}

func (r *Roadmapper) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     r.params.Model,
		MaxTokens: r.params.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
