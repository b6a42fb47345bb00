package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/sashabaranov/go-openai"
)

//go:generate moq --out mocks/assist_client.go --pkg mocks --with-resets --skip-ensure . assistClient

// Assistant answers "!assist <question>" requests with an LLM-generated reply.
// Every generated answer is verified by a second completion before it is
// posted; unverified answers are dropped silently.
type Assistant struct {
	client assistClient
	params AssistConfig
}

// AssistConfig contains parameters for Assistant
type AssistConfig struct {
	Model        string
	MaxTokens    int
	AnswerPrompt string // system prompt for answer generation
	VerifyPrompt string // system prompt for verification, must contain {USER_QUESTION}
}

type assistClient interface {
	CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

const defaultAnswerPrompt = `You help members of a programming community chat. Answer the question below concisely and factually. If the question cannot be answered, say so.`

const defaultVerifyPrompt = `The user asked: "{USER_QUESTION}". You will be given an answer to that question. Return a json with two fields: {"answers_correctly": true/false, "reason": "short explanation"}. Reply with the json only.`

type verifyReply struct {
	Reason           string `json:"reason"`
	AnswersCorrectly bool   `json:"answers_correctly"`
}

// NewAssistant makes an assistant backed by the OpenAI API.
func NewAssistant(client assistClient, params AssistConfig) *Assistant {
	if params.Model == "" {
		params.Model = "gpt-4o-mini"
	}
	if params.MaxTokens == 0 {
		params.MaxTokens = 1024
	}
	if params.AnswerPrompt == "" {
		params.AnswerPrompt = defaultAnswerPrompt
	}
	if params.VerifyPrompt == "" {
		params.VerifyPrompt = defaultVerifyPrompt
	}
	return &Assistant{client: client, params: params}
}

// IsAssistCommand reports if the message invokes the assistant.
func IsAssistCommand(msg Message) bool {
	return strings.HasPrefix(strings.ToLower(msg.Text), "!assist")
}

// Answer generates and verifies a reply for the question. Returns an empty
// string when the question is empty or the generated answer failed
// verification; the caller should post nothing in that case.
func (a *Assistant) Answer(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(question, "!assist"), "!Assist"))
	if question == "" {
		return "", nil
	}
	if strings.Contains(question, "{USER_QUESTION}") {
		return "", fmt.Errorf("question likely attempts to bypass the verifier, ignored")
	}

	log.Printf("[DEBUG] generating reply for %q", question)
	reply, err := a.complete(ctx, a.params.AnswerPrompt, question)
	if err != nil {
		return "", fmt.Errorf("failed to generate reply: %w", err)
	}

	verifyPrompt := strings.ReplaceAll(a.params.VerifyPrompt, "{USER_QUESTION}", question)
	verification, err := a.complete(ctx, verifyPrompt, reply)
	if err != nil {
		return "", fmt.Errorf("failed to verify reply: %w", err)
	}

	var v verifyReply
	if err := json.Unmarshal([]byte(verification), &v); err != nil {
		return "", fmt.Errorf("can't unmarshal verification: %w", err)
	}
	if !v.AnswersCorrectly {
		log.Printf("[INFO] dropped unverified reply for %q: %s", question, v.Reason)
		return "", nil
	}
	log.Printf("[DEBUG] verified reply for %q: %s", question, v.Reason)
	return reply, nil
}

func (a *Assistant) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     a.params.Model,
		MaxTokens: a.params.MaxTokens,
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
