package modguard

import (
	"context"
	"encoding/json"
	"fmt"

	tokenizer "github.com/sandwich-go/gpt3-encoder"
	"github.com/sashabaranov/go-openai"

	"github.com/verist/tg-guard/lib/modcheck"
)

//go:generate moq --out mocks/openai_client.go --pkg mocks --with-resets --skip-ensure . openAIClient

// OpenAIClassifier asks the OpenAI chat completion API if a message is spam,
// given the candidate text and recent conversational context.
type OpenAIClassifier struct {
	client openAIClient
	params OpenAIConfig
}

// OpenAIConfig contains parameters for OpenAIClassifier
type OpenAIConfig struct {
	// https://platform.openai.com/docs/api-reference/chat/create#chat/create-max_tokens
	MaxTokensResponse int // hard limit for the number of tokens in the response
	// The OpenAI has a limit for the number of tokens in the request + response
	MaxTokensRequest  int // max request length in tokens
	MaxSymbolsRequest int // fallback: max request length in symbols, if tokenizer failed
	Model             string
	SystemPrompt      string

	ContextCount      int // max number of prior context messages to include
	ContextCharBudget int // total char budget for candidate plus context
}

type openAIClient interface {
	CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

const defaultPrompt = `You moderate a programming community chat. I'll give you a message, possibly preceded by the author's recent messages as context, and you will return a json with two fields: {"is_spam": true/false, "reason": "short explanation why"}. Reply with the json only.`

// NewOpenAIClassifier makes a classifier backed by the OpenAI API.
func NewOpenAIClassifier(client openAIClient, params OpenAIConfig) *OpenAIClassifier {
	if params.SystemPrompt == "" {
		params.SystemPrompt = defaultPrompt
	}
	if params.MaxTokensResponse == 0 {
		params.MaxTokensResponse = 1024
	}
	if params.MaxTokensRequest == 0 {
		params.MaxTokensRequest = 2048
	}
	if params.MaxSymbolsRequest == 0 {
		params.MaxSymbolsRequest = 8192
	}
	if params.Model == "" {
		params.Model = "gpt-4o-mini"
	}
	if params.ContextCount == 0 {
		params.ContextCount = 3
	}
	if params.ContextCharBudget == 0 {
		params.ContextCharBudget = 2048
	}
	return &OpenAIClassifier{client: client, params: params}
}

// Classify sends the message with its context to OpenAI and returns the
// structured verdict. Transport errors, empty responses and malformed reply
// bodies are returned as errors, distinct from a negative verdict.
func (o *OpenAIClassifier) Classify(ctx context.Context, msg string, msgContext []string) (modcheck.ClassifierVerdict, error) {
	payload := buildPayload(msg, msgContext, o.params.ContextCount, o.params.ContextCharBudget)
	payload = o.reduceRequest(payload)

	data := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: o.params.SystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: payload},
	}

	resp, err := o.client.CreateChatCompletion(ctx,
		openai.ChatCompletionRequest{Model: o.params.Model, MaxTokens: o.params.MaxTokensResponse, Messages: data})
	if err != nil {
		return modcheck.ClassifierVerdict{}, fmt.Errorf("failed to create chat completion: %w", err)
	}

	// OpenAI platform supports returning multiple chat completion choices, but we use only the first one
	if len(resp.Choices) == 0 {
		return modcheck.ClassifierVerdict{}, fmt.Errorf("no choices in response")
	}

	var verdict modcheck.ClassifierVerdict
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &verdict); err != nil {
		return modcheck.ClassifierVerdict{}, fmt.Errorf("can't unmarshal response: %w", err)
	}
	return verdict, nil
}

// reduceRequest cuts the request size with the tokenizer and falls back to the
// symbol-count reducer if tokenization fails.
func (o *OpenAIClassifier) reduceRequest(text string) string {
	defaultReducer := func(text string) string {
		if len(text) <= o.params.MaxSymbolsRequest {
			return text
		}
		return text[:o.params.MaxSymbolsRequest]
	}

	encoder, tokErr := tokenizer.NewEncoder()
	if tokErr != nil {
		return defaultReducer(text)
	}

	tokens, encErr := encoder.Encode(text)
	if encErr != nil {
		return defaultReducer(text)
	}

	if len(tokens) <= o.params.MaxTokensRequest {
		return text
	}
	return encoder.Decode(tokens[:o.params.MaxTokensRequest])
}

// buildPayload prepends context entries to the candidate message. The context
// comes in chronological order and is consumed from the oldest entry, each
// included entry prepended to the payload, so the oldest entries win the count
// and char budget. Inclusion stops after count entries or when adding the next
// entry would exceed the budget; the budget check happens before inclusion,
// entries are never truncated mid-way.
func buildPayload(msg string, msgContext []string, count, budget int) string {
	buf := msg
	total := len(msg)
	if count > len(msgContext) {
		count = len(msgContext)
	}
	for _, ctxMsg := range msgContext[:count] {
		if total+len(ctxMsg) > budget {
			break
		}
		total += len(ctxMsg)
		buf = ctxMsg + buf
	}
	return buf
}
