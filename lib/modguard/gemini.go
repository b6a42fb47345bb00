package modguard

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/verist/tg-guard/lib/modcheck"
)

// GeminiClassifier asks the Gemini API if a message is spam. Alternative
// backend with the same contract as OpenAIClassifier.
type GeminiClassifier struct {
	client geminiClient
	params GeminiConfig
}

// GeminiConfig contains parameters for GeminiClassifier
type GeminiConfig struct {
	Model        string
	SystemPrompt string

	ContextCount      int // max number of prior context messages to include
	ContextCharBudget int // total char budget for candidate plus context
}

type geminiClient interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content,
		config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// NewGeminiClassifier makes a classifier backed by the Gemini API.
// The client is usually genai.Client.Models.
func NewGeminiClassifier(client geminiClient, params GeminiConfig) *GeminiClassifier {
	if params.SystemPrompt == "" {
		params.SystemPrompt = defaultPrompt
	}
	if params.Model == "" {
		params.Model = "gemini-2.0-flash"
	}
	if params.ContextCount == 0 {
		params.ContextCount = 3
	}
	if params.ContextCharBudget == 0 {
		params.ContextCharBudget = 2048
	}
	return &GeminiClassifier{client: client, params: params}
}

// Classify sends the message with its context to Gemini and returns the
// structured verdict. Errors are distinct from a negative verdict.
func (g *GeminiClassifier) Classify(ctx context.Context, msg string, msgContext []string) (modcheck.ClassifierVerdict, error) {
	payload := buildPayload(msg, msgContext, g.params.ContextCount, g.params.ContextCharBudget)

	resp, err := g.client.GenerateContent(ctx, g.params.Model, genai.Text(payload),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(g.params.SystemPrompt, genai.RoleUser),
			ResponseMIMEType:  "application/json",
		})
	if err != nil {
		return modcheck.ClassifierVerdict{}, fmt.Errorf("failed to generate content: %w", err)
	}

	body := resp.Text()
	if body == "" {
		return modcheck.ClassifierVerdict{}, fmt.Errorf("empty response")
	}

	var verdict modcheck.ClassifierVerdict
	if err := json.Unmarshal([]byte(body), &verdict); err != nil {
		return modcheck.ClassifierVerdict{}, fmt.Errorf("can't unmarshal response: %w", err)
	}
	return verdict, nil
}
