package bot

import (
	"context"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verist/tg-guard/app/bot/mocks"
)

func TestIsRoadmapTopic(t *testing.T) {
	assert.True(t, IsRoadmapTopic(Message{Text: "can someone share a Go roadmap?"}))
	assert.True(t, IsRoadmapTopic(Message{Text: "I need a ROAD MAP for rust"}))
	assert.False(t, IsRoadmapTopic(Message{Text: "how do I sort a slice?"}))
	assert.False(t, IsRoadmapTopic(Message{Text: "the road to production is long"}))
}

type staticContext []string

func (s staticContext) Context(int64, time.Time, time.Duration) []string { return s }

func TestRoadmapper_Roadmap(t *testing.T) {
	mkMsg := func(text string) Message {
		return Message{ID: 5, Text: text, From: User{ID: 11, Username: "learner"}, Sent: time.Now()}
	}

	t.Run("confirmed request gets a roadmap", func(t *testing.T) {
		responses := []string{
			`{"is_roadmap": true, "reason": "asks for a study plan"}`,
			"1. basics\n2. concurrency\n3. tooling",
		}
		call := 0
		clientMock := &mocks.AssistClientMock{
			CreateChatCompletionFunc: func(contextMoqParam context.Context, chatCompletionRequest openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
				resp := openai.ChatCompletionResponse{
					Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: responses[call]}}},
				}
				call++
				return resp, nil
			},
		}
		r := NewRoadmapper(clientMock, nil, RoadmapConfig{})
		roadmap, err := r.Roadmap(context.Background(), mkMsg("give me a roadmap for learning go"))
		require.NoError(t, err)
		assert.Equal(t, "1. basics\n2. concurrency\n3. tooling", roadmap)
		assert.Len(t, clientMock.CreateChatCompletionCalls(), 2, "detection and generation")
	})

	t.Run("mere mention ignored after detection", func(t *testing.T) {
		clientMock := &mocks.AssistClientMock{
			CreateChatCompletionFunc: func(contextMoqParam context.Context, chatCompletionRequest openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
				return openai.ChatCompletionResponse{
					Choices: []openai.ChatCompletionChoice{{
						Message: openai.ChatCompletionMessage{Content: `{"is_roadmap": false, "reason": "talks about a roadmap, doesn't ask for one"}`},
					}},
				}, nil
			},
		}
		r := NewRoadmapper(clientMock, nil, RoadmapConfig{})
		roadmap, err := r.Roadmap(context.Background(), mkMsg("the project roadmap looks ambitious"))
		require.NoError(t, err)
		assert.Empty(t, roadmap)
		assert.Len(t, clientMock.CreateChatCompletionCalls(), 1, "no generation for non-requests")
	})

	t.Run("transport error", func(t *testing.T) {
		clientMock := &mocks.AssistClientMock{
			CreateChatCompletionFunc: func(contextMoqParam context.Context, chatCompletionRequest openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
				return openai.ChatCompletionResponse{}, assert.AnError
			},
		}
		r := NewRoadmapper(clientMock, nil, RoadmapConfig{})
		_, err := r.Roadmap(context.Background(), mkMsg("roadmap please"))
		assert.ErrorContains(t, err, "failed to detect roadmap request")
	})

	t.Run("bad detection json", func(t *testing.T) {
		clientMock := &mocks.AssistClientMock{
			CreateChatCompletionFunc: func(contextMoqParam context.Context, chatCompletionRequest openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
				return openai.ChatCompletionResponse{
					Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "not json"}}},
				}, nil
			},
		}
		r := NewRoadmapper(clientMock, nil, RoadmapConfig{})
		_, err := r.Roadmap(context.Background(), mkMsg("roadmap please"))
		assert.ErrorContains(t, err, "can't unmarshal detection")
	})

	t.Run("history context included in both completions", func(t *testing.T) {
		var payloads []string
		responses := []string{
			`{"is_roadmap": true, "reason": "study plan"}`,
			"the roadmap",
		}
		call := 0
		clientMock := &mocks.AssistClientMock{
			CreateChatCompletionFunc: func(contextMoqParam context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
				payloads = append(payloads, req.Messages[1].Content)
				resp := openai.ChatCompletionResponse{
					Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: responses[call]}}},
				}
				call++
				return resp, nil
			},
		}
		r := NewRoadmapper(clientMock, staticContext{"I want to learn go", "where do I start"}, RoadmapConfig{})
		_, err := r.Roadmap(context.Background(), mkMsg("roadmap please"))
		require.NoError(t, err)
		require.Len(t, payloads, 2)
		assert.Equal(t, "where do I startI want to learn goroadmap please", payloads[0], "oldest context entry innermost")
		assert.Equal(t, payloads[0], payloads[1], "generation reuses the detection payload")
	})

	t.Run("context budget stops at first oversized entry", func(t *testing.T) {
		var payload string
		clientMock := &mocks.AssistClientMock{
			CreateChatCompletionFunc: func(contextMoqParam context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
				payload = req.Messages[1].Content
				return openai.ChatCompletionResponse{
					Choices: []openai.ChatCompletionChoice{{
						Message: openai.ChatCompletionMessage{Content: `{"is_roadmap": false, "reason": "no"}`},
					}},
				}, nil
			},
		}
		r := NewRoadmapper(clientMock, staticContext{"ab", "cdefgh", "xyz"}, RoadmapConfig{ContextCharBudget: 9})
		_, err := r.Roadmap(context.Background(), mkMsg("12345"))
		require.NoError(t, err)
		assert.Equal(t, "ab12345", payload)
	})
}
