package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAskCommand(t *testing.T) {
	assert.True(t, IsAskCommand(Message{Text: "!ask"}))
	assert.True(t, IsAskCommand(Message{Text: "!Ask can someone help?"}))
	assert.False(t, IsAskCommand(Message{Text: "ask me anything"}))
	assert.False(t, IsAskCommand(Message{Text: "what is !ask"}))
}

func TestAsk(t *testing.T) {
	resp := Ask(Message{ID: 42, Text: "!ask"})
	assert.True(t, resp.Send)
	assert.Equal(t, 42, resp.ReplyTo)
	assert.Equal(t, AskReply, resp.Text)
}
