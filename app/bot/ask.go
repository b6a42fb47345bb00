package bot

import "strings"

// AskReply is the canned response to the "!ask" command.
const AskReply = "Don't ask to ask, just ask! \nhttps://dontasktoask.com/"

// IsAskCommand reports if the message invokes the "!ask" responder.
func IsAskCommand(msg Message) bool {
	return strings.HasPrefix(strings.ToLower(msg.Text), "!ask")
}

// Ask handles the "!ask" command.
func Ask(msg Message) Response {
	return Response{Text: AskReply, Send: true, ReplyTo: msg.ID}
}
