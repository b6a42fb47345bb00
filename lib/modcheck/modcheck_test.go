package modcheck

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVerdict(t *testing.T) {
	assert.Equal(t, Verdict{Status: StatusNormal}, Normal())
	assert.Equal(t, Verdict{Status: StatusMaybeSpam}, MaybeSpam())
	assert.Equal(t, Verdict{Status: StatusSpam, Reason: "bad link"}, Spam("bad link"))
}

func TestVerdict_String(t *testing.T) {
	assert.Equal(t, "normal", Normal().String())
	assert.Equal(t, "maybe_spam", MaybeSpam().String())
	assert.Equal(t, "spam: bad link", Spam("bad link").String())
	assert.Equal(t, "spam", Spam("").String())
}

func TestClassifierVerdict_String(t *testing.T) {
	assert.Equal(t, "spam: phishing", ClassifierVerdict{IsSpam: true, Reason: "phishing."}.String())
	assert.Equal(t, "ham: regular chat", ClassifierVerdict{IsSpam: false, Reason: "regular chat"}.String())
}

func TestRequest_String(t *testing.T) {
	req := Request{Msg: "hello", UserID: 42, UserName: "user1",
		Sent: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), MassMention: true}
	assert.Equal(t, `msg:"hello", user:"user1", id:42, sent:2024-06-01T12:00:00Z, mass-mention:true`, req.String())
}
