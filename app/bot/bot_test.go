package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	tbl := []struct {
		name string
		msg  Message
		want string
	}{
		{"display name preferred", Message{From: User{ID: 1, Username: "uname", DisplayName: "Full Name"}}, "Full Name"},
		{"username fallback", Message{From: User{ID: 1, Username: "uname"}}, "uname"},
		{"id fallback", Message{From: User{ID: 123}}, "123"},
		{"spaces trimmed", Message{From: User{DisplayName: " Name "}}, "Name"},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayName(tt.msg))
		})
	}
}
