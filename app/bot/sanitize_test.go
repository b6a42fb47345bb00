package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tbl := []struct {
		name string
		in   string
		out  string
	}{
		{"plain text untouched", "just a message", "just a message"},
		{"mention defanged", "hey @someone look", "hey someone look"},
		{"multiple mentions", "@one and @two", "one and two"},
		{"url defanged", "go to https://evil.com/page now", "go to evil/page now"},
		{"http url defanged", "http://scam.ru/win", "scam/win"},
		{"only first tld stripped", "https://evil.com/fake.com", "evil/fake.com"},
		{"io tld stripped", "https://phish.io/x", "phish/x"},
		{"mention and url together", "@admin visit https://bad.org/q", "admin visit bad/q"},
		{"no scheme left alone", "www.example.com here", "www.example.com here"},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.out, Sanitize(tt.in))
		})
	}
}
