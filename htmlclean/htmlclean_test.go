package htmlclean

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrip(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "hello world", "hello world"},
		{"paragraph tags", "<p>hello</p><p>world</p>", "hello world"},
		{"nested tags", "<div><b>hello</b> <i>world</i></div>", "hello world"},
		{"line break", "line one<br>line two", "line one line two"},
		{"list", "<ul><li>one</li><li>two</li></ul>", "one two"},
		{"collapses internal whitespace", "hello   \n\n  world", "hello world"},
		{"empty", "", ""},
		{"unterminated tag", "<p>hello", "hello"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Strip(tc.in))
		})
	}
}
