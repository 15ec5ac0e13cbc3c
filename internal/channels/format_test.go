package channels

import (
	"strings"
	"testing"
)

func TestMarkdownToTelegramHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain", "hello world", "hello world"},
		{"bold", "**important**", "<b>important</b>"},
		{"italic asterisk", "see *this* here", "see <i>this</i> here"},
		{"italic underscore", "see _this_ here", "see <i>this</i> here"},
		{"inline code", "run `ls -la` now", "run <code>ls -la</code> now"},
		{"link", "[docs](https://example.com)", `<a href="https://example.com">docs</a>`},
		{"header flattened", "# Title\nbody", "Title\nbody"},
		{"blockquote flattened", "> quoted", "quoted"},
		{"html escaped", "a < b & c > d", "a &lt; b &amp; c &gt; d"},
		{"snake_case untouched", "use snake_case names", "use snake_case names"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MarkdownToTelegramHTML(tt.input); got != tt.want {
				t.Errorf("MarkdownToTelegramHTML(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestMarkdownCodeBlock(t *testing.T) {
	got := MarkdownToTelegramHTML("```go\nx := 1 < 2\n```")
	want := "<pre><code>x := 1 &lt; 2</code></pre>"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestMarkdownInsideCodeUntouched(t *testing.T) {
	got := MarkdownToTelegramHTML("`**not bold**`")
	if got != "<code>**not bold**</code>" {
		t.Errorf("markdown inside code was processed: %q", got)
	}
}

func TestMarkdownManyCodeSpans(t *testing.T) {
	// More than ten spans; placeholder indices must not collide.
	var sb strings.Builder
	for i := 0; i < 12; i++ {
		sb.WriteString("`x` ")
	}
	got := MarkdownToTelegramHTML(sb.String())
	if strings.Count(got, "<code>x</code>") != 12 {
		t.Errorf("expected 12 code spans, got %q", got)
	}
	if strings.Contains(got, "\x00") {
		t.Error("placeholder leaked into output")
	}
}

func TestStripMarkdown(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"**bold** and *italic*", "bold and italic"},
		{"`code`", "code"},
		{"[text](https://example.com)", "text"},
		{"# Header", "Header"},
		{"> quote", "quote"},
	}

	for _, tt := range tests {
		if got := StripMarkdown(tt.input); got != tt.want {
			t.Errorf("StripMarkdown(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
