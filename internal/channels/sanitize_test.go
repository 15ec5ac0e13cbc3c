package channels

import (
	"strings"
	"testing"
)

func TestSanitizePassesAllowedTags(t *testing.T) {
	tests := []string{
		"<b>bold</b>",
		"<i>italic</i>",
		"<code>x := 1</code>",
		"<pre><code>block</code></pre>",
		`<a href="https://example.com">link</a>`,
		"<blockquote>quoted</blockquote>",
	}
	for _, input := range tests {
		if got := SanitizeTelegramHTML(input); got != input {
			t.Errorf("SanitizeTelegramHTML(%q) = %q, want unchanged", input, got)
		}
	}
}

func TestSanitizeUnwrapsUnknownTags(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"<div>hi <b>there</b></div>", "hi <b>there</b>"},
		{"<span>plain</span>", "plain"},
		{"<h1>Title</h1>", "Title"},
		{"<ul><li>one</li><li>two</li></ul>", "onetwo"},
		{"<p><em>kept</em> text</p>", "<em>kept</em> text"},
	}
	for _, tt := range tests {
		if got := SanitizeTelegramHTML(tt.input); got != tt.want {
			t.Errorf("SanitizeTelegramHTML(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSanitizeDropsScriptEntirely(t *testing.T) {
	got := SanitizeTelegramHTML("before<script>alert(1)</script>after")
	if strings.Contains(got, "alert") {
		t.Errorf("script body leaked: %q", got)
	}
	if got != "beforeafter" {
		t.Errorf("got %q, want %q", got, "beforeafter")
	}
}

func TestSanitizeStripsAttributes(t *testing.T) {
	got := SanitizeTelegramHTML(`<b class="x" onclick="boom()">text</b>`)
	if got != "<b>text</b>" {
		t.Errorf("got %q, want <b>text</b>", got)
	}

	// href survives on links, nothing else does.
	got = SanitizeTelegramHTML(`<a href="https://example.com" target="_blank">l</a>`)
	if got != `<a href="https://example.com">l</a>` {
		t.Errorf("got %q", got)
	}
}

func TestSanitizeRemovesEmptyUnknownElements(t *testing.T) {
	got := SanitizeTelegramHTML(`text <img src="x.png"/> more`)
	if strings.Contains(got, "img") {
		t.Errorf("img survived: %q", got)
	}
}

func TestSanitizeBreakToNewline(t *testing.T) {
	got := SanitizeTelegramHTML("one<br>two")
	if got != "one\ntwo" {
		t.Errorf("got %q, want %q", got, "one\ntwo")
	}
}

func TestSanitizePlainText(t *testing.T) {
	if got := SanitizeTelegramHTML("just text"); got != "just text" {
		t.Errorf("got %q", got)
	}
}

func TestSanitizeNested(t *testing.T) {
	got := SanitizeTelegramHTML("<div><section><b>deep</b></section></div>")
	if got != "<b>deep</b>" {
		t.Errorf("got %q, want <b>deep</b>", got)
	}
}
