package channels

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	fencedCodeRe = regexp.MustCompile("(?s)```(?:[a-zA-Z0-9]*\n?)?(.*?)```")
	inlineCodeRe = regexp.MustCompile("`([^`\n]+)`")
	linkRe       = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	boldRe       = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicRe     = regexp.MustCompile(`(^|[^\w*])\*([^*\n]+)\*($|[^\w*])`)
	underscoreRe = regexp.MustCompile(`(^|[^\w_])_([^_\n]+)_($|[^\w_])`)
	headerRe     = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	blockquoteRe = regexp.MustCompile(`(?m)^>\s*`)
)

// MarkdownToTelegramHTML converts markdown-formatted text into the
// restricted HTML dialect Telegram accepts: code spans and blocks,
// bold, italic and links. Headers and blockquote markers are flattened
// to plain text.
func MarkdownToTelegramHTML(text string) string {
	if text == "" {
		return ""
	}

	// Pull code out first so markdown inside it stays untouched.
	var code []string
	stash := func(rendered string) string {
		code = append(code, rendered)
		return fmt.Sprintf("\x00%d\x00", len(code)-1)
	}

	text = fencedCodeRe.ReplaceAllStringFunc(text, func(match string) string {
		body := fencedCodeRe.FindStringSubmatch(match)[1]
		return stash("<pre><code>" + escapeHTML(strings.TrimSpace(body)) + "</code></pre>")
	})
	text = inlineCodeRe.ReplaceAllStringFunc(text, func(match string) string {
		body := inlineCodeRe.FindStringSubmatch(match)[1]
		return stash("<code>" + escapeHTML(body) + "</code>")
	})

	text = escapeHTML(text)

	text = linkRe.ReplaceAllString(text, `<a href="$2">$1</a>`)
	text = boldRe.ReplaceAllString(text, "<b>$1</b>")
	text = italicRe.ReplaceAllString(text, "$1<i>$2</i>$3")
	text = underscoreRe.ReplaceAllString(text, "$1<i>$2</i>$3")
	text = headerRe.ReplaceAllString(text, "")
	text = blockquoteRe.ReplaceAllString(text, "")

	for i, rendered := range code {
		text = strings.Replace(text, fmt.Sprintf("\x00%d\x00", i), rendered, 1)
	}

	return text
}

// escapeHTML escapes HTML special characters. & must go first to avoid
// double-escaping.
func escapeHTML(text string) string {
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	return text
}

// StripMarkdown removes all markdown formatting and returns plain text.
// It is the fallback when Telegram rejects the HTML rendering.
func StripMarkdown(text string) string {
	if text == "" {
		return ""
	}

	text = fencedCodeRe.ReplaceAllString(text, "$1")
	text = inlineCodeRe.ReplaceAllString(text, "$1")
	text = linkRe.ReplaceAllString(text, "$1")
	text = boldRe.ReplaceAllString(text, "$1")
	text = italicRe.ReplaceAllString(text, "$1$2$3")
	text = underscoreRe.ReplaceAllString(text, "$1$2$3")
	text = headerRe.ReplaceAllString(text, "")
	text = blockquoteRe.ReplaceAllString(text, "")

	return text
}
