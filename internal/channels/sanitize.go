package channels

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// telegramTags is the element subset Telegram's HTML parse mode accepts.
var telegramTags = map[string]bool{
	"b": true, "strong": true,
	"i": true, "em": true,
	"u": true, "ins": true,
	"s": true, "strike": true, "del": true,
	"code": true, "pre": true,
	"a":          true,
	"blockquote": true,
	"tg-spoiler": true,
}

// droppedTags are removed together with their contents; their text is
// not message text.
var droppedTags = map[string]bool{
	"script": true, "style": true, "head": true, "title": true,
}

// SanitizeTelegramHTML reduces arbitrary HTML to the subset Telegram
// accepts. Unsupported elements are unwrapped so their text survives;
// attributes other than a's href are stripped. Workload output passes
// through here, so nothing it produces can smuggle markup Telegram
// would reject the whole message for.
func SanitizeTelegramHTML(input string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err != nil {
		return escapeHTML(input)
	}
	body := doc.Find("body")

	body.Find("br").ReplaceWithHtml("\n")

	// Unwrapping restructures the tree, so take one element at a time
	// and re-query. Each step removes an element, so this terminates.
	for {
		s := body.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return !telegramTags[goquery.NodeName(s)]
		}).First()
		if s.Length() == 0 {
			break
		}
		if droppedTags[goquery.NodeName(s)] || s.Contents().Length() == 0 {
			s.Remove()
			continue
		}
		s.Contents().Unwrap()
	}

	body.Find("*").Each(func(_ int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			var kept []html.Attribute
			if n.Data == "a" {
				for _, attr := range n.Attr {
					if attr.Key == "href" {
						kept = append(kept, attr)
					}
				}
			}
			n.Attr = kept
		}
	})

	out, err := body.Html()
	if err != nil {
		return escapeHTML(input)
	}
	return strings.TrimSpace(out)
}
