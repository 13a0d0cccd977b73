package stage

import (
	"context"
	"regexp"
	"strings"

	"herald/internal/news"
)

// Telegram's HTML parse mode accepts only this tag set; anything else
// makes the send call fail.
var allowedTags = map[string]struct{}{
	"b": {}, "i": {}, "u": {}, "s": {}, "code": {}, "pre": {}, "a": {},
}

var (
	openParagraph  = regexp.MustCompile(`<p>`)
	closeParagraph = regexp.MustCompile(`</p>`)
	lineBreak      = regexp.MustCompile(`<br\s*/?>`)
	anyTag         = regexp.MustCompile(`<(/?\w[^>]*)>`)
	blankLines     = regexp.MustCompile(`\n{3,}`)
)

// Sanitize is the pure cleanup step between the composer and Telegram:
// normalize paragraph markup to newlines, strip unsupported tags, and
// append the channel signature.
type Sanitize struct {
	signature string
}

func NewSanitize(signature string) *Sanitize {
	return &Sanitize{signature: signature}
}

func (s *Sanitize) Name() string { return "sanitize" }

func (s *Sanitize) Run(_ context.Context, article *news.Article) (*news.Article, error) {
	out := *article
	out.PostText = CleanHTML(article.PostText) + s.signature
	return &out, nil
}

// CleanHTML reduces arbitrary model HTML to Telegram's supported
// subset.
func CleanHTML(text string) string {
	text = openParagraph.ReplaceAllString(text, "")
	text = closeParagraph.ReplaceAllString(text, "\n\n")
	text = lineBreak.ReplaceAllString(text, "\n")

	text = anyTag.ReplaceAllStringFunc(text, func(match string) string {
		inner := anyTag.FindStringSubmatch(match)[1]
		tag := strings.Fields(inner)[0]
		tag = strings.ToLower(strings.Trim(tag, "/"))
		if _, ok := allowedTags[tag]; ok {
			return match
		}
		return ""
	})

	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
