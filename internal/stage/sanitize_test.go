package stage

import (
	"context"
	"testing"

	"herald/internal/news"
)

func TestCleanHTML(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			"paragraphs become blank lines",
			"<p>first</p><p>second</p>",
			"first\n\nsecond",
		},
		{
			"br variants become newlines",
			"one<br>two<br/>three<br />four",
			"one\ntwo\nthree\nfour",
		},
		{
			"unsupported tags stripped, content kept",
			`<div>hello <b>bold</b> <span class="x">span</span></div>`,
			"hello <b>bold</b> span",
		},
		{
			"anchor with attributes survives",
			`<a href="https://x.test">link</a>`,
			`<a href="https://x.test">link</a>`,
		},
		{
			"allowed set survives",
			"<b>b</b><i>i</i><u>u</u><s>s</s><code>c</code><pre>p</pre>",
			"<b>b</b><i>i</i><u>u</u><s>s</s><code>c</code><pre>p</pre>",
		},
		{
			"blank line runs collapse",
			"first\n\n\n\n\nsecond",
			"first\n\nsecond",
		},
		{
			"surrounding whitespace trimmed",
			"  \n<b>post</b>\n\n ",
			"<b>post</b>",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CleanHTML(tc.in); got != tc.want {
				t.Errorf("CleanHTML(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSanitizeAppendsSignature(t *testing.T) {
	signature := "\n\n<a href=\"https://t.me/channel\"><b>Channel</b></a>"
	s := NewSanitize(signature)

	out, err := s.Run(context.Background(), &news.Article{PostText: "<div><b>headline</b></div>"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "<b>headline</b>" + signature
	if out.PostText != want {
		t.Fatalf("unexpected post text %q", out.PostText)
	}
}
