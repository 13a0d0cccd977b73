package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// maxPageBytes bounds how much of a page we read; article pages past
// this size are truncated rather than rejected.
const maxPageBytes = 4 << 20

var redundantNewlines = regexp.MustCompile(`\n{3,}`)

var videoSuffixes = []string{".mp4", ".mov", ".webm"}

// pageContent is the extraction result for one article page.
type pageContent struct {
	Title  string
	Text   string
	Images []string
	Videos []string
}

// extractor downloads an article page and pulls readable text plus any
// media references usable as a post creative.
type extractor struct {
	client *http.Client
}

func newExtractor(client *http.Client) *extractor {
	if client == nil {
		client = defaultHTTPClient()
	}
	return &extractor{client: client}
}

// Extract fetches pageURL and returns the readable article content. The
// text comes from the Readability algorithm; media URLs are collected
// from the raw document so creatives stripped by the content cleaner
// are still found.
func (e *extractor) Extract(ctx context.Context, pageURL string) (pageContent, error) {
	raw, err := e.download(ctx, pageURL)
	if err != nil {
		return pageContent{}, err
	}
	return parsePage(raw, pageURL)
}

// ExtractFromHTML runs the same parsing over HTML already in hand, used
// when a feed entry carries its full content inline.
func (e *extractor) ExtractFromHTML(rawHTML, pageURL string) (pageContent, error) {
	return parsePage([]byte(rawHTML), pageURL)
}

func (e *extractor) download(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read page body: %w", err)
	}
	return data, nil
}

func parsePage(raw []byte, pageURL string) (pageContent, error) {
	parsed, _ := url.Parse(pageURL)

	var out pageContent
	article, err := readability.FromReader(bytes.NewReader(raw), parsed)
	if err == nil {
		out.Title = strings.TrimSpace(article.Title)
		out.Text = cleanText(article.TextContent)
	}

	doc, docErr := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if docErr != nil {
		if err != nil {
			return pageContent{}, fmt.Errorf("parse page: %w", err)
		}
		return out, nil
	}

	if out.Title == "" {
		out.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	out.Images, out.Videos = collectMedia(doc, parsed)

	if out.Text == "" {
		// Readability needs enough candidate paragraphs to score; short
		// fragments (inline feed content) fall back to the raw text.
		doc.Find("script, style, noscript").Remove()
		out.Text = cleanText(doc.Find("body").Text())
		if out.Text == "" {
			out.Text = cleanText(doc.Text())
		}
	}
	return out, nil
}

// collectMedia gathers absolute image and video URLs from the document.
// Open Graph images lead the image list since they are the page's own
// choice of cover art.
func collectMedia(doc *goquery.Document, base *url.URL) (images, videos []string) {
	seen := map[string]struct{}{}
	addImage := func(ref string) {
		abs := resolveRef(base, ref)
		if abs == "" {
			return
		}
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		images = append(images, abs)
	}
	addVideo := func(ref string) {
		abs := resolveRef(base, ref)
		if abs == "" || !hasVideoSuffix(abs) {
			return
		}
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		videos = append(videos, abs)
	}

	doc.Find(`meta[property="og:image"], meta[name="twitter:image"]`).Each(func(_ int, sel *goquery.Selection) {
		if content, ok := sel.Attr("content"); ok {
			addImage(content)
		}
	})
	doc.Find(`meta[property="og:video"], meta[property="og:video:url"]`).Each(func(_ int, sel *goquery.Selection) {
		if content, ok := sel.Attr("content"); ok {
			addVideo(content)
		}
	})
	doc.Find("video[src], video source[src]").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok {
			addVideo(src)
		}
	})
	doc.Find("article img[src], main img[src]").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok {
			addImage(src)
		}
	})
	return images, videos
}

func resolveRef(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil {
		parsed = base.ResolveReference(parsed)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	return parsed.String()
}

func hasVideoSuffix(ref string) bool {
	lower := strings.ToLower(ref)
	if idx := strings.IndexAny(lower, "?#"); idx >= 0 {
		lower = lower[:idx]
	}
	for _, suffix := range videoSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// Readability leaves runs of blank lines behind once tags are stripped;
// collapse anything past two consecutive newlines.
func cleanText(text string) string {
	return strings.TrimSpace(redundantNewlines.ReplaceAllString(text, "\n\n"))
}
