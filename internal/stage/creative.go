package stage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"herald/internal/news"
	"herald/pkg/clients"
	"herald/pkg/logging"
)

// ImageFinder calls the image-finder microservice that scores candidate
// images against the article and returns the best cover, or nothing.
type ImageFinder struct {
	url      string
	client   *http.Client
	executor failsafe.Executor[*http.Response]
}

func NewImageFinder(url string, client *http.Client) *ImageFinder {
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &ImageFinder{
		url:    url,
		client: client,
		// The finder is a single optional backend; trip the breaker
		// rather than hammer it when it goes down.
		executor: clients.NewHTTPExecutor(clients.HTTPExecutorConfig{
			MaxRetries:        2,
			BaseDelay:         time.Second,
			MaxDelay:          10 * time.Second,
			UseCircuitBreaker: true,
			Breaker:           clients.CircuitBreakerConfig{Name: "image-finder"},
		}),
	}
}

type imageFinderRequest struct {
	Title     string   `json:"title"`
	Research  string   `json:"research"`
	SourceURL string   `json:"source_url"`
	Images    []string `json:"images,omitempty"`
}

type imageFinderResponse struct {
	ImageURL string `json:"image_url"`
}

// Find returns the chosen image URL or "" when the service finds none.
func (f *ImageFinder) Find(ctx context.Context, article *news.Article) (string, error) {
	if f == nil || f.url == "" {
		return "", nil
	}

	payload := imageFinderRequest{
		Title:     article.Title,
		Research:  truncate(article.Summary, 1000),
		SourceURL: article.URL,
		Images:    article.Images,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	resp, err := clients.ExecuteHTTP(ctx, f.executor, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return f.client.Do(req)
	})
	if err != nil {
		return "", fmt.Errorf("call image finder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("image finder returned %s", resp.Status)
	}

	var result imageFinderResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return strings.TrimSpace(result.ImageURL), nil
}

// SelectCreative picks the post's media: the first usable video from
// the article wins, then the image finder, then none. The stage never
// fails an article; every failure degrades to a text-only post.
type SelectCreative struct {
	finder *ImageFinder
	logger logging.Logger
}

func NewSelectCreative(finder *ImageFinder, logger logging.Logger) *SelectCreative {
	return &SelectCreative{finder: finder, logger: logger}
}

func (s *SelectCreative) Name() string { return "creative" }

func (s *SelectCreative) Run(ctx context.Context, article *news.Article) (*news.Article, error) {
	out := *article
	out.Creative = s.pick(ctx, article)
	return &out, nil
}

func (s *SelectCreative) pick(ctx context.Context, article *news.Article) news.Creative {
	for _, video := range article.Videos {
		video = strings.TrimSpace(video)
		if video != "" {
			return news.Creative{Kind: news.CreativeVideo, URL: video}
		}
	}

	imageURL, err := s.finder.Find(ctx, article)
	if err != nil {
		s.logger.WithFields(logging.Fields{
			"stage": s.Name(),
			"title": article.Title,
			"error": err.Error(),
		}).Warn("Image finder failed, posting without creative")
		return news.Creative{Kind: news.CreativeNone, URL: news.NoCreative}
	}
	if imageURL != "" {
		return news.Creative{Kind: news.CreativeImage, URL: imageURL}
	}
	return news.Creative{Kind: news.CreativeNone, URL: news.NoCreative}
}
