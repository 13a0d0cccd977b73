package news

import (
	"strings"
	"time"
)

// CreativeKind classifies the media attached to a post.
type CreativeKind string

const (
	CreativeVideo CreativeKind = "video"
	CreativeImage CreativeKind = "image"
	CreativeNone  CreativeKind = "none"
)

// NoCreative is the sentinel reference stored when a post has no media.
const NoCreative = "none"

// Creative is the media selected for a post.
type Creative struct {
	Kind CreativeKind
	URL  string
}

// Article is the unit of work flowing through the pipeline. Source
// adapters create it; each stage only ever adds fields, never
// contradicts earlier ones.
type Article struct {
	Source      string
	URL         string
	RawText     string
	Title       string
	PublishedAt time.Time
	Images      []string
	Videos      []string

	// Derived by pipeline stages
	Summary         string
	RelevanceReason string
	PostText        string
	Creative        Creative
}

// Status is the lifecycle of a persisted record. Posted and Declined are
// terminal: a record never transitions away from them.
type Status string

const (
	StatusPendingApproval Status = "PendingApproval"
	StatusPosted          Status = "Posted"
	StatusDeclined        Status = "Declined"
)

// Terminal reports whether no further transitions are valid.
func (s Status) Terminal() bool {
	return s == StatusPosted || s == StatusDeclined
}

// Record categories. Non-news records (tool listings) are excluded from
// the duplicate comparison window.
const (
	CategoryNews = "news"
	CategoryTool = "tool"
)

// Record is the persisted form of an approved-for-review article.
type Record struct {
	ID          string
	Title       string
	SourceURL   string
	PostText    string
	WhyRelevant string
	CreativeURL string // empty when the post has no media
	Category    string
	Status      Status
	PostURL     string // permanent URL once posted
	CreatedAt   time.Time
}

// PendingPost is a rendered post waiting on a human decision, keyed by
// the durable record's ID.
type PendingPost struct {
	ID       string
	Title    string
	PostText string
	Creative Creative
}

// RecentPost is the slice of a record used for duplicate comparison.
type RecentPost struct {
	Title     string
	SourceURL string
	PostText  string
}

var videoExtensions = []string{".mp4", ".mov", ".webm"}

// InferCreativeKind reconstructs the creative classification from a bare
// stored reference. The durable schema does not keep the original
// classification, so this is a lossy heuristic: a non-video URL without a
// recognizable extension defaults to image, which may be wrong for
// unusual references. Callers must treat the result as best-effort.
func InferCreativeKind(url string) CreativeKind {
	if url == "" || url == NoCreative {
		return CreativeNone
	}
	lower := strings.ToLower(url)
	for _, ext := range videoExtensions {
		if strings.HasSuffix(lower, ext) {
			return CreativeVideo
		}
	}
	return CreativeImage
}
