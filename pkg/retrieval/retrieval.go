// Package retrieval defines the contract between the session core and the
// external document indexing / page retrieval backends.
package retrieval

import (
	"context"
	"time"
)

// DocumentRef points at one retrieved page.
type DocumentRef struct {
	DocId     int     `json:"doc_id"`
	Filename  string  `json:"filename"`
	PageNum   int     `json:"page_num"`
	Score     float64 `json:"score"`
	ImagePath string  `json:"image_path,omitempty"` // rendered page image, empty for text backends
	Text      string  `json:"text,omitempty"`       // page text, empty for image backends
}

type IndexRequest struct {
	SessionId string
	SourceDir string // folder holding the uploaded documents
	IndexPath string // artifact location owned by the backend
	ImageDir  string // where page images for this session are written
	Model     string // e.g. "vidore/colpali"
}

// Handle is a loaded index. Implementations must be safe for concurrent Search.
type Handle interface {
	Search(ctx context.Context, query string, k int) ([]DocumentRef, error)
	Close() error
}

// SkipReporter is implemented by handles whose backend left some files in
// SourceDir out of the index.
type SkipReporter interface {
	Skipped() []string
}

type Indexer interface {
	Index(ctx context.Context, req IndexRequest) (Handle, error)
}

type Loader interface {
	Load(ctx context.Context, sessionId string, indexPath string) (Handle, error)
}

type Backend interface {
	Indexer
	Loader
	Name() string
}

type Option func(*Options)

type Options struct {
	BaseURL      string
	Timeout      time.Duration
	DefaultModel string
}

func WithBaseURL(url string) Option {
	return func(o *Options) {
		o.BaseURL = url
	}
}

func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

func WithDefaultModel(model string) Option {
	return func(o *Options) {
		o.DefaultModel = model
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		Timeout:      10 * time.Minute,
		DefaultModel: "vidore/colpali",
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
