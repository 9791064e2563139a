// Package lexical is a self-contained text retrieval backend. It indexes
// plain-text documents with BM25 so the service can run without the ColPali
// sidecar (development, tests, text-only corpora).
package lexical

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"docqa-be/pkg/retrieval"
	"docqa-be/pkg/utils"
)

const (
	indexFileName = "index.json"
	formatVersion = 1
	pageSize      = 2000

	bm25K1 = 1.2
	bm25B  = 0.75
)

var supportedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".csv":  true,
	".json": true,
	".html": true,
	".xml":  true,
}

var ErrUnsupportedFormat = errors.New("unsupported index format")

type page struct {
	DocId    int            `json:"doc_id"`
	Filename string         `json:"filename"`
	PageNum  int            `json:"page_num"`
	Text     string         `json:"text"`
	Terms    map[string]int `json:"terms"`
	Length   int            `json:"length"`
}

type artifact struct {
	Version int    `json:"version"`
	Model   string `json:"model"`
	Pages   []page `json:"pages"`
}

type Backend struct {
	options retrieval.Options
}

var _ retrieval.Backend = &Backend{}

func NewBackend(opts ...retrieval.Option) *Backend {
	return &Backend{options: retrieval.NewOptions(opts...)}
}

func (b *Backend) Name() string { return "lexical" }

// Index reads every supported file in SourceDir and overwrites the artifact at IndexPath.
func (b *Backend) Index(ctx context.Context, req retrieval.IndexRequest) (retrieval.Handle, error) {
	entries, err := os.ReadDir(req.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("read source dir: %w", err)
	}

	model := req.Model
	if model == "" {
		model = b.options.DefaultModel
	}
	art := &artifact{Version: formatVersion, Model: model}

	docId := 0
	var skipped []string
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() {
			continue
		}
		if !supportedExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			skipped = append(skipped, e.Name())
			continue
		}

		data, err := os.ReadFile(filepath.Join(req.SourceDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}

		for i, text := range utils.SplitPages(string(data), pageSize) {
			terms := tokenize(text)
			art.Pages = append(art.Pages, page{
				DocId:    docId,
				Filename: e.Name(),
				PageNum:  i + 1,
				Text:     text,
				Terms:    countTerms(terms),
				Length:   len(terms),
			})
		}
		docId++
	}

	if docId == 0 {
		return nil, fmt.Errorf("no indexable documents in %s", req.SourceDir)
	}

	if err := writeArtifact(req.IndexPath, art); err != nil {
		return nil, err
	}

	h := newHandle(art)
	h.skipped = skipped
	return h, nil
}

func (b *Backend) Load(ctx context.Context, sessionId string, indexPath string) (retrieval.Handle, error) {
	data, err := os.ReadFile(filepath.Join(indexPath, indexFileName))
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}

	var art artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	if art.Version != formatVersion {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedFormat, art.Version)
	}

	return newHandle(&art), nil
}

func writeArtifact(indexPath string, art *artifact) error {
	if err := os.MkdirAll(indexPath, 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	data, err := json.Marshal(art)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	tmp := filepath.Join(indexPath, indexFileName+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return os.Rename(tmp, filepath.Join(indexPath, indexFileName))
}

// handle is read-only after construction, so Search needs no locking.
type handle struct {
	pages     []page
	docFreq   map[string]int
	avgLength float64
	skipped   []string
}

var _ retrieval.SkipReporter = &handle{}

// Skipped lists files in the source folder that are not plain text.
func (h *handle) Skipped() []string {
	return h.skipped
}

func newHandle(art *artifact) *handle {
	h := &handle{
		pages:   art.Pages,
		docFreq: make(map[string]int),
	}

	total := 0
	for _, p := range art.Pages {
		total += p.Length
		for term := range p.Terms {
			h.docFreq[term]++
		}
	}
	if len(art.Pages) > 0 {
		h.avgLength = float64(total) / float64(len(art.Pages))
	}
	return h
}

func (h *handle) Search(ctx context.Context, query string, k int) ([]retrieval.DocumentRef, error) {
	if k <= 0 {
		k = 3
	}

	queryTerms := tokenize(query)
	n := float64(len(h.pages))

	refs := make([]retrieval.DocumentRef, 0, len(h.pages))
	for _, p := range h.pages {
		score := 0.0
		for _, term := range queryTerms {
			tf := float64(p.Terms[term])
			if tf == 0 {
				continue
			}
			df := float64(h.docFreq[term])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			norm := tf + bm25K1*(1-bm25B+bm25B*float64(p.Length)/h.avgLength)
			score += idf * tf * (bm25K1 + 1) / norm
		}
		if score == 0 {
			continue
		}
		refs = append(refs, retrieval.DocumentRef{
			DocId:    p.DocId,
			Filename: p.Filename,
			PageNum:  p.PageNum,
			Score:    score,
			Text:     p.Text,
		})
	}

	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].Score > refs[j].Score
	})
	if len(refs) > k {
		refs = refs[:k]
	}
	return refs, nil
}

func (h *handle) Close() error {
	return nil
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	terms := fields[:0]
	for _, f := range fields {
		if len(f) > 1 && !stopwords[f] {
			terms = append(terms, f)
		}
	}
	return terms
}

func countTerms(terms []string) map[string]int {
	counts := make(map[string]int, len(terms))
	for _, t := range terms {
		counts[t]++
	}
	return counts
}

var stopwords = map[string]bool{
	"the": true, "is": true, "are": true, "was": true, "and": true, "or": true,
	"of": true, "to": true, "in": true, "on": true, "for": true, "what": true,
	"which": true, "who": true, "how": true, "an": true, "it": true, "this": true,
	"that": true, "with": true, "as": true, "by": true, "be": true, "at": true,
}
