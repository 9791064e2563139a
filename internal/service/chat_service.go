package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"time"

	"docqa-be/internal/config"
	"docqa-be/internal/dto"
	"docqa-be/internal/entity"
	"docqa-be/internal/pkg/logger"
	"docqa-be/pkg/apperr"
	"docqa-be/pkg/keylock"
	"docqa-be/pkg/llm/factory"
	"docqa-be/pkg/rag/response"
	"docqa-be/pkg/retrieval"
	"docqa-be/pkg/session"

	"golang.org/x/sync/semaphore"
)

// Indexer models selectable by clients.
var IndexerModels = []string{"vidore/colpali", "vidore/colpali-v1.2", "vidore/colqwen2-v0.1"}

// ResponseGenerator turns retrieved pages and a query into an answer.
type ResponseGenerator interface {
	Generate(ctx context.Context, refs []retrieval.DocumentRef, query string, params response.DisplayParams) (string, error)
}

type IChatService interface {
	Upload(ctx context.Context, sessionId string, files []*multipart.FileHeader, indexerModel string) (*dto.UploadResponse, error)
	Generate(ctx context.Context, sessionId string, req *dto.GenerateRequest) (*dto.GenerateResponse, error)
	Options() *dto.ChatOptionsResponse
}

type chatService struct {
	lifecycle *session.Lifecycle
	generator ResponseGenerator
	logger    logger.ILogger

	uploads    *keylock.KeyLock
	generation *semaphore.Weighted

	retrievalCfg  config.RetrievalConfig
	generationCfg config.GenerationConfig
	staticRoot    string
	staticURL     string
}

func NewChatService(
	lifecycle *session.Lifecycle,
	generator ResponseGenerator,
	cfg *config.Config,
	staticURL string,
	log logger.ILogger,
) IChatService {
	workers := cfg.Generation.Workers
	if workers <= 0 {
		workers = 1
	}
	return &chatService{
		lifecycle:     lifecycle,
		generator:     generator,
		logger:        log,
		uploads:       keylock.New(),
		generation:    semaphore.NewWeighted(int64(workers)),
		retrievalCfg:  cfg.Retrieval,
		generationCfg: cfg.Generation,
		staticRoot:    cfg.Storage.StaticFolder,
		staticURL:     staticURL,
	}
}

// Upload stores the files in the session's upload folder and indexes them.
// Uploads to the same session are serialized end to end.
func (s *chatService) Upload(ctx context.Context, sessionId string, files []*multipart.FileHeader, indexerModel string) (*dto.UploadResponse, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files were uploaded", apperr.ErrInvalidInput)
	}
	if indexerModel == "" {
		indexerModel = s.retrievalCfg.IndexerModel
	}
	if s.retrievalCfg.Backend != "lexical" && !contains(IndexerModels, indexerModel) {
		return nil, fmt.Errorf("%w: unsupported indexer model %q", apperr.ErrInvalidInput, indexerModel)
	}

	unlock := s.uploads.Lock(sessionId)
	defer unlock()

	folder := s.lifecycle.UploadDir(sessionId)
	saved := make([]string, 0, len(files))
	err := s.lifecycle.StageUpload(ctx, sessionId, func(dir string) error {
		for _, fh := range files {
			name, err := saveUpload(dir, fh)
			if err != nil {
				return err
			}
			saved = append(saved, name)
			s.logger.Info("ChatService", "File saved", map[string]interface{}{
				"session_id": sessionId,
				"file":       name,
				"size":       fh.Size,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.lifecycle.IndexDocuments(ctx, sessionId, folder, saved, indexerModel)
	if err != nil {
		return nil, err
	}

	return &dto.UploadResponse{
		SessionId:    sessionId,
		IndexedFiles: intersect(saved, updated.IndexedFiles),
		TotalIndexed: len(updated.IndexedFiles),
		IndexerModel: indexerModel,
	}, nil
}

// Generate retrieves pages for the query, asks the selected model and
// appends both turns to the session history.
func (s *chatService) Generate(ctx context.Context, sessionId string, req *dto.GenerateRequest) (*dto.GenerateResponse, error) {
	model := req.GenerationModel
	if model == "" {
		model = s.generationCfg.DefaultModel
	}
	if !factory.IsSupported(model) {
		return nil, fmt.Errorf("%w: unsupported generation model %q", apperr.ErrInvalidInput, model)
	}
	height, width := req.ResizedHeight, req.ResizedWidth
	if height == 0 {
		height = s.generationCfg.DefaultResizedDim
	}
	if width == 0 {
		width = s.generationCfg.DefaultResizedDim
	}

	refs, err := s.lifecycle.Retrieve(ctx, sessionId, req.Query, s.retrievalCfg.TopK)
	if err != nil {
		return nil, err
	}

	if err := s.generation.Acquire(ctx, 1); err != nil {
		return nil, apperr.External("generate", err)
	}
	defer s.generation.Release(1)

	genCtx, cancel := context.WithTimeout(ctx, s.generationCfg.Timeout)
	defer cancel()

	start := time.Now()
	answer, err := s.generator.Generate(genCtx, refs, req.Query, response.DisplayParams{
		ResizedHeight: height,
		ResizedWidth:  width,
		Model:         model,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.lifecycle.AppendChat(ctx, sessionId,
		entity.ChatTurn{Role: entity.ChatRoleUser, Content: req.Query},
		entity.ChatTurn{Role: entity.ChatRoleAssistant, Content: answer},
	); err != nil {
		return nil, err
	}

	s.logger.Info("ChatService", "Response generated", map[string]interface{}{
		"session_id":  sessionId,
		"model":       model,
		"pages":       len(refs),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	res := &dto.GenerateResponse{
		Response: answer,
		Images:   make([]string, 0, len(refs)),
		Pages:    make([]dto.RetrievedPageDTO, 0, len(refs)),
	}
	for _, ref := range refs {
		page := dto.RetrievedPageDTO{
			Filename: ref.Filename,
			PageNum:  ref.PageNum,
			Score:    ref.Score,
		}
		if url := s.imageURL(ref.ImagePath); url != "" {
			page.ImageURL = url
			res.Images = append(res.Images, url)
		}
		res.Pages = append(res.Pages, page)
	}
	return res, nil
}

func (s *chatService) Options() *dto.ChatOptionsResponse {
	return &dto.ChatOptionsResponse{
		IndexerModels:          IndexerModels,
		GenerationModels:       factory.Models,
		DefaultIndexerModel:    s.retrievalCfg.IndexerModel,
		DefaultGenerationModel: s.generationCfg.DefaultModel,
		DefaultResizedHeight:   s.generationCfg.DefaultResizedDim,
		DefaultResizedWidth:    s.generationCfg.DefaultResizedDim,
		RetrievalBackend:       s.retrievalCfg.Backend,
	}
}

// imageURL maps a page image under the static root to its public URL.
func (s *chatService) imageURL(imagePath string) string {
	rel, ok := retrieval.RelativeImagePath(s.staticRoot, imagePath)
	if !ok {
		return ""
	}
	return path.Join(s.staticURL, filepath.ToSlash(rel))
}

func saveUpload(folder string, fh *multipart.FileHeader) (string, error) {
	name := filepath.Base(filepath.Clean("/" + fh.Filename))
	if name == "/" || name == "." || name == "" {
		return "", fmt.Errorf("%w: invalid file name %q", apperr.ErrInvalidInput, fh.Filename)
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("%w: unreadable upload %q", apperr.ErrInvalidInput, fh.Filename)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(folder, name))
	if err != nil {
		return "", apperr.Storage("save upload", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", apperr.Storage("save upload", err)
	}
	if err := dst.Close(); err != nil {
		return "", apperr.Storage("save upload", err)
	}
	return name, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// intersect keeps the names in files that also appear in recorded.
func intersect(files []string, recorded []string) []string {
	set := make(map[string]struct{}, len(recorded))
	for _, name := range recorded {
		set[name] = struct{}{}
	}
	out := make([]string, 0, len(files))
	for _, name := range files {
		if _, ok := set[name]; ok {
			out = append(out, name)
		}
	}
	return out
}
