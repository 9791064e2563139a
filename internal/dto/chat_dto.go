package dto

type UploadResponse struct {
	SessionId    string   `json:"session_id"`
	IndexedFiles []string `json:"indexed_files"`
	TotalIndexed int      `json:"total_indexed"`
	IndexerModel string   `json:"indexer_model"`
}

type GenerateRequest struct {
	Query           string `json:"query" validate:"required"`
	GenerationModel string `json:"generation_model"`
	ResizedHeight   int    `json:"resized_height" validate:"omitempty,multiple28"`
	ResizedWidth    int    `json:"resized_width" validate:"omitempty,multiple28"`
}

type RetrievedPageDTO struct {
	Filename string  `json:"filename"`
	PageNum  int     `json:"page_num"`
	Score    float64 `json:"score"`
	ImageURL string  `json:"image_url,omitempty"`
}

type GenerateResponse struct {
	Response string             `json:"response"`
	Images   []string           `json:"images"`
	Pages    []RetrievedPageDTO `json:"pages"`
}

type ChatOptionsResponse struct {
	IndexerModels          []string `json:"indexer_models"`
	GenerationModels       []string `json:"generation_models"`
	DefaultIndexerModel    string   `json:"default_indexer_model"`
	DefaultGenerationModel string   `json:"default_generation_model"`
	DefaultResizedHeight   int      `json:"default_resized_height"`
	DefaultResizedWidth    int      `json:"default_resized_width"`
	RetrievalBackend       string   `json:"retrieval_backend"`
}
