package models

// Document is the parsed text of one file, or one page of a paginated file.
type Document struct {
	Text       string `json:"text"`
	File       string `json:"file"`
	Page       int    `json:"page,omitempty"`
	TotalPages int    `json:"total_pages,omitempty"`
}

// ChunkMetadata travels with a chunk into the index.
// Source and RowID form the row-level identity used for deduplication;
// document readers leave them empty so free text is deduplicated by content.
type ChunkMetadata struct {
	Source   string `json:"source,omitempty"`
	RowID    string `json:"row_id,omitempty"`
	File     string `json:"file,omitempty"`
	Page     int    `json:"page,omitempty"`
	Position int    `json:"position"`
}

type Chunk struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ScoredChunk is a search hit.
type ScoredChunk struct {
	Chunk
	Score float64 `json:"score"`
}
