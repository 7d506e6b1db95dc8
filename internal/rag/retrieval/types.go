package retrieval

// Document is one indexable chunk. ID is the caller's id, usually
// "<documentId>_chunk_<index>".
type Document struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SourceDocument is a whole document before chunking.
type SourceDocument struct {
	ID       string         `json:"id"`
	Title    string         `json:"title,omitempty"`
	Filename string         `json:"filename,omitempty"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Result struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// ReindexReport counts what a ReindexAll run managed before it stopped.
type ReindexReport struct {
	Documents int    `json:"documents"`
	Chunks    int    `json:"chunks"`
	FailedID  string `json:"failed_id,omitempty"`
}

const (
	MetaDocumentID  = "document_id"
	MetaChunkIndex  = "chunk_index"
	MetaTotalChunks = "total_chunks"
	MetaTitle       = "title"
	MetaFilename    = "filename"

	payloadContentKey = "content"
)
