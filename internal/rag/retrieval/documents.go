package retrieval

import (
	"fmt"

	"github.com/BigPharmacist/ChatApp/internal/rag/chunker"
)

// PrepareDocument chunks text and stamps every chunk with its position.
// metadata is copied, never modified.
func PrepareDocument(text, documentID string, metadata map[string]any, size, overlap int) []Document {
	chunks := chunker.Chunk(text, size, overlap)
	out := make([]Document, len(chunks))
	for i, content := range chunks {
		meta := make(map[string]any, len(metadata)+3)
		for k, v := range metadata {
			meta[k] = v
		}
		meta[MetaChunkIndex] = i
		meta[MetaTotalChunks] = len(chunks)
		if _, ok := meta[MetaDocumentID]; !ok {
			meta[MetaDocumentID] = documentID
		}
		out[i] = Document{
			ID:       fmt.Sprintf("%s_chunk_%d", documentID, i),
			Content:  content,
			Metadata: meta,
		}
	}
	return out
}

func sourceMetadata(doc SourceDocument) map[string]any {
	meta := make(map[string]any, len(doc.Metadata)+3)
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	meta[MetaDocumentID] = doc.ID
	if doc.Title != "" {
		meta[MetaTitle] = doc.Title
	}
	if doc.Filename != "" {
		meta[MetaFilename] = doc.Filename
	}
	return meta
}
