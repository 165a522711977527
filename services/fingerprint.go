package services

import (
	"crypto/sha256"
	"encoding/hex"

	"document-portal/models"
)

// Fingerprint is the dedup identity of a chunk: "source::row_id" when the
// chunk has a row-level source, otherwise the SHA-256 of its text. Chunks
// from one source without row ids share a fingerprint.
func Fingerprint(text string, meta models.ChunkMetadata) string {
	if meta.Source != "" {
		return meta.Source + "::" + meta.RowID
	}
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
