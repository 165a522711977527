package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"document-portal/models"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Separators in order of preference; "" means a hard character cut.
var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter breaks documents into overlapping chunks, preferring paragraph,
// then line, sentence and word boundaries before cutting mid-word.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// NewSplitter validates 0 <= overlap < size. Invalid pairs are an error,
// never clamped.
func NewSplitter(chunkSize, overlap int) (*Splitter, error) {
	if chunkSize <= 0 || overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be >= 0 and smaller than chunk size %d: %w",
			overlap, chunkSize, models.ErrConfiguration)
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap, separators: defaultSeparators}, nil
}

func (s *Splitter) ChunkSize() int { return s.chunkSize }
func (s *Splitter) Overlap() int   { return s.overlap }

// Split chunks every document in order. Positions count up per file across
// its pages.
func (s *Splitter) Split(docs []models.Document) []models.Chunk {
	var chunks []models.Chunk
	positions := make(map[string]int)

	for _, doc := range docs {
		for _, text := range s.ChunkText(doc.Text) {
			pos := positions[doc.File]
			positions[doc.File] = pos + 1
			chunks = append(chunks, models.Chunk{
				Text: text,
				Metadata: models.ChunkMetadata{
					File:     doc.File,
					Page:     doc.Page,
					Position: pos,
				},
			})
		}
	}
	return chunks
}

// ChunkText splits one text into chunks of at most chunkSize runes.
func (s *Splitter) ChunkText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.splitRecursive(text, s.separators)
}

func (s *Splitter) splitRecursive(text string, separators []string) []string {
	sep := ""
	var finer []string
	for i, candidate := range separators {
		if candidate == "" {
			break
		}
		if strings.Contains(text, candidate) {
			sep = candidate
			finer = separators[i+1:]
			break
		}
	}
	if sep == "" {
		return s.hardCut(text)
	}

	var final, good []string
	for _, piece := range splitKeepSeparator(text, sep) {
		if runeLen(piece) <= s.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good)...)
			good = nil
		}
		final = append(final, s.splitRecursive(piece, finer)...)
	}
	if len(good) > 0 {
		final = append(final, s.merge(good)...)
	}
	return final
}

// merge packs consecutive pieces into chunks and carries trailing pieces
// totalling at most overlap runes into the next chunk.
func (s *Splitter) merge(pieces []string) []string {
	var chunks []string
	var current []string
	total := 0

	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n > s.chunkSize && len(current) > 0 {
			if chunk := strings.TrimSpace(strings.Join(current, "")); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for total > s.overlap || (total+n > s.chunkSize && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
	}
	if chunk := strings.TrimSpace(strings.Join(current, "")); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// hardCut slides a chunkSize window with the configured overlap.
func (s *Splitter) hardCut(text string) []string {
	runes := []rune(text)
	step := s.chunkSize - s.overlap

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := min(start+s.chunkSize, len(runes))
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// splitKeepSeparator splits text after each separator, keeping the separator
// on the preceding piece so the pieces concatenate back to text.
func splitKeepSeparator(text, sep string) []string {
	parts := strings.SplitAfter(text, sep)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
