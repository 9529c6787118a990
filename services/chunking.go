package services

import (
	"regexp"
	"strings"
)

// ChunkingService splits extracted text into retrieval-sized spans with
// paragraph and sentence boundary awareness.
type ChunkingService struct {
	maxChunkSize   int
	overlap        int
	minChunkSize   int
	sentenceRegex  *regexp.Regexp
	paragraphRegex *regexp.Regexp
}

// NewChunkingService creates a new chunking service
func NewChunkingService(maxChunkSize, overlap, minChunkSize int) *ChunkingService {
	return &ChunkingService{
		maxChunkSize:   maxChunkSize,
		overlap:        overlap,
		minChunkSize:   minChunkSize,
		sentenceRegex:  regexp.MustCompile(`[.!?]+[\s]+`),
		paragraphRegex: regexp.MustCompile(`\n\n+`),
	}
}

// ChunkText splits text into ordered spans no longer than maxChunkSize,
// carrying overlap characters of trailing context between adjacent spans.
func (cs *ChunkingService) ChunkText(text string) []string {
	paragraphs := cs.paragraphRegex.Split(text, -1)
	if len(paragraphs) == 0 {
		return nil
	}

	var chunks []string
	currentChunk := new(strings.Builder)
	currentSize := 0

	for _, paragraph := range paragraphs {
		paragraph = strings.TrimSpace(paragraph)
		if len(paragraph) == 0 {
			continue
		}

		paraSize := len(paragraph)

		// If adding this paragraph would exceed max size
		if currentSize+paraSize > cs.maxChunkSize && currentSize >= cs.minChunkSize {
			if currentChunk.Len() > 0 {
				chunks = append(chunks, currentChunk.String())
			}

			// Start new chunk with overlap from the previous one
			currentChunk = new(strings.Builder)
			currentSize = 0

			if len(chunks) > 0 && cs.overlap > 0 {
				overlapText := cs.getOverlapText(chunks[len(chunks)-1], cs.overlap)
				if len(overlapText) > 0 {
					currentChunk.WriteString(overlapText)
					currentSize += len(overlapText)
				}
			}
		}

		if currentChunk.Len() > 0 {
			currentChunk.WriteString("\n\n")
		}
		currentChunk.WriteString(paragraph)
		currentSize += paraSize
	}

	if currentChunk.Len() > 0 {
		chunks = append(chunks, currentChunk.String())
	}

	return chunks
}

// getOverlapText extracts overlap text from end of previous chunk
func (cs *ChunkingService) getOverlapText(text string, overlapSize int) string {
	if len(text) <= overlapSize {
		return text
	}

	// Prefer a sentence boundary over a hard character cut
	tail := text[len(text)-overlapSize:]
	if loc := cs.sentenceRegex.FindStringIndex(tail); loc != nil {
		return strings.TrimSpace(tail[loc[1]:])
	}
	return tail
}
