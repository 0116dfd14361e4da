package services

import (
	"log"
	"regexp"
	"sort"
	"strings"

	"docqa/internal/models"
)

// Chunking parameters in estimated tokens
const (
	TargetChunkSize = 650
	MinChunkSize    = 500
	MaxChunkSize    = 800
	OverlapSize     = 125

	maxRecursionDepth = 10
)

var specialCharPattern = regexp.MustCompile(`[^\w\s]`)

// EstimateTokens estimates the token count of English text.
// Uses a word-based heuristic: ~1.3 tokens per word, plus extra for punctuation.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	specialChars := len(specialCharPattern.FindAllString(text, -1))
	return int(float64(words)*1.3 + float64(specialChars)*0.5)
}

// tokensToChars converts a token estimate to a character count (~4 chars per token)
func tokensToChars(tokens int) int {
	return tokens * 4
}

// ChunkerService splits document text into overlapping semantic chunks
type ChunkerService struct {
	logger *log.Logger
}

// NewChunkerService creates a new chunker service
func NewChunkerService(logger *log.Logger) *ChunkerService {
	return &ChunkerService{
		logger: logger,
	}
}

// ChunkDocument splits page texts into semantic chunks.
// Pages are sorted by page number, concatenated with position tracking,
// recursively split on paragraph/line/sentence/word boundaries, small
// segments merged, then assembled into overlapping chunks.
func (s *ChunkerService) ChunkDocument(pages []*models.PageText) []*models.Chunk {
	if len(pages) == 0 {
		return []*models.Chunk{}
	}

	sorted := make([]*models.PageText, len(pages))
	copy(sorted, pages)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].PageNumber < sorted[j].PageNumber
	})

	// Concatenate text, recording which character position starts each page
	fullText := ""
	pageMarkers := make(map[int]int)

	for _, page := range sorted {
		pageMarkers[len(fullText)] = page.PageNumber
		fullText += page.Text
		if !strings.HasSuffix(fullText, "\n") {
			fullText += "\n"
		}
	}
	if strings.TrimSpace(fullText) == "" {
		return []*models.Chunk{}
	}

	separators := []string{"\n\n", "\n", ". ", " "}
	segments := splitBySeparators(fullText, separators, 0)
	segments = mergeSmallChunks(segments, MinChunkSize/2)

	chunks := createOverlappingChunks(segments, OverlapSize, pageMarkers)

	s.logger.Printf("Created %d chunks from %d pages", len(chunks), len(pages))
	return chunks
}

// fallbackSplit slices oversized text by raw character windows with overlap
func fallbackSplit(text string) []string {
	result := []string{}
	chunkChars := tokensToChars(MaxChunkSize)
	overlapChars := tokensToChars(OverlapSize)
	step := chunkChars - overlapChars

	for i := 0; i < len(text); i += step {
		end := i + chunkChars
		if end > len(text) {
			end = len(text)
		}
		part := text[i:end]
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

// splitBySeparators recursively splits text by separators, preserving order
func splitBySeparators(text string, separators []string, depth int) []string {
	if text == "" {
		return []string{}
	}

	if len(separators) == 0 || depth >= maxRecursionDepth {
		if EstimateTokens(text) > MaxChunkSize {
			return fallbackSplit(text)
		}
		return []string{text}
	}

	sep := separators[0]
	remainingSeps := separators[1:]

	parts := strings.Split(text, sep)

	result := []string{}
	for i, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}

		// Add separator back except for last part
		if i < len(parts)-1 {
			part = part + sep
		}

		if EstimateTokens(part) <= MaxChunkSize || len(remainingSeps) == 0 {
			if EstimateTokens(part) > MaxChunkSize && len(remainingSeps) == 0 {
				result = append(result, fallbackSplit(part)...)
			} else {
				result = append(result, part)
			}
		} else {
			result = append(result, splitBySeparators(part, remainingSeps, depth+1)...)
		}
	}

	return result
}

// mergeSmallChunks merges adjacent segments until they reach minSize tokens
func mergeSmallChunks(segments []string, minSize int) []string {
	if len(segments) == 0 {
		return []string{}
	}

	result := []string{}
	current := ""

	for _, segment := range segments {
		if strings.TrimSpace(segment) == "" {
			continue
		}

		if current == "" {
			current = segment
		} else if EstimateTokens(current) < minSize {
			current = current + segment
		} else {
			result = append(result, current)
			current = segment
		}
	}

	if current != "" {
		result = append(result, current)
	}

	return result
}

// pageIndex maps character positions to page numbers via binary search
type pageIndex struct {
	positions []int
	pages     []int
}

func newPageIndex(pageMarkers map[int]int) *pageIndex {
	positions := make([]int, 0, len(pageMarkers))
	for pos := range pageMarkers {
		positions = append(positions, pos)
	}
	sort.Ints(positions)

	pages := make([]int, len(positions))
	for i, pos := range positions {
		pages[i] = pageMarkers[pos]
	}

	return &pageIndex{positions: positions, pages: pages}
}

// pageAt returns the page number covering a character position
func (p *pageIndex) pageAt(position int) int {
	if len(p.positions) == 0 {
		return 0
	}
	idx := sort.SearchInts(p.positions, position+1)
	if idx == 0 {
		return 0
	}
	return p.pages[idx-1]
}

// createOverlappingChunks assembles segments into chunks, carrying a trailing
// overlap from each finalized chunk into the next for retrieval continuity
func createOverlappingChunks(segments []string, overlapSize int, pageMarkers map[int]int) []*models.Chunk {
	chunks := []*models.Chunk{}
	currentContent := ""
	chunkIndex := 0

	index := newPageIndex(pageMarkers)
	currentStartPage := index.pageAt(0)
	textPos := 0

	for _, segment := range segments {
		segmentTokens := EstimateTokens(segment)
		currentTokens := EstimateTokens(currentContent)

		if currentContent != "" && currentTokens+segmentTokens > MaxChunkSize {
			content := strings.TrimSpace(currentContent)
			if content != "" {
				pageEnd := currentStartPage
				if textPos > 0 {
					pageEnd = index.pageAt(textPos - 1)
				}

				chunks = append(chunks, &models.Chunk{
					ChunkIndex: chunkIndex,
					Content:    content,
					PageStart:  currentStartPage,
					PageEnd:    pageEnd,
					TokenCount: EstimateTokens(content),
				})
				chunkIndex++
			}

			// Carry overlap into the next chunk, trimmed to a sentence boundary
			overlapChars := tokensToChars(overlapSize)
			if len(currentContent) > overlapChars {
				overlapText := currentContent[len(currentContent)-overlapChars:]
				if sentenceEnd := strings.LastIndex(overlapText, ". "); sentenceEnd > 0 {
					overlapText = overlapText[sentenceEnd+2:]
				}
				currentContent = overlapText
				currentStartPage = index.pageAt(textPos - len(overlapText))
			} else {
				currentContent = ""
				currentStartPage = index.pageAt(textPos)
			}
		}

		currentContent += segment
		textPos += len(segment)
	}

	if strings.TrimSpace(currentContent) != "" {
		content := strings.TrimSpace(currentContent)
		chunks = append(chunks, &models.Chunk{
			ChunkIndex: chunkIndex,
			Content:    content,
			PageStart:  currentStartPage,
			PageEnd:    index.pageAt(textPos - 1),
			TokenCount: EstimateTokens(content),
		})
	}

	return chunks
}
