package services

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"docqa/internal/models"
)

// CitationPattern matches [Page X] or [Pages X-Y]
var CitationPattern = regexp.MustCompile(`(?i)\[Pages?\s+(\d+)(?:\s*-\s*(\d+))?\]`)

// Formatting cleanup patterns
var (
	citationBeforeQuestion  = regexp.MustCompile(`(?i)(\[Pages?\s+\d+(?:\s*-\s*\d+)?\])\s*\?\s*\[Pages?\s+\d+(?:\s*-\s*\d+)?\]`)
	citationBeforePeriod    = regexp.MustCompile(`(?i)(\[Pages?\s+\d+(?:\s*-\s*\d+)?\])\s*\.\s*\[Pages?\s+\d+(?:\s*-\s*\d+)?\]`)
	consecutiveSinglePages  = regexp.MustCompile(`(?i)\[Page\s+(\d+)\]\s*\[Page\s+(\d+)\]`)
	adjacentCitations       = regexp.MustCompile(`(?i)(\[Pages?\s+\d+(?:\s*-\s*\d+)?\])\s*(\[Pages?\s+\d+(?:\s*-\s*\d+)?\])`)
	citationThenPunctuation = regexp.MustCompile(`(?i)\s*(\[Pages?\s+[^\]]+\])\s*([.!?])`)
	punctCitationPunct      = regexp.MustCompile(`(?i)([.!?])\s+(\[Pages?\s+[^\]]+\])\s*([.!?])`)
	doubleSpaces            = regexp.MustCompile(`  +`)
)

var refusalPhrases = []string{
	"cannot find this information",
	"not present in the context",
	"not found in the provided",
	"no information about",
	"not mentioned in",
	"does not contain",
	"no relevant information",
}

// Citation is an extracted page reference
type Citation struct {
	PageStart int
	PageEnd   int
}

// ExtractCitations parses all page citations from an answer
func ExtractCitations(answer string) []Citation {
	citations := []Citation{}
	for _, match := range CitationPattern.FindAllStringSubmatch(answer, -1) {
		pageStart, _ := strconv.Atoi(match[1])
		pageEnd := pageStart
		if match[2] != "" {
			pageEnd, _ = strconv.Atoi(match[2])
		}
		citations = append(citations, Citation{PageStart: pageStart, PageEnd: pageEnd})
	}
	return citations
}

// GetValidPageRange collects all citable page numbers from retrieved chunks
func GetValidPageRange(chunks []*models.ChunkContext) map[int]bool {
	validPages := make(map[int]bool)
	for _, chunk := range chunks {
		for p := chunk.PageStart; p <= chunk.PageEnd; p++ {
			validPages[p] = true
		}
	}
	return validPages
}

// IsRefusalAnswer checks whether the answer is a legitimate refusal
func IsRefusalAnswer(answer string) bool {
	answerLower := strings.ToLower(answer)
	for _, phrase := range refusalPhrases {
		if strings.Contains(answerLower, phrase) {
			return true
		}
	}
	return false
}

// CitationValidator extracts, repairs, and verifies page citations
type CitationValidator struct{}

// NewCitationValidator creates a new citation validator
func NewCitationValidator() *CitationValidator {
	return &CitationValidator{}
}

// cleanCitationFormatting fixes awkward citation placements
func cleanCitationFormatting(answer string) string {
	// [Page X]? [Page Y] -> [Page X]?
	answer = citationBeforeQuestion.ReplaceAllString(answer, "$1?")

	// [Page X]. [Page Y] -> [Page X].
	answer = citationBeforePeriod.ReplaceAllString(answer, "$1.")

	// [Page X] [Page Y] -> [Pages X-Y]
	answer = consecutiveSinglePages.ReplaceAllString(answer, "[Pages $1-$2]")

	// drop extra citations stacked at the end of the same sentence
	answer = adjacentCitations.ReplaceAllString(answer, "$1")

	// citation before punctuation -> after
	answer = citationThenPunctuation.ReplaceAllString(answer, "$2 $1")
	answer = punctCitationPunct.ReplaceAllString(answer, "$1 $2")

	answer = doubleSpaces.ReplaceAllString(answer, " ")

	return strings.TrimSpace(answer)
}

// removeInvalidCitations strips citations whose range includes any invalid page
func removeInvalidCitations(answer string, validPages map[int]bool) string {
	return CitationPattern.ReplaceAllStringFunc(answer, func(match string) string {
		sub := CitationPattern.FindStringSubmatch(match)
		pageStart, _ := strconv.Atoi(sub[1])
		pageEnd := pageStart
		if sub[2] != "" {
			pageEnd, _ = strconv.Atoi(sub[2])
		}

		for p := pageStart; p <= pageEnd; p++ {
			if !validPages[p] {
				return ""
			}
		}
		return match
	})
}

// ensureSentenceCitations appends a default citation to substantial paragraphs
// that lack one. The default page is the page covered by the most chunks, ties
// broken by first-seen order.
func ensureSentenceCitations(answer string, chunks []*models.ChunkContext) string {
	if len(chunks) == 0 {
		return answer
	}

	pageCounts := make(map[int]int)
	pageOrder := []int{}
	for _, chunk := range chunks {
		for p := chunk.PageStart; p <= chunk.PageEnd; p++ {
			if pageCounts[p] == 0 {
				pageOrder = append(pageOrder, p)
			}
			pageCounts[p]++
		}
	}

	if len(pageOrder) == 0 {
		return answer
	}

	primaryPage := pageOrder[0]
	for _, p := range pageOrder {
		if pageCounts[p] > pageCounts[primaryPage] {
			primaryPage = p
		}
	}

	paragraphs := strings.Split(answer, "\n\n")
	resultParagraphs := []string{}

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if IsRefusalAnswer(para) || CitationPattern.MatchString(para) {
			resultParagraphs = append(resultParagraphs, para)
			continue
		}

		if len(strings.Fields(para)) > 10 {
			last := para[len(para)-1]
			if last == '.' || last == '!' || last == '?' {
				para = fmt.Sprintf("%s [Page %d]%c", para[:len(para)-1], primaryPage, last)
			} else {
				para = fmt.Sprintf("%s [Page %d].", para, primaryPage)
			}
		}

		resultParagraphs = append(resultParagraphs, para)
	}

	return strings.Join(resultParagraphs, "\n\n")
}

// ValidateAndFix validates citations in an answer, repairing what it can.
// Repair order: remove out-of-range citations, normalize formatting, inject a
// default citation if none remain. A final re-extraction decides validity; any
// out-of-range page surviving repair is a hard failure for the retry loop.
func (v *CitationValidator) ValidateAndFix(answer string, chunks []*models.ChunkContext) *models.ValidationResult {
	if IsRefusalAnswer(answer) {
		return &models.ValidationResult{
			Valid:      true,
			Answer:     answer,
			CitedPages: []int{},
		}
	}

	validPages := GetValidPageRange(chunks)

	fixedAnswer := removeInvalidCitations(answer, validPages)
	fixedAnswer = cleanCitationFormatting(fixedAnswer)

	if !CitationPattern.MatchString(fixedAnswer) {
		fixedAnswer = ensureSentenceCitations(fixedAnswer, chunks)
	}

	citations := ExtractCitations(fixedAnswer)
	citedPagesSet := make(map[int]bool)
	invalidPages := []int{}

	for _, c := range citations {
		for page := c.PageStart; page <= c.PageEnd; page++ {
			if validPages[page] {
				citedPagesSet[page] = true
			} else {
				invalidPages = append(invalidPages, page)
			}
		}
	}

	citedPages := make([]int, 0, len(citedPagesSet))
	for p := range citedPagesSet {
		citedPages = append(citedPages, p)
	}
	sort.Ints(citedPages)

	if len(invalidPages) > 0 {
		return &models.ValidationResult{
			Valid:        false,
			Answer:       fixedAnswer,
			CitedPages:   citedPages,
			InvalidPages: invalidPages,
			Error:        fmt.Sprintf("Invalid citations remain: %v", invalidPages),
		}
	}

	return &models.ValidationResult{
		Valid:        true,
		Answer:       fixedAnswer,
		CitedPages:   citedPages,
		InvalidPages: []int{},
	}
}
