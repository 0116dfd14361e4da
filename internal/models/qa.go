package models

// ValidationResult is the outcome of citation validation for one
// generation attempt. Produced fresh per attempt.
type ValidationResult struct {
	Valid        bool   `json:"valid"`
	Answer       string `json:"answer"`
	CitedPages   []int  `json:"cited_pages"`
	InvalidPages []int  `json:"invalid_pages"`
	Error        string `json:"error,omitempty"`
}

// ConfidenceInputs feed the deterministic confidence score.
type ConfidenceInputs struct {
	RetrievalScores      []float64
	NumChunksRetrieved   int
	NumChunksCited       int
	NumPagesCited        int
	NumDocuments         int
	CitationValid        bool
	RequiredRegeneration bool
}

// QAResult is the final single-document QA outcome.
type QAResult struct {
	Answer     string         `json:"answer"`
	Sources    []ChunkContext `json:"sources"`
	CitedPages []int          `json:"cited_pages"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
}

// MultiDocQAResult is the final multi-document QA outcome with confidence.
type MultiDocQAResult struct {
	Answer               string         `json:"answer"`
	Sources              []ChunkContext `json:"sources"`
	CitedPages           []int          `json:"cited_pages"`
	Confidence           float64        `json:"confidence"`
	Success              bool           `json:"success"`
	Error                string         `json:"error,omitempty"`
	RequiredRegeneration bool           `json:"required_regeneration"`
}

// QuestionRequest is the API request for asking a question.
type QuestionRequest struct {
	Question       string   `json:"question"`
	DocumentIDs    []string `json:"document_ids,omitempty"`
	ConversationID string   `json:"conversation_id,omitempty"`
	TopK           int      `json:"top_k,omitempty"`
}

// Validate validates the question request
func (r *QuestionRequest) Validate() error {
	if r.Question == "" {
		return &ValidationError{Field: "question", Message: "question is required"}
	}
	if r.TopK < 0 {
		return &ValidationError{Field: "top_k", Message: "top_k cannot be negative"}
	}
	if r.TopK > 50 {
		return &ValidationError{Field: "top_k", Message: "top_k cannot exceed 50"}
	}
	return nil
}

// SourceInfo is the API view of an answer source.
type SourceInfo struct {
	ChunkID      string `json:"chunk_id"`
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name,omitempty"`
	PageStart    int    `json:"page_start"`
	PageEnd      int    `json:"page_end"`
}

// AnswerResponse is the API response for a QA request.
type AnswerResponse struct {
	Answer                string       `json:"answer"`
	Confidence            float64      `json:"confidence"`
	Sources               []SourceInfo `json:"sources"`
	CitedPages            []int        `json:"cited_pages"`
	ConversationID        string       `json:"conversation_id,omitempty"`
	ConversationPersisted bool         `json:"conversation_persisted"`
	ResolvedQuestion      string       `json:"resolved_question,omitempty"`
}
