package services

import (
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/jdkato/prose/v2"

	"docqa/internal/models"
)

// Coreference trigger patterns
var coreferencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(it|this|that|these|those)\b`),
	regexp.MustCompile(`\b(the same|the above|the previous|the latter|the former)\b`),
	regexp.MustCompile(`\b(compare|comparison|versus|vs\.?|differ|difference)\b`),
	regexp.MustCompile(`\bhow does (it|that|this)\b`),
	regexp.MustCompile(`\bwhat about\b`),
	regexp.MustCompile(`\band (the|that|those)\b`),
}

// Entity extraction patterns
var (
	quarterPattern  = regexp.MustCompile(`(?i)Q[1-4]`)
	yearPattern     = regexp.MustCompile(`\b20\d{2}\b`)
	moneyPattern    = regexp.MustCompile(`(?i)\$[\d.]+[BMK]?\b`)
	percentPattern  = regexp.MustCompile(`\b\d+(?:\.\d+)?%`)
	properPattern   = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)
	businessPattern = regexp.MustCompile(`(?i)\b(revenue|profit|margin|growth|sales|cost|expense|income|earnings|EBITDA)\b`)

	subjectPattern       = regexp.MustCompile(`(?i)(?:what|how|when|where|why|which)\s+(?:is|was|are|were|did)?\s*(?:the\s+)?(\w+(?:\s+\w+)?)`)
	itPattern            = regexp.MustCompile(`(?i)\bit\b`)
	thatThisPattern      = regexp.MustCompile(`(?i)\b(that|this)\b`)
	compareFollowPattern = regexp.MustCompile(`(?i)\bhow does (it|that|this) compare\b`)
	whatAboutPattern     = regexp.MustCompile(`(?i)\bwhat about\b`)
)

// ConversationResolver rewrites follow-up questions by resolving coreferences
// against recent conversation history
type ConversationResolver struct {
	logger *log.Logger
}

// NewConversationResolver creates a new conversation resolver
func NewConversationResolver(logger *log.Logger) *ConversationResolver {
	return &ConversationResolver{
		logger: logger,
	}
}

// ExtractEntities pulls key entities from text using patterns plus NER.
// Results are deduplicated preserving first-seen order so downstream
// substitution rules are deterministic.
func ExtractEntities(text string) []string {
	entities := []string{}
	seen := make(map[string]bool)

	add := func(e string) {
		if e == "" || seen[e] {
			return
		}
		seen[e] = true
		entities = append(entities, e)
	}

	for _, m := range quarterPattern.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range yearPattern.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range moneyPattern.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range percentPattern.FindAllString(text, -1) {
		add(m)
	}

	// Capitalized terms, likely proper nouns or concepts
	for _, m := range properPattern.FindAllString(text, -1) {
		add(m)
	}

	for _, m := range businessPattern.FindAllString(text, -1) {
		add(strings.ToLower(m))
	}

	// NER pass catches named entities the patterns miss
	if doc, err := prose.NewDocument(text); err == nil {
		for _, ent := range doc.Entities() {
			add(ent.Text)
		}
	}

	return entities
}

// NeedsCoreferenceResolution checks if a question contains unresolved references
func NeedsCoreferenceResolution(question string) bool {
	questionLower := strings.ToLower(question)
	for _, pattern := range coreferencePatterns {
		if pattern.MatchString(questionLower) {
			return true
		}
	}
	return false
}

// replaceFirst substitutes only the first match of a pattern
func replaceFirst(pattern *regexp.Regexp, text, replacement string) string {
	loc := pattern.FindStringIndex(text)
	if loc == nil {
		return text
	}
	return text[:loc[0]] + replacement + text[loc[1]:]
}

// rewriteWithContext resolves coreferences using rule-based substitution
func rewriteWithContext(question, lastQuestion, lastAnswer string, entities []string) string {
	rewritten := question

	entityContext := ""
	if len(entities) > 0 {
		limit := len(entities)
		if limit > 5 {
			limit = 5
		}
		entityContext = strings.Join(entities[:limit], ", ")
	}

	if entityContext != "" {
		// "it" -> the entity, when there is exactly one candidate
		if itPattern.MatchString(rewritten) && len(entities) == 1 {
			rewritten = itPattern.ReplaceAllString(rewritten, entities[0])
		}

		// "that"/"this" -> the subject of the previous question
		if thatThisPattern.MatchString(rewritten) {
			if subjectMatch := subjectPattern.FindStringSubmatch(lastQuestion); subjectMatch != nil {
				rewritten = replaceFirst(thatThisPattern, rewritten, subjectMatch[1])
			}
		}
	}

	// Comparison follow-ups anchor to the first extracted entity
	if compareFollowPattern.MatchString(rewritten) && len(entities) > 0 {
		rewritten = compareFollowPattern.ReplaceAllString(rewritten, fmt.Sprintf("how does %s compare", entities[0]))
	}

	// "what about X" -> "what is X" with entity context appended
	if whatAboutPattern.MatchString(rewritten) {
		rewritten = whatAboutPattern.ReplaceAllString(rewritten, "what is")
		if entityContext != "" && !strings.Contains(rewritten, entityContext) {
			rewritten = fmt.Sprintf("%s (in context of %s)", rewritten, entityContext)
		}
	}

	return rewritten
}

// ResolveFollowup resolves coreferences in a follow-up question against the
// conversation history. An empty history returns the question unchanged.
func (r *ConversationResolver) ResolveFollowup(question string, messages []*models.Message) *models.ConversationContext {
	if len(messages) == 0 {
		return &models.ConversationContext{
			Entities:          []string{},
			RewrittenQuestion: question,
			NeedsRewrite:      false,
		}
	}

	// Find the last user/assistant exchange
	var lastUser, lastAssistant string
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Role == "assistant" && lastAssistant == "" {
			lastAssistant = msg.Content
		} else if msg.Role == "user" && lastUser == "" {
			lastUser = msg.Content
		}
		if lastUser != "" && lastAssistant != "" {
			break
		}
	}

	if !NeedsCoreferenceResolution(question) {
		return &models.ConversationContext{
			Entities:          ExtractEntities(lastAssistant),
			LastQuestion:      lastUser,
			LastAnswer:        lastAssistant,
			RewrittenQuestion: question,
			NeedsRewrite:      false,
		}
	}

	entities := []string{}
	seen := make(map[string]bool)
	for _, e := range append(ExtractEntities(lastUser), ExtractEntities(lastAssistant)...) {
		if !seen[e] {
			seen[e] = true
			entities = append(entities, e)
		}
	}

	rewritten := question
	if lastUser != "" && lastAssistant != "" {
		rewritten = rewriteWithContext(question, lastUser, lastAssistant, entities)
	}

	if rewritten != question {
		r.logger.Printf("Resolved follow-up: %q -> %q", question, rewritten)
	}

	return &models.ConversationContext{
		Entities:          entities,
		LastQuestion:      lastUser,
		LastAnswer:        lastAssistant,
		RewrittenQuestion: rewritten,
		NeedsRewrite:      rewritten != question,
	}
}
