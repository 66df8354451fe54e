// Package classifier derives lightweight routing features from raw query text.
// Classification is a pure function of the input: keyword tables and length
// heuristics only, no model calls.
package classifier

import (
	"strings"
)

// QueryType categorizes what kind of work a query asks for.
type QueryType string

const (
	TypeResearch       QueryType = "research"
	TypeImplementation QueryType = "implementation"
	TypeCoordination   QueryType = "coordination"
	TypeConsensus      QueryType = "consensus"
	TypeDebugging      QueryType = "debugging"
	TypeAnalysis       QueryType = "analysis"
)

// Urgency grades how time-sensitive a query is.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Classification holds the derived features of a query.
type Classification struct {
	Type               QueryType `json:"type"`
	Complexity         float64   `json:"complexity"`
	Domains            []string  `json:"domains"`
	Urgency            Urgency   `json:"urgency"`
	TechnicalDepth     float64   `json:"technical_depth"`
	RequiresCreativity float64   `json:"requires_creativity"`
	EstimatedTokens    int       `json:"estimated_tokens"`
}

// typeTriggers maps query types to their trigger phrases. Scoring counts
// matched triggers per type; the highest count wins.
var typeTriggers = map[QueryType][]string{
	TypeResearch:       {"research", "find", "look up", "what is", "compare", "investigate", "survey"},
	TypeImplementation: {"implement", "build", "create", "write a function", "code", "develop", "scaffold"},
	TypeCoordination:   {"coordinate", "orchestrate", "schedule", "delegate", "organize", "plan"},
	TypeConsensus:      {"consensus", "vote", "agree", "reconcile", "arbitrate", "second opinion"},
	TypeDebugging:      {"debug", "fix", "error", "bug", "crash", "broken", "stack trace", "memory leak"},
	TypeAnalysis:       {"analyze", "review", "evaluate", "assess", "explain", "audit"},
}

// domainKeywords is the fixed keyword-to-domain table. A query matching no
// keyword yields the "general" domain.
var domainKeywords = map[string][]string{
	"frontend":     {"react", "css", "html", "ui", "browser", "component"},
	"backend":      {"api", "server", "endpoint", "rest", "grpc", "service"},
	"database":     {"sql", "database", "query", "schema", "migration", "index"},
	"devops":       {"deploy", "docker", "kubernetes", "ci", "pipeline", "terraform"},
	"security":     {"security", "auth", "vulnerability", "encrypt", "exploit", "token"},
	"ml":           {"model", "training", "embedding", "neural", "dataset", "inference"},
	"architecture": {"architecture", "design", "scalability", "distributed", "microservice"},
	"testing":      {"test", "coverage", "mock", "assertion", "regression"},
}

var urgencyTriggers = map[Urgency][]string{
	UrgencyCritical: {"critical", "urgent", "emergency", "immediately", "production down", "outage"},
	UrgencyHigh:     {"asap", "quickly", "today", "high priority", "blocking"},
	UrgencyMedium:   {"soon", "this week", "when possible"},
}

var depthKeywords = []string{
	"algorithm", "concurrency", "protocol", "latency", "throughput", "complexity",
	"optimization", "memory", "compiler", "kernel", "cryptography", "consensus",
}

var creativityKeywords = []string{
	"brainstorm", "ideas", "creative", "design", "imagine", "alternatives", "novel",
}

// Triggers returns the trigger phrase table keyed by query type.
func Triggers() map[QueryType][]string {
	return typeTriggers
}

// DomainKeywords returns the keyword-to-domain table.
func DomainKeywords() map[string][]string {
	return domainKeywords
}

// Classify derives a Classification from raw query text. It is deterministic
// and never fails: an unrecognized query yields the most generic classification.
func Classify(query string) Classification {
	lower := strings.ToLower(query)
	words := len(strings.Fields(query))

	return Classification{
		Type:               detectType(lower),
		Complexity:         complexityScore(len(query), words),
		Domains:            detectDomains(lower),
		Urgency:            detectUrgency(lower),
		TechnicalDepth:     keywordRatio(lower, depthKeywords, 4),
		RequiresCreativity: keywordRatio(lower, creativityKeywords, 3),
		EstimatedTokens:    estimateTokens(len(query)),
	}
}

// detectType scores every query type by matched triggers and returns the
// highest scorer. Ties and the no-match case fall back to analysis.
func detectType(lower string) QueryType {
	best := TypeAnalysis
	bestScore := 0
	// Fixed evaluation order keeps ties deterministic.
	order := []QueryType{
		TypeConsensus, TypeDebugging, TypeImplementation,
		TypeResearch, TypeCoordination, TypeAnalysis,
	}
	for _, typ := range order {
		score := 0
		for _, trigger := range typeTriggers[typ] {
			if containsTrigger(lower, trigger) {
				score++
			}
		}
		if score > bestScore {
			best = typ
			bestScore = score
		}
	}
	return best
}

func detectDomains(lower string) []string {
	var domains []string
	// Fixed iteration order for deterministic output.
	order := []string{"frontend", "backend", "database", "devops", "security", "ml", "architecture", "testing"}
	for _, domain := range order {
		for _, kw := range domainKeywords[domain] {
			if containsTrigger(lower, kw) {
				domains = append(domains, domain)
				break
			}
		}
	}
	if len(domains) == 0 {
		return []string{"general"}
	}
	return domains
}

func detectUrgency(lower string) Urgency {
	for _, urgency := range []Urgency{UrgencyCritical, UrgencyHigh, UrgencyMedium} {
		for _, trigger := range urgencyTriggers[urgency] {
			if strings.Contains(lower, trigger) {
				return urgency
			}
		}
	}
	return UrgencyLow
}

// complexityScore combines text length and word count into [0,1]. Both terms
// are monotonic in their inputs.
func complexityScore(chars, words int) float64 {
	score := 0.1 + float64(chars)/2000.0 + float64(words)/400.0
	return clamp01(score)
}

// keywordRatio returns matched/saturation clamped to [0,1].
func keywordRatio(lower string, keywords []string, saturation int) float64 {
	matched := 0
	for _, kw := range keywords {
		if containsTrigger(lower, kw) {
			matched++
		}
	}
	return clamp01(float64(matched) / float64(saturation))
}

// estimateTokens approximates the token count of the query plus a response
// allowance. Four characters per token is the usual rough cut.
func estimateTokens(chars int) int {
	return chars/4 + 500
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// containsTrigger checks if the text contains the trigger phrase at a word
// boundary, so "fix" does not match "prefix".
func containsTrigger(text, trigger string) bool {
	idx := strings.Index(text, trigger)
	if idx == -1 {
		return false
	}

	if idx > 0 && isWordChar(text[idx-1]) {
		return false
	}

	endIdx := idx + len(trigger)
	if endIdx < len(text) && isWordChar(text[endIdx]) {
		return false
	}

	return true
}

func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
}
