// Package provider defines the client capability for upstream model providers
// and one implementation per configured provider.
package provider

import (
	"context"
	"time"
)

// Client is the per-provider query capability. A call must fail, never hang,
// past the timeout carried by ctx or opts.
type Client interface {
	// Query sends the text to the provider and returns its response.
	Query(ctx context.Context, text string, opts QueryOptions) (*Response, error)

	// Name returns the provider's identifier.
	Name() string

	// Models returns the list of supported models.
	Models() []string
}

// Profile holds the configured identity of a provider: its specialties feed
// the router's scoring and the consensus engine's expertise multiplier.
type Profile struct {
	Name          string
	Specialties   []string
	QualityWeight float64
	DefaultModel  string
	CostPer1K     float64
	AvgLatency    time.Duration
}

// expertiseBonus is the multiplier applied to a provider's vote weight when
// its specialty keywords appear in the query.
const expertiseBonus = 1.2

// ExpertiseMultiplier returns 1.2 when any of the profile's specialty
// keywords appears in the query, else 1.0.
func (p Profile) ExpertiseMultiplier(query string) float64 {
	if p.MatchCount(query) > 0 {
		return expertiseBonus
	}
	return 1.0
}

// MatchCount counts the profile's specialty keywords present in the text.
func (p Profile) MatchCount(text string) int {
	lower := toLower(text)
	count := 0
	for _, kw := range p.Specialties {
		if containsFold(lower, kw) {
			count++
		}
	}
	return count
}
