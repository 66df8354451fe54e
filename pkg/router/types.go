// Package router decides which provider(s) answer a query and whether their
// answers must be reconciled by consensus.
package router

import (
	"fmt"
	"time"
)

// Constraints narrows the router's candidate set. Zero values mean
// unconstrained.
type Constraints struct {
	MaxCost           float64
	MaxTime           time.Duration
	ExcludedProviders []string
	// RequireConsensus overrides the classification-derived default when set.
	RequireConsensus *bool
}

// Selection is the router's immutable decision for one query.
type Selection struct {
	Primary           string `json:"primary"`
	Secondary         string `json:"secondary,omitempty"`
	RequiresConsensus bool   `json:"requires_consensus"`
	// ConsensusProviders has at least two entries whenever RequiresConsensus
	// is true.
	ConsensusProviders []string      `json:"consensus_providers,omitempty"`
	RoutingConfidence  float64       `json:"routing_confidence"`
	Reasoning          string        `json:"reasoning"`
	EstimatedCost      float64       `json:"estimated_cost"`
	EstimatedTime      time.Duration `json:"estimated_time"`
}

// ConstraintViolationError reports that caller constraints eliminated every
// candidate provider.
type ConstraintViolationError struct {
	Reason string
}

func (e *ConstraintViolationError) Error() string {
	return fmt.Sprintf("routing constraints eliminated all candidate providers: %s", e.Reason)
}
