// Package models holds the shared domain types exchanged between the
// workflow, its activities, and the HTTP API.
package models

// Route is the evidence-sourcing strategy the router picks for a question.
type Route string

const (
	// RouteKnowledgeGraph answers from the curated pest-and-disease graph.
	RouteKnowledgeGraph Route = "knowledge_graph"
	// RouteWebSearch answers from live web results (recency-sensitive questions).
	RouteWebSearch Route = "web_search"
	// RouteInternal answers from model knowledge alone, no retrieval.
	RouteInternal Route = "internal"
)

// Valid reports whether r is one of the three recognized routes.
func (r Route) Valid() bool {
	switch r {
	case RouteKnowledgeGraph, RouteWebSearch, RouteInternal:
		return true
	}
	return false
}

// Citation identifies the material a piece of evidence came from.
// Source is the stable identifier (graph fact name or page title);
// URL is set for web results only.
type Citation struct {
	Source string `json:"source"`
	URL    string `json:"url,omitempty"`
}

// EvidenceComponent names one kind of knowledge-graph content.
type EvidenceComponent string

const (
	ComponentEntities      EvidenceComponent = "entities"
	ComponentRelationships EvidenceComponent = "relationships"
	ComponentEpisodes      EvidenceComponent = "episodes"
	ComponentCommunities   EvidenceComponent = "communities"
)

// EvidenceOptions toggles the graph components a retrieval touches.
type EvidenceOptions struct {
	Entities      bool `json:"entities"`
	Relationships bool `json:"relationships"`
	Episodes      bool `json:"episodes"`
	Communities   bool `json:"communities"`
}

// DefaultEvidenceOptions retrieves entities and relationships, the two
// components that carry almost all answerable facts.
func DefaultEvidenceOptions() EvidenceOptions {
	return EvidenceOptions{Entities: true, Relationships: true}
}

// Any reports whether at least one component is enabled.
func (o EvidenceOptions) Any() bool {
	return o.Entities || o.Relationships || o.Episodes || o.Communities
}

// Components returns the enabled components in canonical order.
func (o EvidenceOptions) Components() []EvidenceComponent {
	var out []EvidenceComponent
	if o.Entities {
		out = append(out, ComponentEntities)
	}
	if o.Relationships {
		out = append(out, ComponentRelationships)
	}
	if o.Episodes {
		out = append(out, ComponentEpisodes)
	}
	if o.Communities {
		out = append(out, ComponentCommunities)
	}
	return out
}
