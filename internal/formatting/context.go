// Package formatting assembles retrieved evidence into the context block
// handed to answer generation, and merges citation lists.
package formatting

import (
	"fmt"
	"strings"

	"github.com/orchardai/orchestrator/internal/models"
)

// Section is one labeled group of evidence with its citations. Citations
// are positional: Citations[i] attributes Contents[i] when present.
type Section struct {
	Label     string
	Contents  []string
	Citations []models.Citation
}

// Labels for the evidence sections, in presentation order.
const (
	LabelEntities      = "KNOWLEDGE GRAPH ENTITIES"
	LabelRelationships = "KNOWLEDGE GRAPH RELATIONSHIPS"
	LabelEpisodes      = "KNOWLEDGE GRAPH PASSAGES"
	LabelCommunities   = "KNOWLEDGE GRAPH TOPIC SUMMARIES"
	LabelWeb           = "WEB SEARCH RESULTS"
)

// BuildContext renders the non-empty sections into a single prompt block.
// Every retained content item appears exactly once, in input order, with
// inline source attribution where a citation is known. Empty sections are
// omitted; if everything is empty the result is "".
func BuildContext(sections []Section) string {
	var b strings.Builder
	for _, sec := range sections {
		if len(sec.Contents) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "===== %s =====\n", sec.Label)
		for i, content := range sec.Contents {
			fmt.Fprintf(&b, "%d. %s", i+1, strings.TrimSpace(content))
			if i < len(sec.Citations) && sec.Citations[i].Source != "" {
				fmt.Fprintf(&b, " (Source: %s)", sec.Citations[i].Source)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// MergeCitations concatenates citation lists and drops duplicates by
// source identifier, keeping the first occurrence. Order is stable, so
// merging an already-merged list is a no-op.
func MergeCitations(groups ...[]models.Citation) []models.Citation {
	seen := make(map[string]bool)
	var out []models.Citation
	for _, group := range groups {
		for _, c := range group {
			if c.Source == "" || seen[c.Source] {
				continue
			}
			seen[c.Source] = true
			out = append(out, c)
		}
	}
	return out
}
