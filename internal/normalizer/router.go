package normalizer

import (
	"qbwc-webhook-adapter/internal/entity"
	"qbwc-webhook-adapter/internal/qbxml"
)

// Classification is the outcome of routing one answer.
type Classification struct {
	Kind entity.Kind
	// Matched is false when no response key was found; Kind is then the
	// registry's first entry and must be treated as unclassified.
	Matched bool
	// Matches lists every kind whose response key was present, in
	// registry order.
	Matches []string
}

// Classify finds which kind an answer responds to. It walks the registry
// in declaration order and keeps the last matching kind, so if a malformed
// answer carries several response keys the one latest in the table wins.
func Classify(registry *entity.Registry, answer qbxml.Answer) Classification {
	c := Classification{Kind: registry.At(0)}
	for _, k := range registry.All() {
		if answer.HasResponse(k.ResponseKey) {
			c.Kind = k
			c.Matched = true
			c.Matches = append(c.Matches, k.Name)
		}
	}
	return c
}
