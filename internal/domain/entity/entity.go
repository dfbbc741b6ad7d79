// Package entity implements the Entity value object (spec §3): a
// normalized surface string referring to a real-world thing.
package entity

import (
	"nexusmind-core/internal/apperrors"
	"nexusmind-core/internal/domain/shared"
)

// Type is the coarse entity classification (spec §3).
type Type string

const (
	Person  Type = "person"
	Org     Type = "org"
	Place   Type = "place"
	Concept Type = "concept"
	Other   Type = "other"
)

// Entity is a normalized surface string with a display form, a coarse
// type, and a running mention frequency.
type Entity struct {
	ID        shared.NodeID // normalized form, doubles as the graph node id
	Display   string
	Kind      Type
	Frequency int

	// Embedding is optional: the HippoRAG tier's fuzzy entity-matching
	// step (query surface -> graph node, cosine >= 0.85) needs it, but
	// an entity created before embeddings are backfilled is still a
	// valid graph node for exact-id matching and traversal.
	Embedding shared.Embedding
}

// New normalizes display into an id and constructs the Entity. Normalizing
// here (rather than leaving it to the caller) means two different
// surface forms that fold to the same id always produce an Entity with
// that one id, which is what lets the knowledge graph treat them as the
// same node.
func New(display string, kind Type) (*Entity, error) {
	norm := shared.NormalizeEntity(display)
	if norm == "" {
		return nil, apperrors.New(apperrors.InvalidInput, "ENTITY_EMPTY_SURFACE",
			"entity surface string normalizes to empty").WithResource("entity").Build()
	}
	if kind == "" {
		kind = Other
	}
	return &Entity{ID: shared.NodeID(norm), Display: display, Kind: kind, Frequency: 1}, nil
}

// Mention increments the frequency counter, called once per occurrence
// the entity extractor reports for this surface form.
func (e *Entity) Mention() { e.Frequency++ }

// SetEmbedding attaches (or replaces) the entity's embedding vector.
func (e *Entity) SetEmbedding(v shared.Embedding) { e.Embedding = v }
