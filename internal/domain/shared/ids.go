// Package shared holds value objects shared across the chunk and entity
// domain packages: ids, embedding vectors, and the small set of errors
// that both packages raise.
package shared

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// NodeID is a graph-wide unique identifier. Chunk ids and entity ids live
// in the same namespace (spec §3 invariant) so both are represented by
// this type; the Kind on the owning node tells them apart.
type NodeID string

// NewChunkID mints a fresh random id for an ingested chunk.
func NewChunkID() NodeID {
	return NodeID(uuid.New().String())
}

func (id NodeID) String() string { return string(id) }

// NormalizeEntity folds a surface string into the normalized form used as
// an entity node id: lowercased, punctuation and repeated whitespace
// collapsed. Two surface forms that normalize to the same string refer to
// the same entity node.
func NormalizeEntity(surface string) string {
	var b strings.Builder
	b.Grow(len(surface))
	prevSpace := false
	for _, r := range surface {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
			prevSpace = false
		case unicode.IsSpace(r):
			if !prevSpace && b.Len() > 0 {
				b.WriteRune(' ')
			}
			prevSpace = true
		default:
			// punctuation folds away entirely rather than becoming a space,
			// so "U.S.A." and "USA" normalize identically.
		}
	}
	return strings.TrimSpace(b.String())
}
