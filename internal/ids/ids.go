// Package ids generates the opaque short identifiers used for every
// domain entity (beliefs, episodes, links, sources, chunks). xid
// produces a 20-char URL-safe, lexically time-sortable id, closer to
// spec's 12-21 char requirement than a 36-char UUID.
package ids

import "github.com/rs/xid"

// New returns a new opaque identifier.
func New() string {
	return xid.New().String()
}
