package id

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// EntryPrefix starts every persisted bank entry id.
const EntryPrefix = "BE-"

// legacyEntryID matches ids minted as BE-<unix nanos>-<8 hex>.
var legacyEntryID = regexp.MustCompile(`^BE-\d+-[0-9a-f]{8}$`)

// NewEntryID returns an id like "BE-0b6f1c1e-3c0e-4d3f-9d2a-6f7c0b1d2e3f".
func NewEntryID() string {
	return EntryPrefix + uuid.NewString()
}

// ParseEntryID extracts the UUID from a persisted entry id.
func ParseEntryID(id string) (uuid.UUID, error) {
	rest, ok := strings.CutPrefix(id, EntryPrefix)
	if !ok {
		return uuid.Nil, fmt.Errorf("invalid entry ID %q: missing %s prefix", id, EntryPrefix)
	}
	u, err := uuid.Parse(rest)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid entry ID %q: %w", id, err)
	}
	return u, nil
}

// IsPersisted reports whether id names a stored bank entry. Rows that only
// exist in a parsed file have no such id.
func IsPersisted(id string) bool {
	if legacyEntryID.MatchString(id) {
		return true
	}
	_, err := ParseEntryID(id)
	return err == nil
}
