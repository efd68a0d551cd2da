package types

import (
	"fmt"
	"strings"
)

// NoteName is the two-part on-chain name of a note. First commits to the
// note's lock conditions (and is how notes are queried by owner); Last
// commits to the note's contents. Together they identify one output.
type NoteName struct {
	First Hash `json:"first"`
	Last  Hash `json:"last"`
}

// String renders the name as "<first>:<last>" in hex.
func (n NoteName) String() string {
	return n.First.String() + ":" + n.Last.String()
}

// IsZero returns true if both parts are all zeros.
func (n NoteName) IsZero() bool {
	return n.First.IsZero() && n.Last.IsZero()
}

// ParseNoteName parses a "<first>:<last>" hex pair.
func ParseNoteName(s string) (NoteName, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return NoteName{}, fmt.Errorf("note name must be <first>:<last>, got %q", s)
	}
	first, err := HexToHash(parts[0])
	if err != nil {
		return NoteName{}, fmt.Errorf("note name first: %w", err)
	}
	last, err := HexToHash(parts[1])
	if err != nil {
		return NoteName{}, fmt.Errorf("note name last: %w", err)
	}
	return NoteName{First: first, Last: last}, nil
}

// NoteID is the local identifier of a tracked note, derived
// deterministically from its on-chain name. Stable across syncs.
type NoteID string

// IsZero returns true for the empty id.
func (id NoteID) IsZero() bool {
	return id == ""
}
