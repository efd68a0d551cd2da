package wallet

import (
	"fmt"
	"sort"

	"github.com/halcyon-cash/halcyon-wallet/internal/note"
	"github.com/halcyon-cash/halcyon-wallet/pkg/types"
)

// SelectNotes chooses notes to fund a payment of the given target amount
// (amount plus fee). Strategy: sort candidates by amount descending and
// accumulate until the running sum covers the target. Exact matches are
// fine (zero change); there is no dust avoidance on the remainder.
//
// Returns ErrNoNotes for an empty candidate set and ErrInsufficientFunds
// when even the full set cannot cover the target.
func SelectNotes(notes []*note.Note, target types.Nicks) ([]*note.Note, error) {
	if len(notes) == 0 {
		return nil, ErrNoNotes
	}
	if target == 0 {
		return nil, fmt.Errorf("target must be positive")
	}

	candidates := make([]*note.Note, 0, len(notes))
	for _, n := range notes {
		if n.Spendable() && n.Amount > 0 {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoNotes
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Amount == candidates[j].Amount {
			return candidates[i].ID < candidates[j].ID // Deterministic order.
		}
		return candidates[i].Amount > candidates[j].Amount
	})

	var total types.Nicks
	for i, n := range candidates {
		total += n.Amount
		if total >= target {
			return candidates[:i+1], nil
		}
	}
	return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, total, target)
}

// SumNotes returns the total amount across the given notes.
func SumNotes(notes []*note.Note) types.Nicks {
	var total types.Nicks
	for _, n := range notes {
		total += n.Amount
	}
	return total
}
