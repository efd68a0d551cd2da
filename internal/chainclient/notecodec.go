package chainclient

import (
	"encoding/json"
	"fmt"

	"github.com/halcyon-cash/halcyon-wallet/internal/syncer"
	"github.com/halcyon-cash/halcyon-wallet/pkg/crypto"
	"github.com/halcyon-cash/halcyon-wallet/pkg/types"
)

// Wire note encoding versions. Nodes emit v1; v0 is the legacy flat
// shape still returned by nodes that predate the name/amount rename.
const (
	WireNoteV0 = "v0"
	WireNoteV1 = "v1"
)

// wireNoteTag carries only the version discriminator.
type wireNoteTag struct {
	Version string `json:"version"`
}

// wireNoteV1 is the current encoding.
type wireNoteV1 struct {
	Version     string         `json:"version"`
	Name        types.NoteName `json:"name"`
	Amount      types.Nicks    `json:"amount"`
	BlockRef    uint64         `json:"blockRef"`
	ContentHash types.Hash     `json:"contentHash"`
	Raw         []byte         `json:"raw,omitempty"`
}

// wireNoteV0 is the legacy flat encoding. Legacy payloads predate the
// version tag, so an absent tag selects this variant.
type wireNoteV0 struct {
	First    types.Hash  `json:"first"`
	Last     types.Hash  `json:"last"`
	Value    types.Nicks `json:"value"`
	Page     uint64      `json:"page"`
	DataHash types.Hash  `json:"dataHash"`
	Raw      []byte      `json:"raw,omitempty"`
}

// DecodeWireNote decodes one versioned wire note into the ephemeral
// fetched form. Unknown versions are a decode error, never guessed at.
func DecodeWireNote(data []byte) (syncer.FetchedNote, error) {
	var tag wireNoteTag
	if err := json.Unmarshal(data, &tag); err != nil {
		return syncer.FetchedNote{}, fmt.Errorf("wire note tag: %w", err)
	}

	switch tag.Version {
	case WireNoteV1:
		return decodeWireNoteV1(data)
	case WireNoteV0, "":
		return decodeWireNoteV0(data)
	default:
		return syncer.FetchedNote{}, fmt.Errorf("unknown wire note version %q", tag.Version)
	}
}

func decodeWireNoteV1(data []byte) (syncer.FetchedNote, error) {
	var w wireNoteV1
	if err := json.Unmarshal(data, &w); err != nil {
		return syncer.FetchedNote{}, fmt.Errorf("wire note v1: %w", err)
	}
	if w.Name.IsZero() {
		return syncer.FetchedNote{}, fmt.Errorf("wire note v1: empty name")
	}
	return syncer.FetchedNote{
		ID:          crypto.NoteID(w.Name),
		Name:        w.Name,
		Amount:      w.Amount,
		BlockRef:    w.BlockRef,
		ContentHash: w.ContentHash,
		Raw:         w.Raw,
	}, nil
}

func decodeWireNoteV0(data []byte) (syncer.FetchedNote, error) {
	var w wireNoteV0
	if err := json.Unmarshal(data, &w); err != nil {
		return syncer.FetchedNote{}, fmt.Errorf("wire note v0: %w", err)
	}
	name := types.NoteName{First: w.First, Last: w.Last}
	if name.IsZero() {
		return syncer.FetchedNote{}, fmt.Errorf("wire note v0: empty name")
	}
	return syncer.FetchedNote{
		ID:          crypto.NoteID(name),
		Name:        name,
		Amount:      w.Value,
		BlockRef:    w.Page,
		ContentHash: w.DataHash,
		Raw:         w.Raw,
	}, nil
}
