// Package events decodes one block's map output into typed event batches
// and routes them to handlers.
package events

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/stake-plus/geo-sink/src/logging"
	"github.com/stake-plus/geo-sink/src/metrics"
)

// Batch holds every event batch matched in one block output. Elements that
// failed validation are left out and counted in Skipped.
type Batch struct {
	SpacesCreated            []SpaceCreated
	GovernancePluginsCreated []GovernancePluginsCreated
	EditorsAdded             []MembershipChange
	EditorsRemoved           []MembershipChange
	MembersAdded             []MembershipChange
	MembersRemoved           []MembershipChange
	SubspacesAdded           []SubspaceChange
	SubspacesRemoved         []SubspaceChange
	ProfilesRegistered       []ProfileRegistered
	RoleChanges              []RoleChange
	Entries                  []Entry
	ProposalsCreated         []ProposalCreated
	VotesCast                []VoteCast
	ProposalsProcessed       []ProposalProcessed
	ProposalsExecuted        []ProposalExecuted

	Skipped map[Kind]int
	matched map[Kind]bool
}

// Matched reports whether the output carried a non-empty array for kind.
func (b *Batch) Matched(kind Kind) bool { return b.matched[kind] }

// Kinds lists the matched kinds in dispatch order.
func (b *Batch) Kinds() []Kind {
	var out []Kind
	for _, k := range Order {
		if b.matched[k] {
			out = append(out, k)
		}
	}
	return out
}

func (b *Batch) Empty() bool { return len(b.matched) == 0 }

// ParseError reports an output that is not a JSON object.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("decode block output: %v", e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes a block output. An empty payload yields an empty batch.
// Keys that are not known event kinds are ignored.
func Parse(payload []byte) (*Batch, error) {
	b := &Batch{Skipped: map[Kind]int{}, matched: map[Kind]bool{}}
	if len(bytes.TrimSpace(payload)) == 0 {
		return b, nil
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(payload, &top); err != nil {
		return nil, &ParseError{Err: err}
	}

	for _, kind := range Order {
		raw, ok := top[string(kind)]
		if !ok {
			continue
		}
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil || len(elems) == 0 {
			continue
		}
		b.matched[kind] = true
		for i, elem := range elems {
			if err := b.add(kind, elem); err != nil {
				b.Skipped[kind]++
				metrics.EventsSkipped.WithLabelValues(string(kind), "invalid").Inc()
				logging.Warn().Err(err).Str("kind", string(kind)).Int("index", i).Msg("skipping invalid event")
			}
		}
	}
	return b, nil
}

func (b *Batch) add(kind Kind, raw []byte) error {
	if err := validate(schemaFile[kind], raw); err != nil {
		return err
	}
	switch kind {
	case KindSpacesCreated:
		return appendDecoded(raw, &b.SpacesCreated)
	case KindGovernancePluginsCreated:
		return appendDecoded(raw, &b.GovernancePluginsCreated)
	case KindEditorsAdded:
		return appendDecoded(raw, &b.EditorsAdded)
	case KindEditorsRemoved:
		return appendDecoded(raw, &b.EditorsRemoved)
	case KindMembersAdded:
		return appendDecoded(raw, &b.MembersAdded)
	case KindMembersRemoved:
		return appendDecoded(raw, &b.MembersRemoved)
	case KindSubspacesAdded:
		return appendDecoded(raw, &b.SubspacesAdded)
	case KindSubspacesRemoved:
		return appendDecoded(raw, &b.SubspacesRemoved)
	case KindProfilesRegistered:
		return appendDecoded(raw, &b.ProfilesRegistered)
	case KindRoleChanges:
		return appendDecoded(raw, &b.RoleChanges)
	case KindEntries:
		return appendDecoded(raw, &b.Entries)
	case KindProposalsCreated:
		return appendDecoded(raw, &b.ProposalsCreated)
	case KindVotesCast:
		return appendDecoded(raw, &b.VotesCast)
	case KindProposalsProcessed:
		return appendDecoded(raw, &b.ProposalsProcessed)
	case KindProposalsExecuted:
		return appendDecoded(raw, &b.ProposalsExecuted)
	}
	return fmt.Errorf("unhandled kind %s", kind)
}

func appendDecoded[T any](raw []byte, dst *[]T) error {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	*dst = append(*dst, v)
	return nil
}

// Len returns the number of decoded elements for kind.
func (b *Batch) Len(kind Kind) int {
	switch kind {
	case KindSpacesCreated:
		return len(b.SpacesCreated)
	case KindGovernancePluginsCreated:
		return len(b.GovernancePluginsCreated)
	case KindEditorsAdded:
		return len(b.EditorsAdded)
	case KindEditorsRemoved:
		return len(b.EditorsRemoved)
	case KindMembersAdded:
		return len(b.MembersAdded)
	case KindMembersRemoved:
		return len(b.MembersRemoved)
	case KindSubspacesAdded:
		return len(b.SubspacesAdded)
	case KindSubspacesRemoved:
		return len(b.SubspacesRemoved)
	case KindProfilesRegistered:
		return len(b.ProfilesRegistered)
	case KindRoleChanges:
		return len(b.RoleChanges)
	case KindEntries:
		return len(b.Entries)
	case KindProposalsCreated:
		return len(b.ProposalsCreated)
	case KindVotesCast:
		return len(b.VotesCast)
	case KindProposalsProcessed:
		return len(b.ProposalsProcessed)
	case KindProposalsExecuted:
		return len(b.ProposalsExecuted)
	}
	return 0
}
