package events

import (
	"errors"
	"strings"

	"github.com/goccy/go-json"
	"github.com/stake-plus/geo-sink/src/metrics"
)

const (
	ActionCreateTriple = "createTriple"
	ActionDeleteTriple = "deleteTriple"
)

// Triple value types.
const (
	ValueString = "string"
	ValueNumber = "number"
	ValueEntity = "entity"
	ValueImage  = "image"
	ValueURL    = "url"
	ValueDate   = "date"
)

type Value struct {
	Type  string  `json:"type"`
	ID    string  `json:"id"`
	Value *string `json:"value,omitempty"`
}

// Literal returns the value's text, or "" for entity references.
func (v Value) Literal() string {
	if v.Value == nil {
		return ""
	}
	return *v.Value
}

// Action is one create or delete edit of a triple.
type Action struct {
	Type        string  `json:"type"`
	EntityID    string  `json:"entityId"`
	AttributeID string  `json:"attributeId"`
	EntityName  *string `json:"entityName,omitempty"`
	Value       Value   `json:"value"`
}

// ProposalMetadata is the common header of a proposal document. Type is
// normalized to lower case.
type ProposalMetadata struct {
	Type       string  `json:"type"`
	Name       *string `json:"name,omitempty"`
	Version    string  `json:"version"`
	ProposalID string  `json:"proposalId"`
}

type ContentProposal struct {
	ProposalMetadata
	Actions []Action
	// SkippedActions counts actions dropped by validation.
	SkippedActions int
}

type MembershipProposal struct {
	ProposalMetadata
	UserAddress string `json:"userAddress"`
}

type SubspaceProposal struct {
	ProposalMetadata
	Subspace string `json:"subspace"`
}

// EntryContent is the document behind a legacy entry.
type EntryContent struct {
	Name           *string
	Type           string
	Version        string
	Actions        []Action
	SkippedActions int
}

func DecodeMetadata(raw []byte) (*ProposalMetadata, error) {
	if err := validate("proposalMetadata", raw); err != nil {
		return nil, err
	}
	var m ProposalMetadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	m.Type = strings.ToLower(m.Type)
	return &m, nil
}

// DecodeContent decodes a content proposal, validating each action on its
// own so one bad action does not drop the rest.
func DecodeContent(raw []byte) (*ContentProposal, error) {
	meta, err := DecodeMetadata(raw)
	if err != nil {
		return nil, err
	}
	var body struct {
		Actions []json.RawMessage `json:"actions"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	if body.Actions == nil {
		return nil, errors.New("content proposal has no actions array")
	}
	actions, skipped := DecodeActions(body.Actions)
	return &ContentProposal{ProposalMetadata: *meta, Actions: actions, SkippedActions: skipped}, nil
}

func DecodeMembership(raw []byte) (*MembershipProposal, error) {
	meta, err := DecodeMetadata(raw)
	if err != nil {
		return nil, err
	}
	var p MembershipProposal
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.UserAddress == "" {
		return nil, errors.New("membership proposal has no userAddress")
	}
	p.ProposalMetadata = *meta
	return &p, nil
}

func DecodeSubspace(raw []byte) (*SubspaceProposal, error) {
	meta, err := DecodeMetadata(raw)
	if err != nil {
		return nil, err
	}
	var p SubspaceProposal
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.Subspace == "" {
		return nil, errors.New("subspace proposal has no subspace")
	}
	p.ProposalMetadata = *meta
	return &p, nil
}

func DecodeEntryContent(raw []byte) (*EntryContent, error) {
	if err := validate("uriData", raw); err != nil {
		return nil, err
	}
	var body struct {
		Name    *string           `json:"name"`
		Type    string            `json:"type"`
		Version string            `json:"version"`
		Actions []json.RawMessage `json:"actions"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	actions, skipped := DecodeActions(body.Actions)
	return &EntryContent{
		Name:           body.Name,
		Type:           body.Type,
		Version:        body.Version,
		Actions:        actions,
		SkippedActions: skipped,
	}, nil
}

// DecodeActions keeps the valid actions in their original order.
func DecodeActions(raw []json.RawMessage) ([]Action, int) {
	out := make([]Action, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		if err := validate("action", r); err != nil {
			skipped++
			continue
		}
		var a Action
		if err := json.Unmarshal(r, &a); err != nil {
			skipped++
			continue
		}
		out = append(out, a)
	}
	if skipped > 0 {
		metrics.EventsSkipped.WithLabelValues("action", "invalid").Add(float64(skipped))
	}
	return out, skipped
}
