package data

// Proposal lifecycle states.
const (
	StatusProposed = "proposed"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// Proposal types.
const (
	ProposalContent        = "content"
	ProposalAddMember      = "add_member"
	ProposalRemoveMember   = "remove_member"
	ProposalAddEditor      = "add_editor"
	ProposalRemoveEditor   = "remove_editor"
	ProposalAddSubspace    = "add_subspace"
	ProposalRemoveSubspace = "remove_subspace"
)

const (
	VoteAccept = "accept"
	VoteReject = "reject"
)

const (
	SpaceLegacy = "legacy"
	SpacePublic = "public"
)

// Cursor is the single ingestion checkpoint row (ID is always 0).
type Cursor struct {
	ID             uint8  `gorm:"primaryKey;autoIncrement:false"`
	Cursor         string `gorm:"type:text;not null"`
	BlockNumber    uint64 `gorm:"not null"`
	BlockHash      string `gorm:"size:80;not null"`
	BlockTimestamp int64  `gorm:"not null"`
}

func (Cursor) TableName() string { return "cursors" }

type Account struct {
	ID string `gorm:"primaryKey;size:42"`
}

func (Account) TableName() string { return "accounts" }

// Space is keyed by its checksummed DAO (or legacy contract) address.
type Space struct {
	ID                        string  `gorm:"primaryKey;size:42"`
	Type                      string  `gorm:"size:16;not null"`
	IsRootSpace               bool    `gorm:"not null"`
	SpacePluginAddress        *string `gorm:"size:42;index"`
	MainVotingPluginAddress   *string `gorm:"size:42;index"`
	MemberAccessPluginAddress *string `gorm:"size:42;index"`
	CreatedAtBlock            uint64  `gorm:"not null"`
}

func (Space) TableName() string { return "spaces" }

type SpaceEditor struct {
	SpaceID        string `gorm:"primaryKey;size:42"`
	AccountID      string `gorm:"primaryKey;size:42"`
	CreatedAt      int64  `gorm:"autoCreateTime:false"`
	CreatedAtBlock uint64
}

func (SpaceEditor) TableName() string { return "space_editors" }

type SpaceMember struct {
	SpaceID        string `gorm:"primaryKey;size:42"`
	AccountID      string `gorm:"primaryKey;size:42"`
	CreatedAt      int64  `gorm:"autoCreateTime:false"`
	CreatedAtBlock uint64
}

func (SpaceMember) TableName() string { return "space_members" }

// SpaceAdmin records the legacy ADMIN role.
type SpaceAdmin struct {
	SpaceID        string `gorm:"primaryKey;size:42"`
	AccountID      string `gorm:"primaryKey;size:42"`
	CreatedAt      int64  `gorm:"autoCreateTime:false"`
	CreatedAtBlock uint64
}

func (SpaceAdmin) TableName() string { return "space_admins" }

type SpaceSubspace struct {
	ParentSpaceID  string `gorm:"primaryKey;size:42"`
	SubspaceID     string `gorm:"primaryKey;size:42"`
	CreatedAt      int64  `gorm:"autoCreateTime:false"`
	CreatedAtBlock uint64
}

func (SpaceSubspace) TableName() string { return "space_subspaces" }

type OnchainProfile struct {
	ID             string `gorm:"primaryKey;size:128"`
	AccountID      string `gorm:"size:42;not null;index"`
	HomeSpaceID    string `gorm:"size:42;not null"`
	CreatedAt      int64  `gorm:"autoCreateTime:false"`
	CreatedAtBlock uint64
}

func (OnchainProfile) TableName() string { return "onchain_profiles" }

// Entity carries the denormalized name and description of the latest version.
type Entity struct {
	ID             string  `gorm:"primaryKey;size:128"`
	Name           *string `gorm:"type:text"`
	Description    *string `gorm:"type:text"`
	CreatedByID    string  `gorm:"size:42"`
	CreatedAt      int64   `gorm:"autoCreateTime:false"`
	CreatedAtBlock uint64
	UpdatedAt      int64 `gorm:"autoUpdateTime:false"`
	UpdatedAtBlock uint64
}

func (Entity) TableName() string { return "entities" }

type EntityType struct {
	EntityID       string `gorm:"primaryKey;size:128"`
	TypeID         string `gorm:"primaryKey;size:128"`
	CreatedAt      int64  `gorm:"autoCreateTime:false"`
	CreatedAtBlock uint64
}

func (EntityType) TableName() string { return "entity_types" }

// Triple rows are never deleted; IsStale marks triples left out of the
// current version of their entity.
type Triple struct {
	ID             string  `gorm:"primaryKey;size:64"`
	SpaceID        string  `gorm:"size:42;not null;index"`
	EntityID       string  `gorm:"size:128;not null;index:idx_triples_entity_stale,priority:1"`
	AttributeID    string  `gorm:"size:128;not null;index"`
	ValueType      string  `gorm:"size:16;not null"`
	ValueID        string  `gorm:"size:128;not null"`
	TextValue      *string `gorm:"type:text"`
	EntityValueID  *string `gorm:"size:128"`
	IsStale        bool    `gorm:"not null;index:idx_triples_entity_stale,priority:2"`
	CreatedAt      int64   `gorm:"autoCreateTime:false"`
	CreatedAtBlock uint64
}

func (Triple) TableName() string { return "triples" }

type TripleVersion struct {
	TripleID  string `gorm:"primaryKey;size:64"`
	VersionID string `gorm:"primaryKey;size:36;index"`
}

func (TripleVersion) TableName() string { return "triple_versions" }

type Version struct {
	ID             string `gorm:"primaryKey;size:36"`
	EntityID       string `gorm:"size:128;not null;index"`
	ProposalID     string `gorm:"size:64;not null;index"`
	SpaceID        string `gorm:"size:42;not null"`
	CreatedByID    string `gorm:"size:42"`
	CreatedAt      int64  `gorm:"autoCreateTime:false"`
	CreatedAtBlock uint64 `gorm:"index"`
}

func (Version) TableName() string { return "versions" }

type ProposedVersion struct {
	ID             string `gorm:"primaryKey;size:36"`
	EntityID       string `gorm:"size:128;not null;index"`
	ProposalID     string `gorm:"size:64;not null;index"`
	SpaceID        string `gorm:"size:42;not null"`
	CreatedByID    string `gorm:"size:42"`
	CreatedAt      int64  `gorm:"autoCreateTime:false"`
	CreatedAtBlock uint64
}

func (ProposedVersion) TableName() string { return "proposed_versions" }

type CurrentVersion struct {
	EntityID  string `gorm:"primaryKey;size:128"`
	VersionID string `gorm:"size:36;not null"`
}

func (CurrentVersion) TableName() string { return "current_versions" }

// Action is one proposed create/delete edit, kept in its original order.
type Action struct {
	ID                string  `gorm:"primaryKey;size:48"`
	ProposedVersionID string  `gorm:"size:36;not null;index"`
	ActionIndex       int     `gorm:"not null"`
	ActionType        string  `gorm:"size:16;not null"`
	EntityID          string  `gorm:"size:128;not null"`
	AttributeID       string  `gorm:"size:128;not null"`
	ValueType         string  `gorm:"size:16;not null"`
	ValueID           string  `gorm:"size:128"`
	TextValue         *string `gorm:"type:text"`
	EntityValueID     *string `gorm:"size:128"`
	CreatedAt         int64   `gorm:"autoCreateTime:false"`
	CreatedAtBlock    uint64
}

func (Action) TableName() string { return "actions" }

type Proposal struct {
	ID                string  `gorm:"primaryKey;size:64"`
	OnchainProposalID string  `gorm:"size:78;not null;index:idx_proposals_onchain,priority:1"`
	PluginAddress     string  `gorm:"size:42;not null;index:idx_proposals_onchain,priority:2"`
	SpaceID           string  `gorm:"size:42;not null;index"`
	Name              *string `gorm:"type:text"`
	URI               *string `gorm:"type:text"`
	Type              string  `gorm:"size:24;not null"`
	Status            string  `gorm:"size:16;not null;index:idx_proposals_status_end,priority:1"`
	CreatedByID       string  `gorm:"size:42"`
	StartTime         int64
	EndTime           int64 `gorm:"index:idx_proposals_status_end,priority:2"`
	CreatedAt         int64 `gorm:"autoCreateTime:false"`
	CreatedAtBlock    uint64
}

func (Proposal) TableName() string { return "proposals" }

type ProposedMember struct {
	ID             string `gorm:"primaryKey;size:64"`
	Type           string `gorm:"size:24;not null"`
	SpaceID        string `gorm:"size:42;not null;index"`
	AccountID      string `gorm:"size:42;not null"`
	ProposalID     string `gorm:"size:64;not null"`
	CreatedAt      int64  `gorm:"autoCreateTime:false"`
	CreatedAtBlock uint64
}

func (ProposedMember) TableName() string { return "proposed_members" }

type ProposedEditor struct {
	ID             string `gorm:"primaryKey;size:64"`
	Type           string `gorm:"size:24;not null"`
	SpaceID        string `gorm:"size:42;not null;index"`
	AccountID      string `gorm:"size:42;not null"`
	ProposalID     string `gorm:"size:64;not null"`
	CreatedAt      int64  `gorm:"autoCreateTime:false"`
	CreatedAtBlock uint64
}

func (ProposedEditor) TableName() string { return "proposed_editors" }

type ProposedSubspace struct {
	ID             string `gorm:"primaryKey;size:64"`
	Type           string `gorm:"size:24;not null"`
	ParentSpaceID  string `gorm:"size:42;not null;index"`
	SubspaceID     string `gorm:"size:42;not null"`
	ProposalID     string `gorm:"size:64;not null"`
	CreatedAt      int64  `gorm:"autoCreateTime:false"`
	CreatedAtBlock uint64
}

func (ProposedSubspace) TableName() string { return "proposed_subspaces" }

// ProposalVote rows are append-only; tallies are derived on read.
type ProposalVote struct {
	ProposalID        string `gorm:"primaryKey;size:64"`
	AccountID         string `gorm:"primaryKey;size:42"`
	OnchainProposalID string `gorm:"size:78;not null"`
	SpaceID           string `gorm:"size:42;not null"`
	Vote              string `gorm:"size:8;not null"`
	CreatedAt         int64  `gorm:"autoCreateTime:false"`
	CreatedAtBlock    uint64
}

func (ProposalVote) TableName() string { return "proposal_votes" }

// Setting is a runtime configuration override.
type Setting struct {
	ID     uint8  `gorm:"primaryKey"`
	Name   string `gorm:"size:32;not null"`
	Value  string `gorm:"type:text;not null"`
	Active uint8  `gorm:"not null"`
}

func (Setting) TableName() string { return "settings" }

// AllModels lists every table owned by the sink, parents before children.
func AllModels() []interface{} {
	return []interface{}{
		&Cursor{},
		&Setting{},
		&Account{},
		&Space{},
		&SpaceEditor{},
		&SpaceMember{},
		&SpaceAdmin{},
		&SpaceSubspace{},
		&OnchainProfile{},
		&Entity{},
		&EntityType{},
		&Proposal{},
		&ProposedMember{},
		&ProposedEditor{},
		&ProposedSubspace{},
		&ProposalVote{},
		&ProposedVersion{},
		&Action{},
		&Version{},
		&CurrentVersion{},
		&Triple{},
		&TripleVersion{},
	}
}
