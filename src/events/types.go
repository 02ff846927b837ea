package events

// Kind names one event batch by its key in the block output.
type Kind string

const (
	KindSpacesCreated            Kind = "spacesCreated"
	KindGovernancePluginsCreated Kind = "governancePluginsCreated"
	KindEditorsAdded             Kind = "editorsAdded"
	KindEditorsRemoved           Kind = "editorsRemoved"
	KindMembersAdded             Kind = "membersAdded"
	KindMembersRemoved           Kind = "membersRemoved"
	KindSubspacesAdded           Kind = "subspacesAdded"
	KindSubspacesRemoved         Kind = "subspacesRemoved"
	KindProfilesRegistered       Kind = "profilesRegistered"
	KindRoleChanges              Kind = "roleChanges"
	KindEntries                  Kind = "entries"
	KindProposalsCreated         Kind = "proposalsCreated"
	KindVotesCast                Kind = "votesCast"
	KindProposalsProcessed       Kind = "proposalsProcessed"
	KindProposalsExecuted        Kind = "proposalsExecuted"
)

// Order is the dispatch order. Spaces and plugins must exist before the
// events that reference them, and proposals before their votes and outcomes.
var Order = []Kind{
	KindSpacesCreated,
	KindGovernancePluginsCreated,
	KindEditorsAdded,
	KindEditorsRemoved,
	KindMembersAdded,
	KindMembersRemoved,
	KindSubspacesAdded,
	KindSubspacesRemoved,
	KindProfilesRegistered,
	KindRoleChanges,
	KindEntries,
	KindProposalsCreated,
	KindVotesCast,
	KindProposalsProcessed,
	KindProposalsExecuted,
}

type SpaceCreated struct {
	DAOAddress   string `json:"daoAddress"`
	SpaceAddress string `json:"spaceAddress"`
}

type GovernancePluginsCreated struct {
	DAOAddress          string `json:"daoAddress"`
	MainVotingAddress   string `json:"mainVotingAddress"`
	MemberAccessAddress string `json:"memberAccessAddress"`
}

// MembershipChange is the shape shared by editor and member additions and removals.
type MembershipChange struct {
	Addresses     []string `json:"addresses"`
	PluginAddress string   `json:"pluginAddress"`
}

type SubspaceChange struct {
	Subspace      string `json:"subspace"`
	PluginAddress string `json:"pluginAddress"`
	ChangeType    string `json:"changeType"`
}

type ProfileRegistered struct {
	Requestor string `json:"requestor"`
	Space     string `json:"space"`
	ID        string `json:"id"`
}

// Legacy space roles.
const (
	RoleAdmin     = "ADMIN"
	RoleMember    = "MEMBER"
	RoleModerator = "MODERATOR"
)

type Role struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Account string `json:"account"`
	Sender  string `json:"sender"`
	Space   string `json:"space"`
}

// RoleChange carries exactly one of Granted and Revoked.
type RoleChange struct {
	Granted *Role `json:"granted,omitempty"`
	Revoked *Role `json:"revoked,omitempty"`
}

// Entry is legacy content published directly to a space contract.
type Entry struct {
	ID     string `json:"id"`
	Index  string `json:"index"`
	URI    string `json:"uri"`
	Author string `json:"author"`
	Space  string `json:"space"`
}

type ProposalCreated struct {
	ProposalID    string `json:"proposalId"`
	PluginAddress string `json:"pluginAddress"`
	Creator       string `json:"creator"`
	MetadataURI   string `json:"metadataUri"`
	StartTime     string `json:"startTime"`
	EndTime       string `json:"endTime"`
}

// On-chain vote options.
const (
	VoteOptionYes = "2"
	VoteOptionNo  = "3"
)

type VoteCast struct {
	OnchainProposalID string `json:"onchainProposalId"`
	Voter             string `json:"voter"`
	VoteOption        string `json:"voteOption"`
	PluginAddress     string `json:"pluginAddress"`
}

type ProposalProcessed struct {
	ContentURI    string `json:"contentUri"`
	PluginAddress string `json:"pluginAddress"`
}

type ProposalExecuted struct {
	ProposalID    string `json:"proposalId"`
	PluginAddress string `json:"pluginAddress"`
}
