package governance

import (
	"context"

	"github.com/stake-plus/geo-sink/src/data"
	"github.com/stake-plus/geo-sink/src/events"
	"github.com/stake-plus/geo-sink/src/ids"
	"github.com/stake-plus/geo-sink/src/storage"
)

func (t *Tracker) SpacesCreated(ctx context.Context, created []events.SpaceCreated, b Block) error {
	rows := make([]data.Space, 0, len(created))
	for _, sc := range created {
		plugin := ids.ChecksumAddress(sc.SpaceAddress)
		id := ids.ChecksumAddress(sc.DAOAddress)
		rows = append(rows, data.Space{
			ID:                 id,
			Type:               data.SpacePublic,
			IsRootSpace:        t.isRoot(id, plugin),
			SpacePluginAddress: &plugin,
			CreatedAtBlock:     b.Number,
		})
	}
	l := t.logger(b)
	l.Info().Int("count", len(rows)).Msg("spaces created")
	return storage.UpsertChunked(ctx, t.store, "spaces", rows,
		[]string{"id"}, []string{"space_plugin_address", "type", "is_root_space"})
}

func (t *Tracker) GovernancePluginsCreated(ctx context.Context, created []events.GovernancePluginsCreated, b Block) error {
	for _, gp := range created {
		id := ids.ChecksumAddress(gp.DAOAddress)
		sp, err := t.store.SpaceByID(ctx, id)
		if err != nil {
			return err
		}
		if sp == nil {
			t.skip(b, string(events.KindGovernancePluginsCreated), &SpaceNotFoundError{Address: id})
			continue
		}
		err = t.store.UpdateWhere(ctx, "spaces", &data.Space{}, map[string]interface{}{
			"main_voting_plugin_address":   ids.ChecksumAddress(gp.MainVotingAddress),
			"member_access_plugin_address": ids.ChecksumAddress(gp.MemberAccessAddress),
		}, "id = ?", id)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *Tracker) EditorsAdded(ctx context.Context, changes []events.MembershipChange, b Block) error {
	return t.changeRoster(ctx, changes, b, string(events.KindEditorsAdded), rosterEditors, true)
}

func (t *Tracker) EditorsRemoved(ctx context.Context, changes []events.MembershipChange, b Block) error {
	return t.changeRoster(ctx, changes, b, string(events.KindEditorsRemoved), rosterEditors, false)
}

func (t *Tracker) MembersAdded(ctx context.Context, changes []events.MembershipChange, b Block) error {
	return t.changeRoster(ctx, changes, b, string(events.KindMembersAdded), rosterMembers, true)
}

func (t *Tracker) MembersRemoved(ctx context.Context, changes []events.MembershipChange, b Block) error {
	return t.changeRoster(ctx, changes, b, string(events.KindMembersRemoved), rosterMembers, false)
}

type roster int

const (
	rosterEditors roster = iota
	rosterMembers
	rosterAdmins
)

func (r roster) table() string {
	switch r {
	case rosterEditors:
		return "space_editors"
	case rosterMembers:
		return "space_members"
	}
	return "space_admins"
}

func (t *Tracker) changeRoster(ctx context.Context, changes []events.MembershipChange, b Block, kind string, r roster, add bool) error {
	for _, c := range changes {
		sp, err := t.spaceForPlugin(ctx, c.PluginAddress)
		if err != nil {
			if isMappingError(err) {
				t.skip(b, kind, err)
				continue
			}
			return err
		}
		for _, addr := range c.Addresses {
			if err := t.setRole(ctx, r, sp.ID, addr, add, b); err != nil {
				return err
			}
		}
	}
	return nil
}

// setRole adds or removes one account from a space roster. Removing an
// absent account is a no-op.
func (t *Tracker) setRole(ctx context.Context, r roster, spaceID, address string, add bool, b Block) error {
	account := ids.ChecksumAddress(address)
	if !add {
		var model interface{}
		switch r {
		case rosterEditors:
			model = &data.SpaceEditor{}
		case rosterMembers:
			model = &data.SpaceMember{}
		default:
			model = &data.SpaceAdmin{}
		}
		return t.store.DeleteWhere(ctx, r.table(), model, "space_id = ? AND account_id = ?", spaceID, account)
	}

	if err := t.upsertAccounts(ctx, account); err != nil {
		return err
	}
	conflict := []string{"space_id", "account_id"}
	switch r {
	case rosterEditors:
		return storage.UpsertChunked(ctx, t.store, r.table(), []data.SpaceEditor{{
			SpaceID: spaceID, AccountID: account, CreatedAt: b.Timestamp, CreatedAtBlock: b.Number,
		}}, conflict, nil)
	case rosterMembers:
		return storage.UpsertChunked(ctx, t.store, r.table(), []data.SpaceMember{{
			SpaceID: spaceID, AccountID: account, CreatedAt: b.Timestamp, CreatedAtBlock: b.Number,
		}}, conflict, nil)
	default:
		return storage.UpsertChunked(ctx, t.store, r.table(), []data.SpaceAdmin{{
			SpaceID: spaceID, AccountID: account, CreatedAt: b.Timestamp, CreatedAtBlock: b.Number,
		}}, conflict, nil)
	}
}

func (t *Tracker) SubspacesAdded(ctx context.Context, changes []events.SubspaceChange, b Block) error {
	return t.changeSubspaces(ctx, changes, b, string(events.KindSubspacesAdded), true)
}

func (t *Tracker) SubspacesRemoved(ctx context.Context, changes []events.SubspaceChange, b Block) error {
	return t.changeSubspaces(ctx, changes, b, string(events.KindSubspacesRemoved), false)
}

func (t *Tracker) changeSubspaces(ctx context.Context, changes []events.SubspaceChange, b Block, kind string, add bool) error {
	for _, c := range changes {
		sp, err := t.spaceForPlugin(ctx, c.PluginAddress)
		if err != nil {
			if isMappingError(err) {
				t.skip(b, kind, err)
				continue
			}
			return err
		}
		if err := t.setSubspace(ctx, sp.ID, c.Subspace, add, b); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tracker) setSubspace(ctx context.Context, parentID, subspace string, add bool, b Block) error {
	child := ids.ChecksumAddress(subspace)
	if !add {
		return t.store.DeleteWhere(ctx, "space_subspaces", &data.SpaceSubspace{},
			"parent_space_id = ? AND subspace_id = ?", parentID, child)
	}
	return storage.UpsertChunked(ctx, t.store, "space_subspaces", []data.SpaceSubspace{{
		ParentSpaceID: parentID, SubspaceID: child, CreatedAt: b.Timestamp, CreatedAtBlock: b.Number,
	}}, []string{"parent_space_id", "subspace_id"}, nil)
}

func (t *Tracker) ProfilesRegistered(ctx context.Context, profiles []events.ProfileRegistered, b Block) error {
	accounts := make([]string, 0, len(profiles))
	rows := make([]data.OnchainProfile, 0, len(profiles))
	for _, p := range profiles {
		account := ids.ChecksumAddress(p.Requestor)
		accounts = append(accounts, account)
		rows = append(rows, data.OnchainProfile{
			ID:             p.ID,
			AccountID:      account,
			HomeSpaceID:    ids.ChecksumAddress(p.Space),
			CreatedAt:      b.Timestamp,
			CreatedAtBlock: b.Number,
		})
	}
	if err := t.upsertAccounts(ctx, accounts...); err != nil {
		return err
	}
	return storage.UpsertChunked(ctx, t.store, "onchain_profiles", rows, []string{"id"}, nil)
}

// RoleChanges applies legacy space permission grants and revocations.
func (t *Tracker) RoleChanges(ctx context.Context, changes []events.RoleChange, b Block) error {
	for _, c := range changes {
		role, add := c.Granted, true
		if role == nil {
			role, add = c.Revoked, false
		}
		if role == nil {
			continue
		}
		spaceID, err := t.ensureLegacySpace(ctx, role.Space, b)
		if err != nil {
			return err
		}
		var r roster
		switch role.Role {
		case events.RoleMember:
			r = rosterMembers
		case events.RoleModerator:
			r = rosterEditors
		case events.RoleAdmin:
			r = rosterAdmins
		default:
			continue
		}
		if err := t.setRole(ctx, r, spaceID, role.Account, add, b); err != nil {
			return err
		}
	}
	return nil
}
