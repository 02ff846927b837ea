// Package governance records spaces, memberships, proposals and votes, and
// hands accepted content to the versioning engine.
package governance

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/stake-plus/geo-sink/src/data"
	"github.com/stake-plus/geo-sink/src/ids"
	"github.com/stake-plus/geo-sink/src/ipfs"
	"github.com/stake-plus/geo-sink/src/logging"
	"github.com/stake-plus/geo-sink/src/metrics"
	"github.com/stake-plus/geo-sink/src/storage"
	"github.com/stake-plus/geo-sink/src/versioning"
)

// Block is the metadata of the block being processed.
type Block struct {
	Number    uint64
	Hash      string
	Timestamp int64
	RequestID string
}

// Resolver fetches proposal documents.
type Resolver interface {
	Fetch(ctx context.Context, uri string) (*ipfs.UriPayload, error)
	FetchAll(ctx context.Context, uris []string) []ipfs.Result
}

// SpaceNotFoundError reports an event whose plugin or DAO address maps to no
// known space.
type SpaceNotFoundError struct {
	Address string
}

func (e *SpaceNotFoundError) Error() string {
	return fmt.Sprintf("no space for address %s", e.Address)
}

// ProposalNotFoundError reports a vote or execution for an unknown proposal.
type ProposalNotFoundError struct {
	OnchainProposalID string
	PluginAddress     string
}

func (e *ProposalNotFoundError) Error() string {
	return fmt.Sprintf("no proposal %s for plugin %s", e.OnchainProposalID, e.PluginAddress)
}

func isMappingError(err error) bool {
	var s *SpaceNotFoundError
	var p *ProposalNotFoundError
	return errors.As(err, &s) || errors.As(err, &p)
}

type Options struct {
	RootSpaceAddress string
	// WriteConcurrency bounds independent write groups within one handler.
	WriteConcurrency int
}

type Tracker struct {
	store       *storage.Store
	engine      *versioning.Engine
	resolver    Resolver
	rootSpace   string
	concurrency int
	log         zerolog.Logger
}

func New(store *storage.Store, engine *versioning.Engine, resolver Resolver, opts Options) *Tracker {
	if opts.RootSpaceAddress == "" {
		opts.RootSpaceAddress = ids.RootSpaceAddress
	}
	if opts.WriteConcurrency <= 0 {
		opts.WriteConcurrency = 4
	}
	return &Tracker{
		store:       store,
		engine:      engine,
		resolver:    resolver,
		rootSpace:   ids.ChecksumAddress(opts.RootSpaceAddress),
		concurrency: opts.WriteConcurrency,
		log:         logging.Component("governance"),
	}
}

func (t *Tracker) logger(b Block) zerolog.Logger {
	return t.log.With().Str("request_id", b.RequestID).Uint64("block", b.Number).Logger()
}

// skip logs an event that cannot be mapped and counts it.
func (t *Tracker) skip(b Block, kind string, err error) {
	l := t.logger(b)
	l.Warn().Err(err).Str("kind", kind).Msg("skipping event")
	metrics.EventsSkipped.WithLabelValues(kind, "unmapped").Inc()
}

// spaceForPlugin resolves a plugin address to its space.
func (t *Tracker) spaceForPlugin(ctx context.Context, plugin string) (*data.Space, error) {
	addr := ids.ChecksumAddress(plugin)
	sp, err := t.store.SpaceForPlugin(ctx, addr)
	if err != nil {
		return nil, err
	}
	if sp == nil {
		return nil, &SpaceNotFoundError{Address: addr}
	}
	return sp, nil
}

func (t *Tracker) isRoot(addresses ...string) bool {
	for _, a := range addresses {
		if ids.SameAddress(a, t.rootSpace) {
			return true
		}
	}
	return false
}

func (t *Tracker) upsertAccounts(ctx context.Context, addresses ...string) error {
	seen := make(map[string]bool, len(addresses))
	rows := make([]data.Account, 0, len(addresses))
	for _, a := range addresses {
		if a == "" {
			continue
		}
		id := ids.ChecksumAddress(a)
		if seen[id] {
			continue
		}
		seen[id] = true
		rows = append(rows, data.Account{ID: id})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return storage.UpsertChunked(ctx, t.store, "accounts", rows, []string{"id"}, nil)
}

// ensureLegacySpace creates a legacy space on first reference.
func (t *Tracker) ensureLegacySpace(ctx context.Context, address string, b Block) (string, error) {
	id := ids.ChecksumAddress(address)
	row := data.Space{
		ID:             id,
		Type:           data.SpaceLegacy,
		IsRootSpace:    t.isRoot(id),
		CreatedAtBlock: b.Number,
	}
	if err := storage.UpsertChunked(ctx, t.store, "spaces", []data.Space{row}, []string{"id"}, nil); err != nil {
		return "", err
	}
	return id, nil
}
