package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stake-plus/geo-sink/src/cursor"
	"github.com/stake-plus/geo-sink/src/storage"
)

type Status struct {
	cursors cursor.Store
	stream  StreamStatus
	blocks  BlockReporter
	started time.Time
}

func NewStatus(d Deps) Status {
	return Status{cursors: d.Cursors, stream: d.Stream, blocks: d.Blocks, started: d.Started}
}

func (s Status) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s Status) Status(c *gin.Context) {
	out := gin.H{"uptime": time.Since(s.started).Round(time.Second).String()}

	if s.cursors != nil {
		pos, err := s.cursors.Read(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
			return
		}
		if pos != nil {
			out["cursor"] = gin.H{
				"cursor":          pos.Cursor,
				"block_number":    pos.BlockNumber,
				"block_hash":      pos.BlockHash,
				"block_timestamp": pos.BlockTimestamp,
			}
		}
	}
	if s.stream != nil {
		st := s.stream.Status()
		out["stream"] = gin.H{
			"state":      st.State,
			"last_block": st.LastBlock,
			"restarts":   st.Restarts,
			"last_error": st.LastError,
		}
	}
	if s.blocks != nil {
		if last := s.blocks.Last(); last != nil {
			out["last_block"] = gin.H{
				"number":       last.Number,
				"hash":         last.Hash,
				"timestamp":    last.Timestamp,
				"events":       last.Events,
				"rejected":     last.Rejected,
				"processed_at": last.ProcessedAt,
			}
		}
	}
	c.JSON(http.StatusOK, out)
}

type Admin struct {
	store *storage.Store
}

func NewAdmin(s *storage.Store) Admin {
	return Admin{store: s}
}

func (a Admin) Entity(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	ent, err := a.store.EntityByID(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	if ent == nil {
		c.JSON(http.StatusNotFound, gin.H{"err": "entity not found"})
		return
	}
	types, err := a.store.EntityTypes(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	version, err := a.store.CurrentVersion(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	if types == nil {
		types = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"id":               ent.ID,
		"name":             ent.Name,
		"description":      ent.Description,
		"types":            types,
		"current_version":  version,
		"created_by":       ent.CreatedByID,
		"created_at_block": ent.CreatedAtBlock,
		"updated_at_block": ent.UpdatedAtBlock,
	})
}

func (a Admin) Proposal(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := a.store.ProposalByID(ctx, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"err": "proposal not found"})
		return
	}
	tallies, err := a.store.VoteTallies(ctx, []string{p.ID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	t := tallies[p.ID]
	c.JSON(http.StatusOK, gin.H{
		"id":                  p.ID,
		"onchain_proposal_id": p.OnchainProposalID,
		"plugin_address":      p.PluginAddress,
		"space_id":            p.SpaceID,
		"name":                p.Name,
		"uri":                 p.URI,
		"type":                p.Type,
		"status":              p.Status,
		"created_by":          p.CreatedByID,
		"start_time":          p.StartTime,
		"end_time":            p.EndTime,
		"created_at_block":    p.CreatedAtBlock,
		"votes":               gin.H{"accept": t.Accept, "reject": t.Reject},
	})
}
