// Package api serves the sink's status, metrics and admin lookup endpoints.
package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stake-plus/geo-sink/src/cursor"
	"github.com/stake-plus/geo-sink/src/sink"
	"github.com/stake-plus/geo-sink/src/storage"
	"github.com/stake-plus/geo-sink/src/stream"
)

// StreamStatus reports the consumer's progress.
type StreamStatus interface {
	Status() stream.Status
}

// BlockReporter reports the last block the sink completed.
type BlockReporter interface {
	Last() *sink.LastBlock
}

type Deps struct {
	Store       *storage.Store
	Cursors     cursor.Store
	Stream      StreamStatus
	Blocks      BlockReporter
	JWTSecret   string
	CORSOrigins []string
	Started     time.Time
}

// New builds the gin engine with every route attached.
func New(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	Attach(r, d)
	return r
}

func Attach(r *gin.Engine, d Deps) {
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  d.CORSOrigins,
			AllowMethods:  []string{"GET", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}
	if d.Started.IsZero() {
		d.Started = time.Now()
	}

	statusH := NewStatus(d)
	r.GET("/healthz", statusH.Health)
	r.GET("/status", statusH.Status)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := r.Group("/admin")
	admin.Use(JWTMiddleware([]byte(d.JWTSecret)))
	{
		adminH := NewAdmin(d.Store)
		admin.GET("/entities/:id", adminH.Entity)
		admin.GET("/proposals/:id", adminH.Proposal)
	}
}
