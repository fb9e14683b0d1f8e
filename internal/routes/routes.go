package routes

import (
	"io"
	"os"

	ginlog "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"tallyboard/internal/controllers"
	"tallyboard/internal/livefeed"
	"tallyboard/internal/logger"
	"tallyboard/internal/metrics"
	"tallyboard/internal/middleware"
	"tallyboard/internal/ratelimit"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	DB          *gorm.DB
	Votes       controllers.Submitter
	Tally       controllers.Aggregator
	Feed        *livefeed.Feed
	Limiter     ratelimit.Limiter
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	AccessLog   io.Writer
	CORSOrigins []string
	RecentLimit int
}

// SetupRouter builds the gin engine with every route group registered.
func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(accessLog(d.AccessLog))

	dashboard := controllers.NewDashboardController(d.Tally, d.Feed, d.RecentLimit)
	limit := rateLimited(d.Limiter, d.Metrics)

	VoteRoutes(r, controllers.NewVotesController(d.Votes), limit)
	RegionRoutes(r, controllers.NewRegionsController(d.DB), limit)
	DashboardRoutes(r, dashboard, limit)
	WebSocketRoutes(r, controllers.NewWebSocketController(dashboard, d.CORSOrigins))
	OpsRoutes(r, d.DB, d.Gatherer)

	return r
}

// rateLimited is the middleware shared by the request/response API routes, so
// one client has one budget across them. It is empty without a limiter.
func rateLimited(l ratelimit.Limiter, m *metrics.Metrics) []gin.HandlerFunc {
	if l == nil {
		return nil
	}
	return []gin.HandlerFunc{ratelimit.Middleware(l, m)}
}

func accessLog(w io.Writer) gin.HandlerFunc {
	if w == nil {
		w = os.Stdout
	}
	return ginlog.SetLogger(
		ginlog.WithWriter(w),
		ginlog.WithUTC(true),
		ginlog.WithSkipPath([]string{"/metrics", "/healthz"}),
		ginlog.WithLogger(func(c *gin.Context, l zerolog.Logger) zerolog.Logger {
			if id := logger.RequestID(c.Request.Context()); id != "" {
				return l.With().Str("request_id", id).Logger()
			}
			return l
		}),
	)
}
