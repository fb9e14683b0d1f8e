package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"tallyboard/internal/livefeed"
	"tallyboard/internal/logger"
	"tallyboard/internal/tally"
)

// Aggregator answers the dashboard queries.
type Aggregator interface {
	National(ctx context.Context) (*tally.National, error)
	Table(ctx context.Context, q tally.Query) (*tally.Table, error)
}

type DashboardController struct {
	tally       Aggregator
	feed        *livefeed.Feed
	recentLimit int
}

func NewDashboardController(agg Aggregator, feed *livefeed.Feed, recentLimit int) *DashboardController {
	return &DashboardController{tally: agg, feed: feed, recentLimit: recentLimit}
}

// Stats handles GET /api/dashboard/stats.
func (dc *DashboardController) Stats(c *gin.Context) {
	national, err := dc.tally.National(c.Request.Context())
	if err != nil {
		logger.FromContext(c.Request.Context()).WithError(err).Error("Failed to compute national totals.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching statistics"})
		return
	}
	c.JSON(http.StatusOK, national)
}

// Table handles GET /api/dashboard/table?level=&search=.
func (dc *DashboardController) Table(c *gin.Context) {
	level, err := tally.ParseLevel(c.Query("level"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filter"})
		return
	}

	table, err := dc.tally.Table(c.Request.Context(), tally.Query{Level: level, Search: c.Query("search")})
	if err != nil {
		logger.FromContext(c.Request.Context()).WithError(err).
			WithField("level", level).Error("Failed to compute dashboard table.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching table data"})
		return
	}
	c.JSON(http.StatusOK, table)
}

// snapshotOptions reads the optional level of a live feed request. An
// empty level sends national totals and recent records only.
func (dc *DashboardController) snapshotOptions(c *gin.Context) (tally.SnapshotOptions, bool) {
	opts := tally.SnapshotOptions{RecentLimit: dc.recentLimit}
	if raw := c.Query("level"); raw != "" {
		level, err := tally.ParseLevel(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filter"})
			return opts, false
		}
		opts.Level = level
	}
	return opts, true
}

// sseSink writes feed messages as server-sent events on a gin response.
type sseSink struct {
	c *gin.Context
}

func (s sseSink) Send(ctx context.Context, msg livefeed.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.c.SSEvent("message", msg)
	s.c.Writer.Flush()
	return s.c.Request.Context().Err()
}

// Stream handles GET /api/dashboard/stream, a server-sent events feed.
func (dc *DashboardController) Stream(c *gin.Context) {
	opts, ok := dc.snapshotOptions(c)
	if !ok {
		return
	}

	h := c.Writer.Header()
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	if err := dc.feed.Serve(c.Request.Context(), "sse", sseSink{c: c}, opts); err != nil {
		logger.FromContext(c.Request.Context()).WithError(err).Debug("SSE stream ended.")
	}
}
