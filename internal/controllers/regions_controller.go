package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"tallyboard/internal/geo"
	"tallyboard/internal/logger"
	"tallyboard/internal/models"
)

// RegionsController serves the cascading location picker of the collection
// form and the static candidate pairs.
type RegionsController struct {
	db *gorm.DB
}

func NewRegionsController(db *gorm.DB) *RegionsController {
	return &RegionsController{db: db}
}

// Departments handles GET /api/regions/departments.
func (rc *RegionsController) Departments(c *gin.Context) {
	nodes, err := geo.Departments(c.Request.Context(), rc.db)
	if err != nil {
		logger.FromContext(c.Request.Context()).WithError(err).Error("Failed to list departments.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch departments"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"children": nodes})
}

// Children returns a handler listing the nodes of level under the parent
// named by the query parameter param.
func (rc *RegionsController) Children(level geo.Level, param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Query(param)
		if raw == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": param + " is required"})
			return
		}
		parentID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || parentID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": param + " must be a positive integer"})
			return
		}

		nodes, err := geo.Children(c.Request.Context(), rc.db, level, uint(parentID))
		if err != nil {
			logger.FromContext(c.Request.Context()).WithError(err).
				WithField("level", level).Error("Failed to list hierarchy children.")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch " + string(level) + " list"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"children": nodes})
	}
}

// CandidatePairs handles GET /api/candidate-pairs.
func (rc *RegionsController) CandidatePairs(c *gin.Context) {
	var pairs []models.CandidatePair
	if err := rc.db.WithContext(c.Request.Context()).Order("id").Find(&pairs).Error; err != nil {
		logger.FromContext(c.Request.Context()).WithError(err).Error("Failed to list candidate pairs.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch candidate pairs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pairs": pairs})
}
