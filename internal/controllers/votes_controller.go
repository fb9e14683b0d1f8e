package controllers

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"tallyboard/internal/logger"
	"tallyboard/internal/submission"
	"tallyboard/internal/validation"
)

// maxSubmissionBytes bounds the request body of one submission.
const maxSubmissionBytes = 1 << 20

// Submitter persists one validated submission.
type Submitter interface {
	Submit(ctx context.Context, doc validation.Document) (*submission.Result, error)
}

type VotesController struct {
	votes Submitter
}

var registerBinding sync.Once

func NewVotesController(votes Submitter) *VotesController {
	registerBinding.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			validation.Register(v)
		}
	})
	return &VotesController{votes: votes}
}

// Create handles POST /api/votes.
func (vc *VotesController) Create(c *gin.Context) {
	ctx := c.Request.Context()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSubmissionBytes)

	var doc validation.Document
	var fields validator.ValidationErrors
	if err := c.ShouldBindJSON(&doc); err != nil && !errors.As(err, &fields) {
		logger.FromContext(ctx).WithError(err).Warn("Unreadable submission body.")
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation",
			"message": "request body is not a valid submission document",
			"details": []validation.Violation{},
		})
		return
	}
	// tag failures come back from Submit with the arithmetic ones, after sanitizing

	result, err := vc.votes.Submit(ctx, doc)
	if err != nil {
		writeSubmitError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "records": result.Records})
}

func writeSubmitError(c *gin.Context, err error) {
	var (
		verr  *submission.ValidationError
		serr  *submission.StationError
		store *submission.StoreError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation",
			"message": validation.Summary(verr.Violations),
			"details": verr.Violations,
		})
	case errors.Is(err, submission.ErrInvalidReference):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reference ids"})
	case errors.As(err, &serr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid polling station", "stationIndex": serr.StationIndex})
	case errors.As(err, &store):
		body := gin.H{"error": "internal", "message": "the ballots could not be saved"}
		if store.Code != "" {
			body["code"] = store.Code
		}
		c.JSON(http.StatusInternalServerError, body)
	default:
		logger.FromContext(c.Request.Context()).WithError(err).Error("Unexpected submission error.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": "the ballots could not be saved"})
	}
}
