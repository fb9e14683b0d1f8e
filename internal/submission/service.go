// Package submission persists one agent's ballot counts for a center as a
// single all-or-nothing transaction.
package submission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tallyboard/internal/geo"
	"tallyboard/internal/logger"
	"tallyboard/internal/metrics"
	"tallyboard/internal/models"
	"tallyboard/internal/validation"
)

// Notifier is told about every committed submission.
type Notifier interface {
	Notify(ctx context.Context, centerID uint) error
}

type Options struct {
	// StationNames are the fixed polling stations of every center; index i
	// in a submission refers to StationNames[i-1].
	StationNames []string
	// StrictPath also checks that each location id sits under the previous one.
	StrictPath bool

	Notifier Notifier
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

// CreatedRecord is one inserted ballot record.
type CreatedRecord struct {
	ID               uint      `json:"id"`
	StationIndex     int       `json:"stationIndex"`
	PollingStationID uint      `json:"pollingStationId"`
	CreatedAt        time.Time `json:"createdAt"`
}

type Result struct {
	Records []CreatedRecord `json:"records"`
}

type Service struct {
	db   *gorm.DB
	opts Options
}

func NewService(db *gorm.DB, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{db: db, opts: opts}
}

// Submit validates doc and, when it is consistent, writes one ballot record
// per station inside one transaction. The returned error is one of
// *ValidationError, ErrInvalidReference, *StationError or *StoreError; in
// every case nothing was persisted.
func (s *Service) Submit(ctx context.Context, doc validation.Document) (*Result, error) {
	start := time.Now()
	log := logger.FromContext(ctx)

	sub, violations := validation.Validate(doc, len(s.opts.StationNames))
	if len(violations) > 0 {
		for _, v := range violations {
			s.opts.Metrics.IncViolation(v.Rule)
		}
		s.opts.Metrics.ObserveSubmission(metrics.OutcomeInvalid, time.Since(start))
		log.WithFields(logrus.Fields{
			"agent":      validation.SanitizeName(doc.AgentFullName),
			"violations": len(violations),
			"first":      validation.Summary(violations),
		}).Info("Submission rejected by validation.")
		return nil, &ValidationError{Violations: violations}
	}

	log = log.WithFields(logrus.Fields{
		"agent":     sub.AgentFullName,
		"center_id": sub.Location.CenterID,
		"stations":  len(sub.Records),
	})

	result, err := s.persist(ctx, sub)
	outcome := outcomeOf(err)
	s.opts.Metrics.ObserveSubmission(outcome, time.Since(start))
	if err != nil {
		entry := log.WithError(err).WithField("outcome", outcome)
		if outcome == metrics.OutcomeError {
			entry.Error("Submission failed, transaction rolled back.")
		} else {
			entry.Warn("Submission rejected, transaction rolled back.")
		}
		return nil, err
	}

	s.opts.Metrics.AddRecords(len(result.Records))
	log.WithField("outcome", outcome).Info("Submission committed.")

	if s.opts.Notifier != nil {
		if err := s.opts.Notifier.Notify(ctx, sub.Location.CenterID); err != nil {
			s.opts.Metrics.IncNotifyFailure()
			log.WithError(err).Warn("Failed to notify live feeds of new submission.")
		}
	}
	return result, nil
}

func (s *Service) persist(ctx context.Context, sub *validation.Submission) (result *Result, err error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, storeError("begin transaction", tx.Error)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback().Error; rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.FromContext(ctx).WithError(rbErr).Error("Rollback failed.")
		}
		if r := recover(); r != nil {
			panic(r)
		}
	}()

	if err := geo.VerifyPath(ctx, tx, sub.Location, s.opts.StrictPath); err != nil {
		if errors.Is(err, geo.ErrUnknownReference) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidReference, err)
		}
		return nil, storeError("verify location", err)
	}

	stations, err := geo.EnsureStations(ctx, tx, sub.Location.CenterID, s.opts.StationNames)
	if err != nil {
		return nil, storeError("resolve polling stations", err)
	}

	now := s.opts.Now().UTC()
	result = &Result{Records: make([]CreatedRecord, 0, len(sub.Records))}
	for _, r := range sub.Records {
		stationID, ok := stations[r.StationIndex]
		if !ok {
			return nil, &StationError{StationIndex: r.StationIndex}
		}

		rec := models.BallotRecord{
			AgentFullName:    sub.AgentFullName,
			PollingStationID: stationID,
			DepartmentID:     sub.Location.DepartmentID,
			CommuneID:        sub.Location.CommuneID,
			DistrictID:       sub.Location.DistrictID,
			VillageID:        sub.Location.VillageID,
			CenterID:         sub.Location.CenterID,
			LeadingPairID:    models.LeadingPair(r.CandidateAVotes, r.CandidateBVotes),
			RegisteredVoters: r.RegisteredVoters,
			Voters:           r.Voters,
			NullBallots:      r.NullBallots,
			BlankBallots:     r.BlankBallots,
			ValidBallots:     r.ValidBallots,
			CandidateAVotes:  r.CandidateAVotes,
			CandidateBVotes:  r.CandidateBVotes,
			Observations:     r.Observations,
			CreatedAt:        now,
		}
		if err := tx.Create(&rec).Error; err != nil {
			return nil, storeError(fmt.Sprintf("insert ballot record for station %d", r.StationIndex), err)
		}
		result.Records = append(result.Records, CreatedRecord{
			ID:               rec.ID,
			StationIndex:     r.StationIndex,
			PollingStationID: stationID,
			CreatedAt:        rec.CreatedAt,
		})
	}

	if err := tx.Commit().Error; err != nil {
		return nil, storeError("commit", err)
	}
	committed = true
	return result, nil
}

func outcomeOf(err error) string {
	var stationErr *StationError
	switch {
	case err == nil:
		return metrics.OutcomeAccepted
	case errors.Is(err, ErrInvalidReference):
		return metrics.OutcomeReference
	case errors.As(err, &stationErr):
		return metrics.OutcomeStation
	}
	return metrics.OutcomeError
}
