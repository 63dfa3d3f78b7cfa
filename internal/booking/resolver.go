package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rc4lifting/rc4-facilities-bot/internal/domain"
	"github.com/rc4lifting/rc4-facilities-bot/internal/facility"
	"github.com/rc4lifting/rc4-facilities-bot/internal/logging"
)

// Report summarizes one resolution run.
type Report struct {
	RunID   string
	Window  facility.Interval
	Booked  []domain.Ballot
	Dropped []domain.Ballot
}

// Considered returns how many ballots the run took from the pool.
func (r Report) Considered() int {
	return len(r.Booked) + len(r.Dropped)
}

// Resolver converts next week's ballots into slots.
type Resolver struct {
	service *Service
	store   Store
	now     func() time.Time
	shuffle Shuffler
	logger  *logrus.Entry
}

// NewResolver constructs a Resolver committing through service.
func NewResolver(service *Service, opts ...Option) *Resolver {
	s := applyOptions(opts)

	r := &Resolver{
		service: service,
		now:     s.now,
		shuffle: s.shuffle,
		logger:  logging.Logger(),
	}
	if service != nil {
		r.store = service.store
		r.logger = service.logger
	}
	return r
}

// Resolve takes every ballot starting in next local week out of the pool and
// books them in uniformly random order. A ballot overlapping an earlier winner
// is dropped for good. Any other failure stops the run; ballots already taken
// from the pool are not restored.
func (r *Resolver) Resolve(ctx context.Context) (Report, error) {
	if r == nil || r.service == nil || r.store == nil {
		return Report{}, errors.New("ballot resolver is not initialized")
	}
	if ctx == nil {
		return Report{}, errors.New("context is required")
	}

	report := Report{
		RunID:  uuid.NewString(),
		Window: r.service.rules.Week(facility.ModeBallot, r.now()),
	}
	log := r.logger.WithFields(logging.Fields{
		"run_id":       report.RunID,
		"window_begin": report.Window.Begin.UTC().Format(time.RFC3339),
	})

	ballots, err := r.store.GetBallotsByTime(ctx, report.Window.Begin, report.Window.End)
	if err != nil {
		return report, domain.WrapStore("get ballots", err)
	}
	if len(ballots) == 0 {
		log.WithField("event", "resolve_empty").Info("no ballots to resolve")
		return report, nil
	}

	if err := r.store.DelBallotsByTime(ctx, report.Window.Begin, report.Window.End); err != nil {
		return report, domain.WrapStore("delete ballots", err)
	}

	log.WithFields(logging.Fields{
		"event":   "resolve_started",
		"ballots": len(ballots),
	}).Info("resolving ballots")

	r.shuffle(len(ballots), func(i, j int) {
		ballots[i], ballots[j] = ballots[j], ballots[i]
	})

	for i, ballot := range ballots {
		raw := RawBooking{UserID: ballot.UserID, Begin: ballot.Begin, End: ballot.End}
		err := r.service.Book(ctx, raw, report.Window.Begin)
		switch {
		case err == nil:
			report.Booked = append(report.Booked, ballot)
		case errors.Is(err, domain.ErrConflict):
			report.Dropped = append(report.Dropped, ballot)
			log.WithFields(logging.Span(ballot.Begin, ballot.End)).WithFields(logging.Fields{
				"event":       "resolve_conflict_skipped",
				"telegram_id": ballot.TelegramID,
			}).Debug("ballot lost to an earlier winner")
		default:
			log.WithError(err).WithField("event", "resolve_aborted").Error("ballot resolution aborted")
			return report, fmt.Errorf("resolve ballot %d of %d: %w", i+1, len(ballots), err)
		}
	}

	log.WithFields(logging.Fields{
		"event":   "resolve_finished",
		"booked":  len(report.Booked),
		"dropped": len(report.Dropped),
	}).Info("resolved ballots")
	return report, nil
}
