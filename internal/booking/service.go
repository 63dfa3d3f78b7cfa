// Package booking turns validated requests into slots and ballots and runs the
// weekly ballot resolution.
package booking

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rc4lifting/rc4-facilities-bot/internal/domain"
	"github.com/rc4lifting/rc4-facilities-bot/internal/facility"
	"github.com/rc4lifting/rc4-facilities-bot/internal/logging"
)

// ErrSlotStarted is returned when cancelling a slot that has already begun.
var ErrSlotStarted = errors.New("bookings that have already started cannot be cancelled")

// RawBooking is an interval to commit for a known user, typically a resolved
// ballot.
type RawBooking struct {
	UserID int64
	Begin  time.Time
	End    time.Time
}

// Overview lists a user's upcoming slots and pending ballots.
type Overview struct {
	Slots   []domain.Slot
	Ballots []domain.Ballot
}

// Service handles booking and balloting requests from users.
type Service struct {
	rules  facility.Rules
	store  Store
	now    func() time.Time
	logger *logrus.Entry
}

// NewService constructs a Service enforcing rules over store.
func NewService(rules facility.Rules, store Store, logger *logrus.Entry, opts ...Option) *Service {
	if logger == nil {
		logger = logging.Logger()
	}

	s := applyOptions(opts)
	return &Service{
		rules:  rules,
		store:  store,
		now:    s.now,
		logger: logger,
	}
}

// Rules returns the facility rules the service enforces.
func (s *Service) Rules() facility.Rules {
	return s.rules
}

// TryBook books [begin, end) in the current week for the user. Validation and
// registration failures are reported before anything is written.
func (s *Service) TryBook(ctx context.Context, telegramID int64, begin, end time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	if err := s.rules.Validate(begin, end, facility.ModeBook, s.now()); err != nil {
		return err
	}

	userID, err := s.authorize(ctx, telegramID)
	if err != nil {
		return err
	}

	if err := s.commit(ctx, userID, begin, end); err != nil {
		return err
	}

	s.logger.WithFields(logging.Span(begin, end)).WithFields(logging.Fields{
		"event":       "slot_booked",
		"telegram_id": telegramID,
		"user_id":     userID,
	}).Info("booked slot")
	return nil
}

// Ballot enters the user into next week's lottery for [begin, end). Ballots
// are not checked against existing slots.
func (s *Service) Ballot(ctx context.Context, telegramID int64, begin, end time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	if err := s.rules.Validate(begin, end, facility.ModeBallot, s.now()); err != nil {
		return err
	}

	userID, err := s.authorize(ctx, telegramID)
	if err != nil {
		return err
	}

	if err := s.store.AddBallot(ctx, telegramID, userID, begin, end); err != nil {
		return domain.WrapStore("add ballot", err)
	}

	s.logger.WithFields(logging.Span(begin, end)).WithFields(logging.Fields{
		"event":       "ballot_added",
		"telegram_id": telegramID,
		"user_id":     userID,
	}).Info("added ballot")
	return nil
}

// Book commits a booking that already passed full validation. Only week
// membership is checked again, relative to reference, so the resolver can
// commit next week's ballots before that week begins.
func (s *Service) Book(ctx context.Context, raw RawBooking, reference time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	if err := s.rules.ValidateWeek(raw.Begin, facility.ModeBook, reference); err != nil {
		return err
	}

	return s.commit(ctx, raw.UserID, raw.Begin, raw.End)
}

// Cancel removes one of the user's slots that has not started yet.
func (s *Service) Cancel(ctx context.Context, telegramID int64, begin, end time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	userID, err := s.lookup(ctx, telegramID)
	if err != nil {
		return err
	}
	if !begin.After(s.now()) {
		return ErrSlotStarted
	}

	if err := s.store.DelSlot(ctx, userID, begin, end); err != nil {
		return domain.WrapStore("delete slot", err)
	}

	s.logger.WithFields(logging.Span(begin, end)).WithFields(logging.Fields{
		"event":       "slot_cancelled",
		"telegram_id": telegramID,
	}).Info("cancelled slot")
	return nil
}

// WithdrawBallot removes one of the user's pending ballots.
func (s *Service) WithdrawBallot(ctx context.Context, telegramID int64, begin, end time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	if _, err := s.lookup(ctx, telegramID); err != nil {
		return err
	}

	if err := s.store.DelBallot(ctx, telegramID, begin, end); err != nil {
		return domain.WrapStore("delete ballot", err)
	}

	s.logger.WithFields(logging.Span(begin, end)).WithFields(logging.Fields{
		"event":       "ballot_withdrawn",
		"telegram_id": telegramID,
	}).Info("withdrew ballot")
	return nil
}

// Overview returns the user's slots that have not ended and ballots that have
// not started.
func (s *Service) Overview(ctx context.Context, telegramID int64) (Overview, error) {
	if err := s.ready(ctx); err != nil {
		return Overview{}, err
	}

	userID, err := s.lookup(ctx, telegramID)
	if err != nil {
		return Overview{}, err
	}

	now := s.now()
	slots, err := s.store.SlotsByUser(ctx, userID, now)
	if err != nil {
		return Overview{}, domain.WrapStore("list slots", err)
	}
	ballots, err := s.store.BallotsByUser(ctx, telegramID, now)
	if err != nil {
		return Overview{}, domain.WrapStore("list ballots", err)
	}

	return Overview{Slots: slots, Ballots: ballots}, nil
}

func (s *Service) commit(ctx context.Context, userID int64, begin, end time.Time) error {
	err := s.store.BookSlot(ctx, userID, begin, end)
	if errors.Is(err, domain.ErrConflict) {
		s.logger.WithFields(logging.Span(begin, end)).WithFields(logging.Fields{
			"event":   "slot_conflict",
			"user_id": userID,
		}).Debug("requested slot overlaps an existing booking")
	}
	return domain.WrapStore("book slot", err)
}

// authorize resolves a registered and verified user to their internal id.
func (s *Service) authorize(ctx context.Context, telegramID int64) (int64, error) {
	registered, err := s.store.IsRegistered(ctx, telegramID)
	if err != nil {
		return 0, domain.WrapStore("check registration", err)
	}
	if !registered {
		return 0, domain.ErrNotRegistered
	}

	verified, err := s.store.IsVerified(ctx, telegramID)
	if err != nil {
		return 0, domain.WrapStore("check verification", err)
	}
	if !verified {
		return 0, domain.ErrNotVerified
	}

	return s.lookup(ctx, telegramID)
}

func (s *Service) lookup(ctx context.Context, telegramID int64) (int64, error) {
	userID, err := s.store.GetUserID(ctx, telegramID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return 0, domain.ErrNotRegistered
	}
	if err != nil {
		return 0, domain.WrapStore("get user id", err)
	}
	return userID, nil
}

func (s *Service) ready(ctx context.Context) error {
	if s == nil || s.store == nil {
		return errors.New("booking service is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	return nil
}
