package booking

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"go.uber.org/mock/gomock"

	"github.com/rc4lifting/rc4-facilities-bot/internal/domain"
)

// sunday is when the weekly resolver runs; next week starts on the 26th.
func sunday() time.Time {
	return local(25, 20, 0)
}

func identityShuffle(int, func(i, j int)) {}

func reverseShuffle(n int, swap func(i, j int)) {
	for i := 0; i < n/2; i++ {
		swap(i, n-1-i)
	}
}

func seededShuffle(seed uint64) Shuffler {
	return rand.New(rand.NewPCG(seed, seed)).Shuffle
}

func newTestResolver(t *testing.T, store Store, shuffle Shuffler) *Resolver {
	t.Helper()

	logger, _ := logtest.NewNullLogger()
	clock := WithClock(sunday)
	svc := NewService(testRules(), store, logrus.NewEntry(logger), clock)
	return NewResolver(svc, clock, WithShuffler(shuffle))
}

func TestResolveWithoutBallotsDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	resolver := newTestResolver(t, store, identityShuffle)

	store.EXPECT().GetBallotsByTime(ctx, local(26, 0, 0), local(26+7, 0, 0)).Return(nil, nil)

	report, err := resolver.Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if report.Considered() != 0 || report.RunID == "" {
		t.Fatalf("unexpected report %+v", report)
	}
	if !report.Window.Begin.Equal(local(26, 0, 0)) {
		t.Fatalf("expected window to start next Monday, got %v", report.Window.Begin)
	}
}

func TestResolveBooksAllDisjointBallots(t *testing.T) {
	shufflers := map[string]Shuffler{
		"identity": identityShuffle,
		"reverse":  reverseShuffle,
		"seed 1":   seededShuffle(1),
		"seed 42":  seededShuffle(42),
	}

	for name, shuffle := range shufflers {
		t.Run(name, func(t *testing.T) {
			store := newMemStore()
			for i, b := range []struct{ day, hour int }{{26, 8}, {26, 10}, {27, 8}, {28, 14}, {30, 19}} {
				store.addBallot(int64(1000+i), int64(i+1), local(b.day, b.hour, 0), local(b.day, b.hour+1, 0))
			}
			store.addBallot(2000, 99, local(26+7+2, 8, 0), local(26+7+2, 9, 0))

			report, err := newTestResolver(t, store, shuffle).Resolve(context.Background())
			if err != nil {
				t.Fatalf("Resolve returned error: %v", err)
			}

			if len(report.Booked) != 5 || len(report.Dropped) != 0 {
				t.Fatalf("expected all 5 ballots booked, got %+v", report)
			}
			if len(store.slots) != 5 {
				t.Fatalf("expected 5 slots, got %d", len(store.slots))
			}
			if len(store.ballots) != 1 || store.ballots[0].TelegramID != 2000 {
				t.Fatalf("expected only the later week's ballot to remain, got %+v", store.ballots)
			}
		})
	}
}

func TestResolveKeepsExactlyOneOfIdenticalBallots(t *testing.T) {
	tests := []struct {
		name    string
		shuffle Shuffler
		winner  int64
	}{
		{"identity", identityShuffle, 1},
		{"reverse", reverseShuffle, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.addBallot(1001, 1, local(27, 8, 0), local(27, 9, 0))
			store.addBallot(1002, 2, local(27, 8, 0), local(27, 9, 0))

			report, err := newTestResolver(t, store, tt.shuffle).Resolve(context.Background())
			if err != nil {
				t.Fatalf("Resolve returned error: %v", err)
			}

			if len(store.slots) != 1 || store.slots[0].UserID != tt.winner {
				t.Fatalf("expected single slot for user %d, got %+v", tt.winner, store.slots)
			}
			if len(report.Dropped) != 1 || report.Dropped[0].UserID == tt.winner {
				t.Fatalf("expected loser to be dropped, got %+v", report.Dropped)
			}
			if len(store.ballots) != 0 {
				t.Fatalf("expected losing ballot not to be requeued, got %+v", store.ballots)
			}
		})
	}
}

func TestResolveSkipsBallotsOverlappingEarlierWinners(t *testing.T) {
	store := newMemStore()
	store.slots = append(store.slots, domain.Slot{UserID: 50, Begin: local(28, 12, 0), End: local(28, 13, 0)})
	store.addBallot(1001, 1, local(26, 8, 0), local(26, 9, 0))
	store.addBallot(1002, 2, local(26, 8, 40), local(26, 10, 0))
	store.addBallot(1003, 3, local(26, 9, 0), local(26, 10, 0))
	store.addBallot(1004, 4, local(28, 12, 40), local(28, 13, 20))

	report, err := newTestResolver(t, store, identityShuffle).Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	booked := map[int64]bool{}
	for _, b := range report.Booked {
		booked[b.UserID] = true
	}
	if !booked[1] || booked[2] || !booked[3] || booked[4] {
		t.Fatalf("unexpected winners %+v", booked)
	}
	if len(store.slots) != 3 {
		t.Fatalf("expected existing slot plus two winners, got %+v", store.slots)
	}
	assertNoOverlaps(t, store.slots)
}

func TestResolveAbortsOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	resolver := newTestResolver(t, store, identityShuffle)

	begin, end := local(26, 0, 0), local(26+7, 0, 0)
	ballots := []domain.Ballot{
		{TelegramID: 1001, UserID: 1, Begin: local(26, 8, 0), End: local(26, 9, 0)},
		{TelegramID: 1002, UserID: 2, Begin: local(27, 8, 0), End: local(27, 9, 0)},
		{TelegramID: 1003, UserID: 3, Begin: local(28, 8, 0), End: local(28, 9, 0)},
	}
	errDown := errors.New("connection refused")

	gomock.InOrder(
		store.EXPECT().GetBallotsByTime(ctx, begin, end).Return(ballots, nil),
		store.EXPECT().DelBallotsByTime(ctx, begin, end).Return(nil),
		store.EXPECT().BookSlot(ctx, int64(1), ballots[0].Begin, ballots[0].End).Return(nil),
		store.EXPECT().BookSlot(ctx, int64(2), ballots[1].Begin, ballots[1].End).Return(errDown),
	)

	report, err := resolver.Resolve(ctx)

	var failure *domain.StoreFailure
	if !errors.As(err, &failure) || !errors.Is(err, errDown) {
		t.Fatalf("expected wrapped store failure, got %v", err)
	}
	if len(report.Booked) != 1 {
		t.Fatalf("expected one ballot booked before abort, got %+v", report.Booked)
	}
}

func TestResolveAbortsWhenPoolCannotBeCleared(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	resolver := newTestResolver(t, store, identityShuffle)

	ballots := []domain.Ballot{{TelegramID: 1001, UserID: 1, Begin: local(26, 8, 0), End: local(26, 9, 0)}}
	store.EXPECT().GetBallotsByTime(ctx, gomock.Any(), gomock.Any()).Return(ballots, nil)
	store.EXPECT().DelBallotsByTime(ctx, gomock.Any(), gomock.Any()).Return(errors.New("write concern"))

	if _, err := resolver.Resolve(ctx); err == nil {
		t.Fatalf("expected error when ballots cannot be removed")
	}
}

func TestResolveRequiresContext(t *testing.T) {
	resolver := newTestResolver(t, newMemStore(), identityShuffle)
	if _, err := resolver.Resolve(nil); err == nil {
		t.Fatalf("expected error for nil context")
	}

	if _, err := NewResolver(nil).Resolve(context.Background()); err == nil {
		t.Fatalf("expected error for resolver without service")
	}
}

func assertNoOverlaps(t *testing.T, slots []domain.Slot) {
	t.Helper()
	for i := range slots {
		for j := i + 1; j < len(slots); j++ {
			if slots[i].Overlaps(slots[j].Begin, slots[j].End) {
				t.Fatalf("slots %+v and %+v overlap", slots[i], slots[j])
			}
		}
	}
}

// memStore is an in-memory Store with atomic BookSlot.
type memStore struct {
	mu      sync.Mutex
	slots   []domain.Slot
	ballots []domain.Ballot
}

func newMemStore() *memStore {
	return &memStore{}
}

func (m *memStore) addBallot(telegramID, userID int64, begin, end time.Time) {
	m.ballots = append(m.ballots, domain.Ballot{TelegramID: telegramID, UserID: userID, Begin: begin, End: end})
}

func (m *memStore) IsRegistered(context.Context, int64) (bool, error) { return true, nil }
func (m *memStore) IsVerified(context.Context, int64) (bool, error)   { return true, nil }
func (m *memStore) GetUserID(_ context.Context, telegramID int64) (int64, error) {
	return telegramID, nil
}

func (m *memStore) IsBooked(_ context.Context, begin, end time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookedLocked(begin, end), nil
}

func (m *memStore) bookedLocked(begin, end time.Time) bool {
	for _, s := range m.slots {
		if s.Overlaps(begin, end) {
			return true
		}
	}
	return false
}

func (m *memStore) BookSlot(_ context.Context, userID int64, begin, end time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bookedLocked(begin, end) {
		return domain.ErrConflict
	}
	m.slots = append(m.slots, domain.Slot{UserID: userID, Begin: begin, End: end})
	return nil
}

func (m *memStore) DelSlot(context.Context, int64, time.Time, time.Time) error {
	return domain.ErrSlotNotFound
}

func (m *memStore) SlotsByUser(context.Context, int64, time.Time) ([]domain.Slot, error) {
	return nil, nil
}

func (m *memStore) AddBallot(_ context.Context, telegramID, userID int64, begin, end time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addBallot(telegramID, userID, begin, end)
	return nil
}

func (m *memStore) DelBallot(context.Context, int64, time.Time, time.Time) error {
	return domain.ErrSlotNotFound
}

func (m *memStore) BallotsByUser(context.Context, int64, time.Time) ([]domain.Ballot, error) {
	return nil, nil
}

func (m *memStore) GetBallotsByTime(_ context.Context, begin, end time.Time) ([]domain.Ballot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Ballot
	for _, b := range m.ballots {
		if !b.Begin.Before(begin) && b.Begin.Before(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) DelBallotsByTime(_ context.Context, begin, end time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.ballots[:0]
	for _, b := range m.ballots {
		if b.Begin.Before(begin) || !b.Begin.Before(end) {
			kept = append(kept, b)
		}
	}
	m.ballots = kept
	return nil
}
