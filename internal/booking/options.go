package booking

import (
	"math/rand/v2"
	"time"
)

// Shuffler permutes n elements through swap. rand.Shuffle satisfies it.
type Shuffler func(n int, swap func(i, j int))

// Option customizes a Service or Resolver.
type Option func(*settings)

type settings struct {
	now     func() time.Time
	shuffle Shuffler
}

func defaultSettings() settings {
	return settings{
		now:     time.Now,
		shuffle: rand.Shuffle,
	}
}

func applyOptions(opts []Option) settings {
	s := defaultSettings()
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}

// WithClock replaces the wall clock used as the reference time.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithShuffler replaces the uniform random permutation used by the resolver.
func WithShuffler(shuffle Shuffler) Option {
	return func(s *settings) {
		if shuffle != nil {
			s.shuffle = shuffle
		}
	}
}
