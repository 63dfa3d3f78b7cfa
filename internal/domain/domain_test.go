package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestOverlapsIsHalfOpenAndSymmetric(t *testing.T) {
	at := func(h, m int) time.Time {
		return time.Date(2026, 10, 19, h, m, 0, 0, time.UTC)
	}

	tests := []struct {
		name         string
		aBegin, aEnd time.Time
		bBegin, bEnd time.Time
		want         bool
	}{
		{"touching end to start", at(10, 0), at(11, 0), at(11, 0), at(12, 0), false},
		{"one minute overlap", at(10, 0), at(11, 0), at(10, 59), at(11, 30), true},
		{"identical", at(10, 0), at(11, 0), at(10, 0), at(11, 0), true},
		{"contained", at(10, 0), at(12, 0), at(10, 20), at(10, 40), true},
		{"disjoint", at(8, 0), at(9, 0), at(10, 0), at(11, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.aBegin, tt.aEnd, tt.bBegin, tt.bEnd); got != tt.want {
				t.Fatalf("Overlaps(a, b) = %v, want %v", got, tt.want)
			}
			if got := Overlaps(tt.bBegin, tt.bEnd, tt.aBegin, tt.aEnd); got != tt.want {
				t.Fatalf("Overlaps(b, a) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrapStoreKeepsSentinels(t *testing.T) {
	conflict := fmt.Errorf("insert slot: %w", ErrConflict)
	if got := WrapStore("book slot", conflict); got != conflict {
		t.Fatalf("expected conflict to pass through, got %v", got)
	}

	if WrapStore("book slot", nil) != nil {
		t.Fatalf("expected nil to stay nil")
	}

	boom := errors.New("connection reset")
	wrapped := WrapStore("book slot", boom)

	var failure *StoreFailure
	if !errors.As(wrapped, &failure) {
		t.Fatalf("expected StoreFailure, got %T", wrapped)
	}
	if failure.Op != "book slot" || !errors.Is(wrapped, boom) {
		t.Fatalf("unexpected failure %+v", failure)
	}
	if WrapStore("again", wrapped) != wrapped {
		t.Fatalf("expected StoreFailure not to be wrapped twice")
	}
}
