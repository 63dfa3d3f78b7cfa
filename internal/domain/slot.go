package domain

import "time"

// Slot is a confirmed booking of the facility over the half-open interval
// [Begin, End).
type Slot struct {
	UserID    int64     `bson:"user_id" json:"user_id"`
	Begin     time.Time `bson:"time_begin" json:"time_begin"`
	End       time.Time `bson:"time_end" json:"time_end"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Overlaps reports whether two half-open intervals intersect. Touching
// intervals ([10:00,11:00) and [11:00,12:00)) do not overlap.
func Overlaps(aBegin, aEnd, bBegin, bEnd time.Time) bool {
	return aBegin.Before(bEnd) && aEnd.After(bBegin)
}

// Overlaps reports whether the slot intersects [begin, end).
func (s Slot) Overlaps(begin, end time.Time) bool {
	return Overlaps(s.Begin, s.End, begin, end)
}
