package domain

import "time"

// Ballot is a pending lottery entry for an interval in the upcoming week.
// Ballots from different users may overlap; resolution decides the winner.
type Ballot struct {
	TelegramID int64     `bson:"telegram_id" json:"telegram_id"`
	UserID     int64     `bson:"user_id" json:"user_id"`
	Begin      time.Time `bson:"time_begin" json:"time_begin"`
	End        time.Time `bson:"time_end" json:"time_end"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}
