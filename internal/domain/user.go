package domain

import "time"

// User is a resident registered with the bot. TelegramID is the external chat
// identifier; UserID is the internal numeric id that slots and ballots reference.
type User struct {
	UserID           int64     `bson:"user_id" json:"user_id"`
	TelegramID       int64     `bson:"telegram_id" json:"telegram_id"`
	Name             string    `bson:"name" json:"name"`
	Email            string    `bson:"email" json:"email"`
	Room             string    `bson:"room" json:"room"`
	Verified         bool      `bson:"verified" json:"verified"`
	VerificationHash string    `bson:"verification_hash,omitempty" json:"-"`
	CreatedAt        time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at" json:"updated_at"`
}
