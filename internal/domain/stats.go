package domain

// Stats holds collection counts reported by the admin status command.
type Stats struct {
	Users   int64 `json:"users"`
	Slots   int64 `json:"slots"`
	Ballots int64 `json:"ballots"`
}
