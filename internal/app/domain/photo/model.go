package photo

import "time"

// Photo belongs to exactly one user. At most one photo per user carries
// IsMain; the workflow enforces that, not the store schema. Unapproved photos
// stay invisible to everyone but the owner and moderators.
type Photo struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	URL         string    `db:"url"`
	PublicID    string    `db:"public_id"`
	Description string    `db:"description"`
	DateAdded   time.Time `db:"date_added"`
	IsMain      bool      `db:"is_main"`
	IsApproved  bool      `db:"is_approved"`
	// Version supports the optimistic-concurrency check on the set-main
	// transition.
	Version int64 `db:"version"`
}

// ForModeration is the moderator's view of a pending photo.
type ForModeration struct {
	ID         int64  `db:"id" json:"id"`
	Username   string `db:"username" json:"username"`
	URL        string `db:"url" json:"url"`
	IsApproved bool   `db:"is_approved" json:"isApproved"`
}
