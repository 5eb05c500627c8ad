package user

import "time"

// Role names form a fixed vocabulary assigned at deployment time.
const (
	RoleMember    = "Member"
	RoleAdmin     = "Admin"
	RoleModerator = "Moderator"
	RoleVIP       = "VIP"
)

// User is a registered identity with its profile attributes. The password is
// stored only as a salted one-way hash.
type User struct {
	ID           int64     `db:"id"`
	Username     string    `db:"username"`
	PasswordHash []byte    `db:"password_hash"`
	PasswordSalt []byte    `db:"password_salt"`
	Roles        []string  `db:"-"`
	Gender       string    `db:"gender"`
	DateOfBirth  time.Time `db:"date_of_birth"`
	KnownAs      string    `db:"known_as"`
	Introduction string    `db:"introduction"`
	LookingFor   string    `db:"looking_for"`
	Interests    string    `db:"interests"`
	City         string    `db:"city"`
	Country      string    `db:"country"`
	Created      time.Time `db:"created"`
	LastActive   time.Time `db:"last_active"`
}

// HasRole reports whether the user holds the named role.
func (u User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// Age computes the user's age in whole years at the given instant.
func (u User) Age(now time.Time) int {
	years := now.Year() - u.DateOfBirth.Year()
	if now.YearDay() < u.DateOfBirth.YearDay() {
		years--
	}
	return years
}
