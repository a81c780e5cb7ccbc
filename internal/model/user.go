// Package model defines the data structures used throughout the application.
package model

import "time"

// SwitchState is the owner's opt-in to showing verification-sourced data.
// Only SwitchOn enables anything; every other value behaves like SwitchOff.
type SwitchState string

const (
	SwitchOn  SwitchState = "on"
	SwitchOff SwitchState = "off"
)

// ParseSwitchState normalises a submitted form value. HTML checkboxes post
// "on" when ticked and nothing at all otherwise.
func ParseSwitchState(v string) SwitchState {
	switch v {
	case "on", "true", "1":
		return SwitchOn
	default:
		return SwitchOff
	}
}

// User is a stored user record.
//
// AuthorPhoto and AuthorRank are only ever written by profile reconciliation;
// edits never touch them. PasswordHash is tagged json:"-" so it can't leak
// into an API response by accident.
type User struct {
	ID           int64       `json:"id"          db:"id"`
	Username     string      `json:"username"    db:"username"`
	FullName     string      `json:"fullName"    db:"full_name"`
	Location     string      `json:"location"    db:"location"`
	PasswordHash string      `json:"-"           db:"password"`
	Photo        string      `json:"photo"       db:"photo"`
	SwitchState  SwitchState `json:"switchState" db:"switch_state"`
	AuthorPhoto  string      `json:"authorPhoto" db:"author_photo"`
	AuthorRank   string      `json:"authorRank"  db:"author_rank"`
	CreatedAt    time.Time   `json:"createdAt"   db:"created_at"`
	UpdatedAt    time.Time   `json:"updatedAt"   db:"updated_at"`
}

// VerificationEnabled reports whether the owner has opted in.
func (u *User) VerificationEnabled() bool {
	return u.SwitchState == SwitchOn
}
