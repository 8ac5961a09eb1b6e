package store

import "time"

type User struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	PasswordHash      string    `json:"-"` // Do not expose this in JSON responses
	InjuryType        string    `json:"injury_type,omitempty"`
	InjuryDescription string    `json:"injury_description,omitempty"`
	FitnessGoal       string    `json:"fitness_goal,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Progress is one self-reported log entry. Entries are immutable once
// written; pain is on a 0-10 scale, mobility and strength are
// percentage-like ints. None of the three is validated at the write
// path, matching the logging client's contract.
type Progress struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	PainLevel int    `json:"painLevel"`
	Mobility  int    `json:"mobility"`
	Strength  int    `json:"strength"`
	Date      string `json:"date"` // YYYY-MM-DD
}
