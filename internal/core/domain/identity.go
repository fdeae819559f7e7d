package domain

import "time"

// Gender enumerates the accepted profile genders.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// Valid reports whether g is one of the accepted values.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// User mirrors the persisted customer account, including credential and lockout state.
// Hash fields never leave the service; use Public for outward representations.
type User struct {
	ID                 string
	FirstName          string
	LastName           string
	DOB                string
	Gender             Gender
	ContactNo          string
	Email              string
	PasswordHash       string
	SecurityQuestion   string
	SecurityAnswerHash string

	LoginAttempts int
	LockUntil     *time.Time

	RefreshTokenHash *string

	ResetOTPHash   *string
	ResetOTPExpiry *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName joins first and last name.
func (u User) DisplayName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Public strips every secret from the user.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:               u.ID,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		DOB:              u.DOB,
		Gender:           u.Gender,
		ContactNo:        u.ContactNo,
		Email:            u.Email,
		SecurityQuestion: u.SecurityQuestion,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

// Identity returns the request identity attached to authenticated calls.
func (u User) Identity() Identity {
	return Identity{ID: u.ID, Email: u.Email, Name: u.DisplayName()}
}

// PublicUser is the only user shape returned to clients.
type PublicUser struct {
	ID               string    `json:"id"`
	FirstName        string    `json:"firstName"`
	LastName         string    `json:"lastName"`
	DOB              string    `json:"dob"`
	Gender           Gender    `json:"gender"`
	ContactNo        string    `json:"contactNo"`
	Email            string    `json:"emailId"`
	SecurityQuestion string    `json:"securityQuestion"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Identity is what downstream handlers learn about the caller.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"emailId"`
	Name  string `json:"name"`
}

// PendingOTP is the reset code state taken off a user when it is verified.
type PendingOTP struct {
	Hash      string
	ExpiresAt time.Time
}

// LockoutState is the counter and lock left on a user after a failed login was recorded.
type LockoutState struct {
	LoginAttempts int
	LockUntil     *time.Time
}

// LockoutRule parameterises the failed-login counter update.
type LockoutRule struct {
	MaxAttempts int
	LockFor     time.Duration
}
