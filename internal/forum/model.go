package forum

import (
	"fmt"
	"time"
)

// Role is fixed when an account is created.
type Role int

const (
	RolePatient Role = 0
	RoleDoctor  Role = 1
)

func (r Role) String() string {
	switch r {
	case RolePatient:
		return "patient"
	case RoleDoctor:
		return "doctor"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

// ParseRole accepts "patient" or "doctor".
func ParseRole(s string) (Role, error) {
	switch s {
	case "patient":
		return RolePatient, nil
	case "doctor":
		return RoleDoctor, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// -- Accounts --

// PublicProfile is the part of an account anyone may see.
type PublicProfile struct {
	AccountID    int64
	Username     string
	RegisteredAt time.Time
	Role         Role
	Speciality   *string
	Picture      *string
}

// PrivateProfile holds contact and biometric data. It must only be handed to
// callers authorised for restricted data.
type PrivateProfile struct {
	AccountID   int64
	FirstName   *string
	LastName    *string
	WorkAddress *string
	Gender      *string
	Age         *int
	Email       *string
	Phone       *string
	Height      *int
	Weight      *int
	DiagnosisID *int64 // legacy column, never written by this package
}

// Account is the full, restricted view of an account.
type Account struct {
	ID           int64
	Username     string
	RegisteredAt time.Time
	LastLogin    time.Time
	MessageCount int
	Role         Role
	Public       PublicProfile
	Private      PrivateProfile
}

// AccountSummary is a listing row; it only carries public fields.
type AccountSummary = PublicProfile

// NewAccount is the input of CreateAccount. Password may be empty, in which
// case no usable hash is stored.
type NewAccount struct {
	Username string
	Password string
	Role     Role
	Public   PublicPatch
	Private  RestrictedPatch
}

// PublicPatch lists public profile fields to change. Nil fields are left as is.
type PublicPatch struct {
	Speciality *string
	Picture    *string
}

func (p *PublicPatch) empty() bool {
	return p == nil || (p.Speciality == nil && p.Picture == nil)
}

// RestrictedPatch lists restricted profile fields to change. Nil fields are left as is.
type RestrictedPatch struct {
	FirstName   *string
	LastName    *string
	WorkAddress *string
	Gender      *string
	Age         *int
	Email       *string
	Phone       *string
	Height      *int
	Weight      *int
}

func (p *RestrictedPatch) empty() bool {
	return p == nil || (p.FirstName == nil && p.LastName == nil && p.WorkAddress == nil &&
		p.Gender == nil && p.Age == nil && p.Email == nil && p.Phone == nil &&
		p.Height == nil && p.Weight == nil)
}

// -- Messages --

// Message is the full projection of a stored message.
type Message struct {
	ID        string
	ReplyTo   *string
	Title     string
	Body      string
	AuthorID  int64
	Author    string
	Views     int
	CreatedAt time.Time
}

// MessageSummary is the reduced projection used by listings.
type MessageSummary struct {
	ID        string
	Title     string
	CreatedAt time.Time
	Author    string
}

// NewMessage is the input of CreateMessage. Author is a username; ReplyTo is
// an optional external message id.
type NewMessage struct {
	Title   string
	Body    string
	Author  string
	ReplyTo string
}

// MessageFilter narrows ListMessages. Zero values mean "no filter"; a nil or
// negative Limit means unbounded.
type MessageFilter struct {
	Author string
	Before time.Time
	After  time.Time
	Limit  *int
}

// -- Diagnoses --

// Diagnosis is a doctor's finding attached to a message.
type Diagnosis struct {
	ID          string
	AuthorID    int64
	MessageID   string
	Disease     string
	Description string
}

// NewDiagnosis is the input of CreateDiagnosis.
type NewDiagnosis struct {
	AuthorID    int64
	MessageID   string
	Disease     string
	Description string
}

// DiagnosisFilter narrows ListDiagnoses. MessageID is an external message id.
type DiagnosisFilter struct {
	MessageID string
	AuthorID  *int64
	Limit     *int
}

// Limit returns a pointer to n, for use in filters.
func Limit(n int) *int { return &n }
