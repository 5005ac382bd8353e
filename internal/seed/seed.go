// Package seed loads forum fixtures from YAML and inserts them through a
// forum Session.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/medforum/medforum/internal/forum"
)

// Fixture is the on-disk shape of a seed file.
type Fixture struct {
	Accounts  []AccountFixture   `yaml:"accounts"`
	Messages  []MessageFixture   `yaml:"messages"`
	Diagnoses []DiagnosisFixture `yaml:"diagnoses"`
}

type AccountFixture struct {
	Username    string  `yaml:"username"`
	Password    string  `yaml:"password"`
	Role        string  `yaml:"role"`
	Speciality  *string `yaml:"speciality"`
	Picture     *string `yaml:"picture"`
	FirstName   *string `yaml:"firstname"`
	LastName    *string `yaml:"lastname"`
	WorkAddress *string `yaml:"work_address"`
	Gender      *string `yaml:"gender"`
	Age         *int    `yaml:"age"`
	Email       *string `yaml:"email"`
	Phone       *string `yaml:"phone"`
	Height      *int    `yaml:"height"`
	Weight      *int    `yaml:"weight"`
}

// MessageFixture is a message with a symbolic Ref. ReplyTo names the Ref of
// an earlier message in the same file.
type MessageFixture struct {
	Ref     string `yaml:"ref"`
	Author  string `yaml:"author"`
	Title   string `yaml:"title"`
	Body    string `yaml:"body"`
	ReplyTo string `yaml:"reply_to"`
}

// DiagnosisFixture attaches a diagnosis by username to a message Ref.
type DiagnosisFixture struct {
	Author      string `yaml:"author"`
	Message     string `yaml:"message"`
	Disease     string `yaml:"disease"`
	Description string `yaml:"description"`
}

// Result reports what Apply inserted. Messages maps each Ref to its id.
type Result struct {
	Accounts  int
	Messages  map[string]string
	Diagnoses []string
}

// Load decodes a fixture. Unknown keys are rejected.
func Load(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	f := &Fixture{}
	if err := dec.Decode(f); err != nil {
		if errors.Is(err, io.EOF) {
			return f, nil
		}
		return nil, fmt.Errorf("parse seed fixture: %w", err)
	}
	return f, nil
}

// LoadFile reads and decodes the fixture at path.
func LoadFile(path string) (*Fixture, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("read seed file %s: %w", path, err)
	}
	return Load(bytes.NewReader(data))
}

// Validate checks references inside the fixture without touching storage.
func (f *Fixture) Validate() error {
	users := make(map[string]bool, len(f.Accounts))
	for i, a := range f.Accounts {
		if a.Username == "" {
			return fmt.Errorf("accounts[%d]: username is required", i)
		}
		if users[a.Username] {
			return fmt.Errorf("accounts[%d]: duplicate username %q", i, a.Username)
		}
		if _, err := forum.ParseRole(a.Role); err != nil {
			return fmt.Errorf("accounts[%d]: %w", i, err)
		}
		users[a.Username] = true
	}

	refs := make(map[string]bool, len(f.Messages))
	for i, m := range f.Messages {
		if m.Ref == "" {
			return fmt.Errorf("messages[%d]: ref is required", i)
		}
		if refs[m.Ref] {
			return fmt.Errorf("messages[%d]: duplicate ref %q", i, m.Ref)
		}
		if m.ReplyTo != "" && !refs[m.ReplyTo] {
			return fmt.Errorf("messages[%d]: reply_to %q does not name an earlier message", i, m.ReplyTo)
		}
		refs[m.Ref] = true
	}

	for i, d := range f.Diagnoses {
		if !refs[d.Message] {
			return fmt.Errorf("diagnoses[%d]: unknown message ref %q", i, d.Message)
		}
	}
	return nil
}

// Apply inserts accounts, then messages in file order, then diagnoses. Each
// insert commits on its own, so a failure leaves earlier rows in place.
func Apply(ctx context.Context, s *forum.Session, f *Fixture) (*Result, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	res := &Result{Messages: make(map[string]string, len(f.Messages))}

	for _, a := range f.Accounts {
		role, _ := forum.ParseRole(a.Role)
		_, err := s.CreateAccount(ctx, forum.NewAccount{
			Username: a.Username,
			Password: a.Password,
			Role:     role,
			Public: forum.PublicPatch{
				Speciality: a.Speciality,
				Picture:    a.Picture,
			},
			Private: forum.RestrictedPatch{
				FirstName:   a.FirstName,
				LastName:    a.LastName,
				WorkAddress: a.WorkAddress,
				Gender:      a.Gender,
				Age:         a.Age,
				Email:       a.Email,
				Phone:       a.Phone,
				Height:      a.Height,
				Weight:      a.Weight,
			},
		})
		if err != nil {
			return res, fmt.Errorf("seed account %q: %w", a.Username, err)
		}
		res.Accounts++
	}

	for _, m := range f.Messages {
		nm := forum.NewMessage{Title: m.Title, Body: m.Body, Author: m.Author}
		if m.ReplyTo != "" {
			nm.ReplyTo = res.Messages[m.ReplyTo]
		}
		id, err := s.CreateMessage(ctx, nm)
		if err != nil {
			return res, fmt.Errorf("seed message %q: %w", m.Ref, err)
		}
		res.Messages[m.Ref] = id
	}

	for i, d := range f.Diagnoses {
		authorID, ok, err := s.AccountID(ctx, d.Author)
		if err != nil {
			return res, fmt.Errorf("seed diagnoses[%d]: %w", i, err)
		}
		if !ok {
			return res, fmt.Errorf("seed diagnoses[%d]: %w: unknown author %q", i, forum.ErrIntegrity, d.Author)
		}
		id, err := s.CreateDiagnosis(ctx, forum.NewDiagnosis{
			AuthorID:    authorID,
			MessageID:   res.Messages[d.Message],
			Disease:     d.Disease,
			Description: d.Description,
		})
		if err != nil {
			return res, fmt.Errorf("seed diagnoses[%d]: %w", i, err)
		}
		res.Diagnoses = append(res.Diagnoses, id)
	}

	return res, nil
}
