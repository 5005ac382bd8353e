package forum

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// GetAccount returns the full, restricted view of an account, or nil when
// username does not exist.
func (s *Session) GetAccount(ctx context.Context, username string) (*Account, error) {
	var out *Account
	err := s.run(ctx, "get_account", func(ctx context.Context) error {
		a, err := scanAccount(s.conn.QueryRowContext(ctx,
			`SELECT `+accountCols+` FROM `+accountFrom+` WHERE a.username = $1`, username), s.store.codec)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	return out, err
}

// GetPublicProfile returns only the public projection of an account, or nil.
func (s *Session) GetPublicProfile(ctx context.Context, username string) (*PublicProfile, error) {
	var out *PublicProfile
	err := s.run(ctx, "get_public_profile", func(ctx context.Context) error {
		p, err := scanPublicProfile(s.conn.QueryRowContext(ctx,
			`SELECT `+publicProfileCols+` FROM `+accountFrom+` WHERE a.username = $1`, username))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		out = &p
		return nil
	})
	return out, err
}

// ListAccounts returns every account's public profile ordered by account id.
func (s *Session) ListAccounts(ctx context.Context) ([]AccountSummary, error) {
	out := []AccountSummary{}
	err := s.run(ctx, "list_accounts", func(ctx context.Context) error {
		q := accountListQuery()
		rows, err := s.conn.QueryContext(ctx, q.SQL(), q.Args()...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			p, err := scanPublicProfile(rows)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateAccount inserts an account and its profile. It returns the username,
// or ErrConflict when the username is taken.
func (s *Session) CreateAccount(ctx context.Context, na NewAccount) (string, error) {
	const op = "create_account"
	err := s.run(ctx, op, func(ctx context.Context) error {
		if strings.TrimSpace(na.Username) == "" {
			return fmt.Errorf("%s: %w: empty username", op, ErrFormat)
		}
		if !na.Role.Valid() {
			return fmt.Errorf("%s: %w: unknown role %d", op, ErrFormat, int(na.Role))
		}
		hash, err := hashPassword(na.Password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		restricted, err := sealRestricted(s.store.codec, &na.Private)
		if err != nil {
			return err
		}

		return s.inTx(ctx, op, func(tx *sql.Tx) error {
			if _, taken, err := lookupAccountID(ctx, tx, na.Username); err != nil {
				return err
			} else if taken {
				return fmt.Errorf("%w: username %q already exists", ErrConflict, na.Username)
			}

			now := s.store.now().Unix()
			var id int64
			err := tx.QueryRowContext(ctx, `
				INSERT INTO accounts (username, pass_hash, reg_date, last_login, msg_count, role)
				VALUES ($1, $2, $3, $4, 0, $5)
				RETURNING account_id`,
				na.Username, hash, now, now, int(na.Role),
			).Scan(&id)
			if err != nil {
				return err
			}

			_, err = tx.ExecContext(ctx, `
				INSERT INTO account_profiles (
					account_id, speciality, picture,
					firstname, lastname, work_address, gender, age, email, phone, height, weight
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
				id, nullable(na.Public.Speciality), nullable(na.Public.Picture),
				nullable(restricted.FirstName), nullable(restricted.LastName), nullable(restricted.WorkAddress),
				nullable(restricted.Gender), nullable(restricted.Age), nullable(restricted.Email),
				nullable(restricted.Phone), nullable(restricted.Height), nullable(restricted.Weight),
			)
			return err
		})
	})
	if err != nil {
		return "", err
	}
	return na.Username, nil
}

// DeleteAccount removes an account together with its diagnoses, messages and
// profile in one transaction. It reports false when username did not exist.
func (s *Session) DeleteAccount(ctx context.Context, username string) (bool, error) {
	const op = "delete_account"
	var deleted bool
	err := s.run(ctx, op, func(ctx context.Context) error {
		return s.inTx(ctx, op, func(tx *sql.Tx) error {
			id, ok, err := lookupAccountID(ctx, tx, username)
			if err != nil || !ok {
				return err
			}
			n, err := deleteAccountPlan.run(ctx, tx, id)
			if err != nil {
				return err
			}
			deleted = n > 0
			return nil
		})
	})
	return deleted, err
}

// ModifyAccount applies the non-nil fields of both patches to the account's
// profile, creating the profile row if it is missing. It returns the username
// and true, or false when username does not exist.
func (s *Session) ModifyAccount(ctx context.Context, username string, public *PublicPatch, restricted *RestrictedPatch) (string, bool, error) {
	const op = "modify_account"
	var found bool
	err := s.run(ctx, op, func(ctx context.Context) error {
		sealed, err := sealRestricted(s.store.codec, restricted)
		if err != nil {
			return err
		}
		set := profileSetList(public, sealed)

		return s.inTx(ctx, op, func(tx *sql.Tx) error {
			id, ok, err := lookupAccountID(ctx, tx, username)
			if err != nil || !ok {
				return err
			}
			found = true
			if set.Len() == 0 {
				return nil
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO account_profiles (account_id) VALUES ($1) ON CONFLICT (account_id) DO NOTHING`, id); err != nil {
				return err
			}
			query, args := set.SQL("account_profiles", "account_id", id)
			_, err = tx.ExecContext(ctx, query, args...)
			return err
		})
	})
	if err != nil || !found {
		return "", false, err
	}
	return username, true, nil
}

// AccountID returns the internal key of username.
func (s *Session) AccountID(ctx context.Context, username string) (int64, bool, error) {
	var (
		id int64
		ok bool
	)
	err := s.run(ctx, "account_id", func(ctx context.Context) error {
		var err error
		id, ok, err = lookupAccountID(ctx, s.conn, username)
		return err
	})
	return id, ok, err
}

// ContainsAccount reports whether username exists.
func (s *Session) ContainsAccount(ctx context.Context, username string) (bool, error) {
	_, ok, err := s.AccountID(ctx, username)
	return ok, err
}

func profileSetList(public *PublicPatch, restricted *RestrictedPatch) *setList {
	set := &setList{}
	if !public.empty() {
		setOpt(set, "speciality", public.Speciality)
		setOpt(set, "picture", public.Picture)
	}
	if !restricted.empty() {
		setOpt(set, "firstname", restricted.FirstName)
		setOpt(set, "lastname", restricted.LastName)
		setOpt(set, "work_address", restricted.WorkAddress)
		setOpt(set, "gender", restricted.Gender)
		setOpt(set, "age", restricted.Age)
		setOpt(set, "email", restricted.Email)
		setOpt(set, "phone", restricted.Phone)
		setOpt(set, "height", restricted.Height)
		setOpt(set, "weight", restricted.Weight)
	}
	return set
}

func hashPassword(password string) (string, error) {
	if password == "" {
		return "", nil
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
