package forum

import (
	"context"
	"database/sql"
	"errors"
)

// GetDiagnosis returns the diagnosis with external id, or nil.
func (s *Session) GetDiagnosis(ctx context.Context, id string) (*Diagnosis, error) {
	var out *Diagnosis
	err := s.run(ctx, "get_diagnosis", func(ctx context.Context) error {
		key, err := Decode(id, DiagnosisPrefix)
		if err != nil {
			return err
		}
		d, err := scanDiagnosis(s.conn.QueryRowContext(ctx,
			`SELECT `+diagnosisCols+` FROM diagnoses WHERE diagnosis_id = $1`, key))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		out = d
		return nil
	})
	return out, err
}

// ListDiagnoses returns diagnoses matching f in ascending id order.
func (s *Session) ListDiagnoses(ctx context.Context, f DiagnosisFilter) ([]Diagnosis, error) {
	out := []Diagnosis{}
	err := s.run(ctx, "list_diagnoses", func(ctx context.Context) error {
		q, err := diagnosisListQuery(f)
		if err != nil {
			return err
		}
		rows, err := s.conn.QueryContext(ctx, q.SQL(), q.Args()...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			d, err := scanDiagnosis(rows)
			if err != nil {
				return err
			}
			out = append(out, *d)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateDiagnosis stores a diagnosis and returns its external id. The author
// must be a Doctor (ErrAuthorization); author and message must exist
// (ErrIntegrity). The role is checked before anything is written.
func (s *Session) CreateDiagnosis(ctx context.Context, nd NewDiagnosis) (string, error) {
	const op = "create_diagnosis"
	var out string
	err := s.run(ctx, op, func(ctx context.Context) error {
		msgKey, err := Decode(nd.MessageID, MessagePrefix)
		if err != nil {
			return err
		}
		return s.inTx(ctx, op, func(tx *sql.Tx) error {
			if err := requireDoctor(ctx, tx, nd.AuthorID); err != nil {
				return err
			}
			if err := requireMessage(ctx, tx, msgKey); err != nil {
				return err
			}

			var id int64
			err := tx.QueryRowContext(ctx, `
				INSERT INTO diagnoses (account_id, message_id, disease, description)
				VALUES ($1, $2, $3, $4)
				RETURNING diagnosis_id`,
				nd.AuthorID, msgKey, nd.Disease, nd.Description,
			).Scan(&id)
			if err != nil {
				return err
			}
			out = Encode(id, DiagnosisPrefix)
			return nil
		})
	})
	return out, err
}

// ModifyDiagnosis replaces the disease and description of a diagnosis. It
// returns the id and true, or false when the diagnosis does not exist.
func (s *Session) ModifyDiagnosis(ctx context.Context, id, disease, description string) (string, bool, error) {
	const op = "modify_diagnosis"
	var found bool
	err := s.run(ctx, op, func(ctx context.Context) error {
		key, err := Decode(id, DiagnosisPrefix)
		if err != nil {
			return err
		}
		return s.inTx(ctx, op, func(tx *sql.Tx) error {
			res, err := tx.ExecContext(ctx,
				`UPDATE diagnoses SET disease = $1, description = $2 WHERE diagnosis_id = $3`,
				disease, description, key)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			found = n > 0
			return nil
		})
	})
	if err != nil || !found {
		return "", false, err
	}
	return id, true, nil
}

// DeleteDiagnosis removes one diagnosis. Nothing depends on a diagnosis, so
// there is no cascade.
func (s *Session) DeleteDiagnosis(ctx context.Context, id string) (bool, error) {
	const op = "delete_diagnosis"
	var deleted bool
	err := s.run(ctx, op, func(ctx context.Context) error {
		key, err := Decode(id, DiagnosisPrefix)
		if err != nil {
			return err
		}
		return s.inTx(ctx, op, func(tx *sql.Tx) error {
			res, err := tx.ExecContext(ctx, `DELETE FROM diagnoses WHERE diagnosis_id = $1`, key)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			deleted = n > 0
			return nil
		})
	})
	return deleted, err
}

// ContainsDiagnosis reports whether the diagnosis exists.
func (s *Session) ContainsDiagnosis(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := s.run(ctx, "contains_diagnosis", func(ctx context.Context) error {
		key, err := Decode(id, DiagnosisPrefix)
		if err != nil {
			return err
		}
		ok, err = exists(ctx, s.conn, `SELECT 1 FROM diagnoses WHERE diagnosis_id = $1`, key)
		return err
	})
	return ok, err
}
