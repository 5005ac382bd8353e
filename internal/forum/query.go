package forum

import (
	"fmt"
	"strings"
)

// selectQuery accumulates ANDed predicates for one listing statement. Column
// names and operators come from this package only; caller values are always
// bound as arguments.
type selectQuery struct {
	table   string
	cols    string
	where   string
	args    []any
	idx     int
	orderBy string
	limit   *int
}

func newSelectQuery(table, cols string) *selectQuery {
	return &selectQuery{table: table, cols: cols, idx: 1}
}

// Idx returns the next available parameter index.
func (q *selectQuery) Idx() int { return q.idx }

// Add appends a raw predicate (without leading "AND") whose placeholders
// start at Idx().
func (q *selectQuery) Add(clause string, args ...any) {
	q.where += " AND " + clause
	q.args = append(q.args, args...)
	q.idx += len(args)
}

// Where appends "<column> <op> $n" bound to value.
func (q *selectQuery) Where(column, op string, value any) {
	q.Add(fmt.Sprintf("%s %s $%d", column, op, q.idx), value)
}

// OrderBy sets the ORDER BY clause (without the keyword).
func (q *selectQuery) OrderBy(orderBy string) {
	q.orderBy = orderBy
}

// Limit bounds the result. Nil or negative leaves it unbounded.
func (q *selectQuery) Limit(n *int) {
	if n != nil && *n >= 0 {
		q.limit = n
	} else {
		q.limit = nil
	}
}

// SQL returns the statement text.
func (q *selectQuery) SQL() string {
	s := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1%s", q.cols, q.table, q.where)
	if q.orderBy != "" {
		s += " ORDER BY " + q.orderBy
	}
	if q.limit != nil {
		s += fmt.Sprintf(" LIMIT $%d", q.idx)
	}
	return s
}

// Args returns the bind arguments matching SQL().
func (q *selectQuery) Args() []any {
	if q.limit == nil {
		return q.args
	}
	out := make([]any, len(q.args), len(q.args)+1)
	copy(out, q.args)
	return append(out, *q.limit)
}

func messageListQuery(f MessageFilter) *selectQuery {
	q := newSelectQuery("messages", messageSummaryCols)
	if f.Author != "" {
		q.Where("username", "=", f.Author)
	}
	if !f.Before.IsZero() {
		q.Where("timestamp", "<", f.Before.Unix())
	}
	if !f.After.IsZero() {
		q.Where("timestamp", ">", f.After.Unix())
	}
	q.OrderBy("timestamp DESC, message_id DESC")
	q.Limit(f.Limit)
	return q
}

func diagnosisListQuery(f DiagnosisFilter) (*selectQuery, error) {
	q := newSelectQuery("diagnoses", diagnosisCols)
	if f.MessageID != "" {
		id, err := Decode(f.MessageID, MessagePrefix)
		if err != nil {
			return nil, err
		}
		q.Where("message_id", "=", id)
	}
	if f.AuthorID != nil {
		q.Where("account_id", "=", *f.AuthorID)
	}
	q.OrderBy("diagnosis_id ASC")
	q.Limit(f.Limit)
	return q, nil
}

func accountListQuery() *selectQuery {
	q := newSelectQuery(accountFrom, publicProfileCols)
	q.OrderBy("a.account_id ASC")
	return q
}

// setList builds the SET clause of a partial UPDATE.
type setList struct {
	cols []string
	args []any
}

func (s *setList) Set(column string, value any) {
	s.args = append(s.args, value)
	s.cols = append(s.cols, fmt.Sprintf("%s = $%d", column, len(s.args)))
}

func (s *setList) Len() int { return len(s.cols) }

// SQL returns "UPDATE <table> SET ... WHERE <key> = $n" and its arguments.
func (s *setList) SQL(table, keyColumn string, key any) (string, []any) {
	args := make([]any, len(s.args), len(s.args)+1)
	copy(args, s.args)
	args = append(args, key)
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		table, strings.Join(s.cols, ", "), keyColumn, len(args)), args
}

// setOpt adds column to the list only when v is non-nil.
func setOpt[T any](s *setList, column string, v *T) {
	if v != nil {
		s.Set(column, *v)
	}
}

// nullable turns an optional value into a bind argument, nil for NULL.
func nullable[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}
