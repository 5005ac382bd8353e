package forum

import (
	"fmt"
	"time"

	"github.com/medforum/medforum/internal/platform/phi"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const accountFrom = `accounts a LEFT JOIN account_profiles p ON p.account_id = a.account_id`

const publicProfileCols = `a.account_id, a.username, a.reg_date, a.role, p.speciality, p.picture`

const accountCols = publicProfileCols + `, a.last_login, a.msg_count,
	p.firstname, p.lastname, p.work_address, p.gender, p.age, p.email, p.phone,
	p.height, p.weight, p.diagnosis_id`

const messageCols = `message_id, reply_to, title, body, account_id, username, views, timestamp`

const messageSummaryCols = `message_id, title, timestamp, username`

const diagnosisCols = `diagnosis_id, account_id, message_id, disease, description`

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func scanPublicProfile(row rowScanner) (PublicProfile, error) {
	var (
		p       PublicProfile
		regDate int64
		role    int
	)
	if err := row.Scan(&p.AccountID, &p.Username, &regDate, &role, &p.Speciality, &p.Picture); err != nil {
		return PublicProfile{}, err
	}
	p.RegisteredAt = unixTime(regDate)
	p.Role = Role(role)
	return p, nil
}

// scanAccount splits one joined account and profile row into its public and
// private projections, opening sealed restricted fields with codec.
func scanAccount(row rowScanner, codec *phi.Codec) (*Account, error) {
	var (
		a         Account
		pub       = &a.Public
		priv      = &a.Private
		regDate   int64
		lastLogin int64
		role      int
	)
	err := row.Scan(
		&pub.AccountID, &pub.Username, &regDate, &role, &pub.Speciality, &pub.Picture,
		&lastLogin, &a.MessageCount,
		&priv.FirstName, &priv.LastName, &priv.WorkAddress, &priv.Gender, &priv.Age, &priv.Email, &priv.Phone,
		&priv.Height, &priv.Weight, &priv.DiagnosisID,
	)
	if err != nil {
		return nil, err
	}

	pub.RegisteredAt = unixTime(regDate)
	pub.Role = Role(role)
	priv.AccountID = pub.AccountID

	a.ID = pub.AccountID
	a.Username = pub.Username
	a.RegisteredAt = pub.RegisteredAt
	a.LastLogin = unixTime(lastLogin)
	a.Role = pub.Role

	if err := openPrivate(codec, priv); err != nil {
		return nil, err
	}
	return &a, nil
}

// sealedFields lists the restricted columns encrypted at rest.
func sealedFields(p *PrivateProfile) []**string {
	return []**string{&p.WorkAddress, &p.Email, &p.Phone}
}

func openPrivate(codec *phi.Codec, p *PrivateProfile) error {
	for _, f := range sealedFields(p) {
		v, err := codec.Open(*f)
		if err != nil {
			return fmt.Errorf("open restricted profile: %w", err)
		}
		*f = v
	}
	return nil
}

// sealRestricted returns a copy of patch with its sealed fields encrypted.
func sealRestricted(codec *phi.Codec, patch *RestrictedPatch) (*RestrictedPatch, error) {
	if patch == nil {
		return nil, nil
	}
	out := *patch
	for _, f := range []**string{&out.WorkAddress, &out.Email, &out.Phone} {
		v, err := codec.Seal(*f)
		if err != nil {
			return nil, fmt.Errorf("seal restricted profile: %w", err)
		}
		*f = v
	}
	return &out, nil
}

func scanMessage(row rowScanner) (*Message, error) {
	var (
		m       Message
		id      int64
		replyTo *int64
		ts      int64
	)
	if err := row.Scan(&id, &replyTo, &m.Title, &m.Body, &m.AuthorID, &m.Author, &m.Views, &ts); err != nil {
		return nil, err
	}
	m.ID = Encode(id, MessagePrefix)
	m.ReplyTo = encodeOptional(replyTo, MessagePrefix)
	m.CreatedAt = unixTime(ts)
	return &m, nil
}

func scanMessageSummary(row rowScanner) (MessageSummary, error) {
	var (
		m  MessageSummary
		id int64
		ts int64
	)
	if err := row.Scan(&id, &m.Title, &ts, &m.Author); err != nil {
		return MessageSummary{}, err
	}
	m.ID = Encode(id, MessagePrefix)
	m.CreatedAt = unixTime(ts)
	return m, nil
}

func scanDiagnosis(row rowScanner) (*Diagnosis, error) {
	var (
		d         Diagnosis
		id, msgID int64
	)
	if err := row.Scan(&id, &d.AuthorID, &msgID, &d.Disease, &d.Description); err != nil {
		return nil, err
	}
	d.ID = Encode(id, DiagnosisPrefix)
	d.MessageID = Encode(msgID, MessagePrefix)
	return &d, nil
}
