package member

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/membergate/core/logger"
)

const selectColumns = `user_id, username, name, joined_at, updated_at, country, status,
	total_allocation, total_investment, total_payout, wallet`

// Options tune record defaults.
type Options struct {
	// Country is the region label stored on insert.
	Country string
	// Now overrides the clock; used by tests.
	Now func() time.Time
}

// Store is the sqlx backed member repository. Queries use '?' placeholders and
// are rebound for the connected driver.
type Store struct {
	db      *sqlx.DB
	country string
	now     func() time.Time
}

// NewStore builds a Store over an open database handle.
func NewStore(db *sqlx.DB, opts Options) *Store {
	country := opts.Country
	if country == "" {
		country = DefaultCountry
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{db: db, country: country, now: now}
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// Get returns the record for id or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (Record, error) {
	var rec Record
	q := s.db.Rebind(`SELECT ` + selectColumns + ` FROM members WHERE user_id = ?`)
	if err := s.db.GetContext(ctx, &rec, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, storageErr("get", err)
	}
	return rec, nil
}

// Upsert creates the record on first contact and otherwise refreshes name and
// username only; join time and status are never touched.
func (s *Store) Upsert(ctx context.Context, p Profile) (Record, error) {
	ts := s.timestamp()
	q := s.db.Rebind(`INSERT INTO members (user_id, username, name, joined_at, updated_at, country, status, wallet)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			username = excluded.username,
			name = excluded.name,
			updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, q,
		p.ID, p.Username, p.DisplayName(), ts, ts, s.country, string(StatusUnverified), WalletUnset,
	); err != nil {
		return Record{}, storageErr("upsert", err)
	}
	rec, err := s.Get(ctx, p.ID)
	if err != nil {
		return Record{}, err
	}
	logger.Debug(ctx, "members", "member.upserted",
		slog.Int64("member_id", rec.ID),
		slog.String("member_status", string(rec.Status)),
	)
	return rec, nil
}

// SetStatus writes the onboarding status.
func (s *Store) SetStatus(ctx context.Context, id int64, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: status %q", ErrInvalidValue, status)
	}
	return s.update(ctx, "set_status", "status", id, string(status))
}

// Advance moves id to status only while its current status is one of from.
// It reports false when the record exists but was in another status.
func (s *Store) Advance(ctx context.Context, id int64, status Status, from ...Status) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("%w: status %q", ErrInvalidValue, status)
	}
	if len(from) == 0 {
		return false, nil
	}
	current := make([]string, 0, len(from))
	for _, st := range from {
		current = append(current, string(st))
	}
	q, args, err := sqlx.In(`UPDATE members SET status = ?, updated_at = ? WHERE user_id = ? AND status IN (?)`,
		string(status), s.timestamp(), id, current)
	if err != nil {
		return false, storageErr("advance", err)
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(q), args...)
	if err != nil {
		return false, storageErr("advance", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("advance", err)
	}
	if n == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	logger.Debug(ctx, "members", "member.advanced",
		slog.Int64("member_id", id),
		slog.String("member_status", string(status)),
	)
	return true, nil
}

// SetField applies an admin edit. Text fields are stored verbatim; the approval
// field is parsed into a status.
func (s *Store) SetField(ctx context.Context, id int64, field Field, value string) error {
	spec, ok := fieldSpecs[field]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	if field == FieldApproval {
		status, err := ParseApproval(value)
		if err != nil {
			return err
		}
		return s.SetStatus(ctx, id, status)
	}
	return s.update(ctx, "set_field", spec.column, id, value)
}

// update writes a single column; column always comes from fieldSpecs or a literal.
func (s *Store) update(ctx context.Context, op, column string, id int64, value string) error {
	q := s.db.Rebind(fmt.Sprintf(`UPDATE members SET %s = ?, updated_at = ? WHERE user_id = ?`, column))
	res, err := s.db.ExecContext(ctx, q, value, s.timestamp(), id)
	if err != nil {
		return storageErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr(op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	logger.Debug(ctx, "members", "member.updated",
		slog.Int64("member_id", id),
		slog.String("field", column),
	)
	return nil
}

// List returns every record, newest first.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	var out []Record
	q := `SELECT ` + selectColumns + ` FROM members ORDER BY joined_at DESC, user_id DESC`
	if err := s.db.SelectContext(ctx, &out, q); err != nil {
		return nil, storageErr("list", err)
	}
	return out, nil
}

// ListPending returns every record that is not approved, newest first.
func (s *Store) ListPending(ctx context.Context) ([]Record, error) {
	var out []Record
	q := s.db.Rebind(`SELECT ` + selectColumns + ` FROM members WHERE status <> ? ORDER BY joined_at DESC, user_id DESC`)
	if err := s.db.SelectContext(ctx, &out, q, string(StatusApproved)); err != nil {
		return nil, storageErr("list_pending", err)
	}
	return out, nil
}

// ApprovedIDs returns the identities of all approved members.
func (s *Store) ApprovedIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	q := s.db.Rebind(`SELECT user_id FROM members WHERE status = ? ORDER BY user_id`)
	if err := s.db.SelectContext(ctx, &ids, q, string(StatusApproved)); err != nil {
		return nil, storageErr("approved_ids", err)
	}
	return ids, nil
}

// Stats counts members in one statement so the totals are consistent.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var row struct {
		Total    int `db:"total"`
		Approved int `db:"approved"`
	}
	q := s.db.Rebind(`SELECT COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS approved
		FROM members`)
	if err := s.db.GetContext(ctx, &row, q, string(StatusApproved)); err != nil {
		return Stats{}, storageErr("stats", err)
	}
	return Stats{Total: row.Total, Approved: row.Approved, Pending: row.Total - row.Approved}, nil
}

// Ping checks database reachability for health probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
