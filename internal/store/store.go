// Barhound - Bar Inventory Restock Intelligence
// Copyright 2026 Dan M. (barhound)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/barhound/barhound

// Package store persists recommendation runs, operator actions, and per-item
// preferences in SQLite.
//
// Run writes are transactional: either the run row and every recommendation
// row exist, or none do. Preference upserts are last-write-wins per item and
// serialized by SQLite's row locking. Transient busy/locked errors get a
// bounded retry with backoff instead of failing immediately.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/barhound/barhound/internal/agent"
	"github.com/barhound/barhound/internal/inventory"
	"github.com/barhound/barhound/internal/logging"
	"github.com/barhound/barhound/internal/policy"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS agent_runs (
	run_id                TEXT PRIMARY KEY,
	created_at            INTEGER NOT NULL,
	usage_column          TEXT NOT NULL,
	smoothing_level       REAL NOT NULL,
	trend_threshold       REAL NOT NULL,
	total_items           INTEGER NOT NULL,
	items_to_order        INTEGER NOT NULL,
	total_qty_recommended INTEGER NOT NULL,
	summary               TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS agent_recommendations (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id          TEXT NOT NULL REFERENCES agent_runs(run_id),
	position        INTEGER NOT NULL,
	item_id         TEXT NOT NULL,
	vendor          TEXT NOT NULL,
	category        TEXT NOT NULL,
	on_hand         REAL NOT NULL,
	avg_usage       REAL NOT NULL,
	weeks_on_hand   REAL NOT NULL,
	target_weeks    REAL NOT NULL,
	recommended_qty INTEGER NOT NULL,
	reason_codes    TEXT NOT NULL,
	confidence      TEXT NOT NULL,
	notes           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_recommendations_run ON agent_recommendations(run_id, position);
CREATE INDEX IF NOT EXISTS idx_recommendations_item ON agent_recommendations(item_id);

CREATE TABLE IF NOT EXISTS agent_actions (
	id              TEXT PRIMARY KEY,
	run_id          TEXT NOT NULL REFERENCES agent_runs(run_id),
	item_id         TEXT NOT NULL,
	recommended_qty INTEGER NOT NULL,
	approved_qty    INTEGER NOT NULL,
	override_reason TEXT NOT NULL DEFAULT '',
	timestamp       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_actions_run ON agent_actions(run_id);
CREATE INDEX IF NOT EXISTS idx_actions_item ON agent_actions(item_id);

CREATE TABLE IF NOT EXISTS user_preferences (
	item_id                 TEXT PRIMARY KEY,
	target_weeks_override   REAL,
	never_order             INTEGER NOT NULL DEFAULT 0,
	preferred_case_rounding INTEGER,
	notes                   TEXT NOT NULL DEFAULT '',
	last_updated            INTEGER NOT NULL
);
`

// Retry policy for transient lock contention.
const (
	maxAttempts  = 5
	retryBackoff = 50 * time.Millisecond
)

// Store is a SQLite-backed run and preference store.
type Store struct {
	db     *sql.DB
	now    func() time.Time
	logger zerolog.Logger
}

var _ agent.Store = (*Store)(nil)

// Open opens (creating if needed) the SQLite database at path and applies
// the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store path is required")
	}

	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(ON)" +
		"&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{
		db:     db,
		now:    time.Now,
		logger: logging.With().Str("component", "store").Logger(),
	}, nil
}

// Close closes the underlying database. Nil-safe so callers can defer it.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// transient reports whether the error is SQLite lock contention worth
// retrying.
func transient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// withRetry runs fn up to maxAttempts times, backing off exponentially on
// transient lock errors. Non-transient errors return immediately.
func (s *Store) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(); err == nil || !transient(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}
		delay := retryBackoff << (attempt - 1)
		s.logger.Warn().
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("database busy, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("after %d attempts: %w", maxAttempts, err)
}

// inTx runs fn inside a transaction, rolling back on error.
func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return s.withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

// SaveRun persists the run header and all its recommendations atomically.
func (s *Store) SaveRun(ctx context.Context, run *agent.Run) error {
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO agent_runs
				(run_id, created_at, usage_column, smoothing_level, trend_threshold,
				 total_items, items_to_order, total_qty_recommended, summary)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.CreatedAt.UnixMilli(), string(run.UsageColumn),
			run.SmoothingLevel, run.TrendThreshold,
			run.Summary.TotalItems, run.Summary.ItemsToOrder, run.Summary.TotalQty,
			string(summary))
		if err != nil {
			return fmt.Errorf("inserting run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO agent_recommendations
				(run_id, position, item_id, vendor, category, on_hand, avg_usage,
				 weeks_on_hand, target_weeks, recommended_qty, reason_codes,
				 confidence, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing recommendation insert: %w", err)
		}
		defer stmt.Close()

		for i := range run.Recommendations {
			rec := &run.Recommendations[i]
			codes, err := json.Marshal(rec.ReasonCodes)
			if err != nil {
				return fmt.Errorf("encoding reason codes for %s: %w", rec.ItemID, err)
			}
			if _, err := stmt.ExecContext(ctx,
				run.RunID, i, rec.ItemID, rec.Vendor, string(rec.Category),
				rec.OnHand, rec.AvgUsage, rec.WeeksOnHand, rec.TargetWeeks,
				rec.RecommendedQty, string(codes), string(rec.Confidence),
				rec.Notes); err != nil {
				return fmt.Errorf("inserting recommendation for %s: %w", rec.ItemID, err)
			}
		}
		return nil
	})
}

// SaveUserActions appends operator decisions for a run. Existing rows are
// never modified. Missing IDs and timestamps are filled in.
func (s *Store) SaveUserActions(ctx context.Context, runID string, actions []agent.UserAction) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO agent_actions
				(id, run_id, item_id, recommended_qty, approved_qty, override_reason, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing action insert: %w", err)
		}
		defer stmt.Close()

		for _, a := range actions {
			id := a.ID
			if id == "" {
				id = uuid.NewString()
			}
			ts := a.Timestamp
			if ts.IsZero() {
				ts = s.now()
			}
			if _, err := stmt.ExecContext(ctx,
				id, runID, a.ItemID, a.RecommendedQty, a.ApprovedQty,
				a.OverrideReason, ts.UnixMilli()); err != nil {
				return fmt.Errorf("inserting action for %s: %w", a.ItemID, err)
			}
		}
		return nil
	})
}

// Preferences returns the full per-item preference snapshot.
func (s *Store) Preferences(ctx context.Context) (map[string]policy.Preference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, target_weeks_override, never_order,
		       preferred_case_rounding, notes, last_updated
		FROM user_preferences`)
	if err != nil {
		return nil, fmt.Errorf("querying preferences: %w", err)
	}
	defer rows.Close()

	prefs := make(map[string]policy.Preference)
	for rows.Next() {
		pref, err := scanPreference(rows)
		if err != nil {
			return nil, err
		}
		prefs[pref.ItemID] = pref
	}
	return prefs, rows.Err()
}

// Preference returns one item's preference. ok is false when none is stored.
func (s *Store) Preference(ctx context.Context, itemID string) (policy.Preference, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT item_id, target_weeks_override, never_order,
		       preferred_case_rounding, notes, last_updated
		FROM user_preferences WHERE item_id = ?`, itemID)

	pref, err := scanPreference(row)
	if errors.Is(err, sql.ErrNoRows) {
		return policy.Preference{}, false, nil
	}
	if err != nil {
		return policy.Preference{}, false, err
	}
	return pref, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPreference(row rowScanner) (policy.Preference, error) {
	var (
		pref     policy.Preference
		override sql.NullFloat64
		rounding sql.NullBool
		never    int
		updated  int64
	)
	if err := row.Scan(&pref.ItemID, &override, &never, &rounding, &pref.Notes, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return policy.Preference{}, err
		}
		return policy.Preference{}, fmt.Errorf("scanning preference: %w", err)
	}
	if override.Valid {
		pref.TargetWeeksOverride = &override.Float64
	}
	if rounding.Valid {
		pref.PreferredCaseRounding = &rounding.Bool
	}
	pref.NeverOrder = never != 0
	pref.LastUpdated = time.UnixMilli(updated).UTC()
	return pref, nil
}

// PreferenceUpdate names the fields to change on upsert. Nil fields keep
// their stored value.
type PreferenceUpdate struct {
	TargetWeeksOverride   *float64
	NeverOrder            *bool
	PreferredCaseRounding *bool
	Notes                 *string
}

// UpsertPreference inserts or updates one item's preference, bumping
// last_updated. Concurrent writers to the same item are serialized by the
// database; the last commit wins.
func (s *Store) UpsertPreference(ctx context.Context, itemID string, update PreferenceUpdate) (policy.Preference, error) {
	var result policy.Preference
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT item_id, target_weeks_override, never_order,
			       preferred_case_rounding, notes, last_updated
			FROM user_preferences WHERE item_id = ?`, itemID)

		pref, err := scanPreference(row)
		if errors.Is(err, sql.ErrNoRows) {
			pref = policy.Preference{ItemID: itemID}
		} else if err != nil {
			return err
		}

		if update.TargetWeeksOverride != nil {
			pref.TargetWeeksOverride = update.TargetWeeksOverride
		}
		if update.NeverOrder != nil {
			pref.NeverOrder = *update.NeverOrder
		}
		if update.PreferredCaseRounding != nil {
			pref.PreferredCaseRounding = update.PreferredCaseRounding
		}
		if update.Notes != nil {
			pref.Notes = *update.Notes
		}
		pref.LastUpdated = s.now().UTC()

		var override sql.NullFloat64
		if pref.TargetWeeksOverride != nil {
			override = sql.NullFloat64{Float64: *pref.TargetWeeksOverride, Valid: true}
		}
		var rounding sql.NullBool
		if pref.PreferredCaseRounding != nil {
			rounding = sql.NullBool{Bool: *pref.PreferredCaseRounding, Valid: true}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO user_preferences
				(item_id, target_weeks_override, never_order, preferred_case_rounding, notes, last_updated)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(item_id) DO UPDATE SET
				target_weeks_override = excluded.target_weeks_override,
				never_order = excluded.never_order,
				preferred_case_rounding = excluded.preferred_case_rounding,
				notes = excluded.notes,
				last_updated = excluded.last_updated`,
			itemID, override, boolToInt(pref.NeverOrder), rounding,
			pref.Notes, pref.LastUpdated.UnixMilli())
		if err != nil {
			return fmt.Errorf("upserting preference for %s: %w", itemID, err)
		}
		result = pref
		return nil
	})
	return result, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// RunHeader is the run-level row without its recommendations.
type RunHeader struct {
	RunID        string                `json:"run_id"`
	CreatedAt    time.Time             `json:"created_at"`
	UsageColumn  inventory.UsageColumn `json:"usage_column"`
	TotalItems   int                   `json:"total_items"`
	ItemsToOrder int                   `json:"items_to_order"`
	TotalQty     int                   `json:"total_qty"`
}

// RecentRuns returns up to limit run headers, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunHeader, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, created_at, usage_column, total_items, items_to_order, total_qty_recommended
		FROM agent_runs ORDER BY created_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	headers := make([]RunHeader, 0, limit)
	for rows.Next() {
		var (
			h  RunHeader
			ts int64
		)
		if err := rows.Scan(&h.RunID, &ts, &h.UsageColumn, &h.TotalItems, &h.ItemsToOrder, &h.TotalQty); err != nil {
			return nil, fmt.Errorf("scanning run header: %w", err)
		}
		h.CreatedAt = time.UnixMilli(ts).UTC()
		headers = append(headers, h)
	}
	return headers, rows.Err()
}

// RunDetail loads a full run, including recommendations in their persisted
// order and the derived recount list.
func (s *Store) RunDetail(ctx context.Context, runID string) (*agent.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, created_at, usage_column, smoothing_level, trend_threshold, summary
		FROM agent_runs WHERE run_id = ?`, runID)

	var (
		run     agent.Run
		ts      int64
		summary string
	)
	err := row.Scan(&run.RunID, &ts, &run.UsageColumn, &run.SmoothingLevel, &run.TrendThreshold, &summary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	run.CreatedAt = time.UnixMilli(ts).UTC()
	if err := json.Unmarshal([]byte(summary), &run.Summary); err != nil {
		return nil, fmt.Errorf("decoding summary: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, vendor, category, on_hand, avg_usage, weeks_on_hand,
		       target_weeks, recommended_qty, reason_codes, confidence, notes
		FROM agent_recommendations WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying recommendations: %w", err)
	}
	defer rows.Close()

	run.ItemsNeedingRecount = make([]string, 0)
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		run.Recommendations = append(run.Recommendations, rec)
		if rec.NeedsRecount() {
			run.ItemsNeedingRecount = append(run.ItemsNeedingRecount, rec.ItemID)
		}
	}
	return &run, rows.Err()
}

func scanRecommendation(rows *sql.Rows) (policy.Recommendation, error) {
	var (
		rec   policy.Recommendation
		codes string
	)
	if err := rows.Scan(&rec.ItemID, &rec.Vendor, &rec.Category, &rec.OnHand,
		&rec.AvgUsage, &rec.WeeksOnHand, &rec.TargetWeeks, &rec.RecommendedQty,
		&codes, &rec.Confidence, &rec.Notes); err != nil {
		return policy.Recommendation{}, fmt.Errorf("scanning recommendation: %w", err)
	}
	if err := json.Unmarshal([]byte(codes), &rec.ReasonCodes); err != nil {
		return policy.Recommendation{}, fmt.Errorf("decoding reason codes: %w", err)
	}
	return rec, nil
}

// Actions returns the operator actions recorded for a run, oldest first.
func (s *Store) Actions(ctx context.Context, runID string) ([]agent.UserAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, item_id, recommended_qty, approved_qty, override_reason, timestamp
		FROM agent_actions WHERE run_id = ? ORDER BY timestamp, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying actions: %w", err)
	}
	defer rows.Close()
	return scanActions(rows)
}

// ItemHistoryEntry pairs one past recommendation for an item with the
// operator action taken on it, if any.
type ItemHistoryEntry struct {
	RunID          string                `json:"run_id"`
	CreatedAt      time.Time             `json:"created_at"`
	Recommendation policy.Recommendation `json:"recommendation"`
	Action         *agent.UserAction     `json:"action,omitempty"`
}

// ItemHistory returns an item's past recommendations, newest run first, each
// joined with the operator action from the same run when one exists.
func (s *Store) ItemHistory(ctx context.Context, itemID string, limit int) ([]ItemHistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.run_id, r.created_at,
		       rec.item_id, rec.vendor, rec.category, rec.on_hand, rec.avg_usage,
		       rec.weeks_on_hand, rec.target_weeks, rec.recommended_qty,
		       rec.reason_codes, rec.confidence, rec.notes
		FROM agent_recommendations rec
		JOIN agent_runs r ON r.run_id = rec.run_id
		WHERE rec.item_id = ?
		ORDER BY r.created_at DESC, r.run_id LIMIT ?`, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying item history: %w", err)
	}
	defer rows.Close()

	entries := make([]ItemHistoryEntry, 0, limit)
	for rows.Next() {
		var (
			entry ItemHistoryEntry
			ts    int64
			rec   policy.Recommendation
			codes string
		)
		if err := rows.Scan(&entry.RunID, &ts,
			&rec.ItemID, &rec.Vendor, &rec.Category, &rec.OnHand, &rec.AvgUsage,
			&rec.WeeksOnHand, &rec.TargetWeeks, &rec.RecommendedQty,
			&codes, &rec.Confidence, &rec.Notes); err != nil {
			return nil, fmt.Errorf("scanning item history: %w", err)
		}
		if err := json.Unmarshal([]byte(codes), &rec.ReasonCodes); err != nil {
			return nil, fmt.Errorf("decoding reason codes: %w", err)
		}
		entry.CreatedAt = time.UnixMilli(ts).UTC()
		entry.Recommendation = rec
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range entries {
		actions, err := s.itemActions(ctx, entries[i].RunID, itemID)
		if err != nil {
			return nil, err
		}
		if len(actions) > 0 {
			last := actions[len(actions)-1]
			entries[i].Action = &last
		}
	}
	return entries, nil
}

func (s *Store) itemActions(ctx context.Context, runID, itemID string) ([]agent.UserAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, item_id, recommended_qty, approved_qty, override_reason, timestamp
		FROM agent_actions WHERE run_id = ? AND item_id = ? ORDER BY timestamp, id`, runID, itemID)
	if err != nil {
		return nil, fmt.Errorf("querying item actions: %w", err)
	}
	defer rows.Close()
	return scanActions(rows)
}

func scanActions(rows *sql.Rows) ([]agent.UserAction, error) {
	var actions []agent.UserAction
	for rows.Next() {
		var (
			a  agent.UserAction
			ts int64
		)
		if err := rows.Scan(&a.ID, &a.RunID, &a.ItemID, &a.RecommendedQty,
			&a.ApprovedQty, &a.OverrideReason, &ts); err != nil {
			return nil, fmt.Errorf("scanning action: %w", err)
		}
		a.Timestamp = time.UnixMilli(ts).UTC()
		actions = append(actions, a)
	}
	return actions, rows.Err()
}
