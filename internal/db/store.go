package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aimee/backend/internal/alert"
	"github.com/aimee/backend/internal/models"
)

// Store is the read side of the staffing database plus the approval audit
// table.
type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

const capabilitySelect = `
	SELECT o.operator_id, o.operator_name, l.location_name,
		b.business_category, b.business_name, p.process_category, p.process_name,
		COALESCE(opc.skill_level, 0)
	FROM operators o
		INNER JOIN operator_process_capabilities opc ON o.operator_id = opc.operator_id
		INNER JOIN locations l ON o.location_id = l.location_id
		INNER JOIN businesses b ON opc.business_id = b.business_id
		INNER JOIN processes p ON opc.business_id = p.business_id AND opc.process_id = p.process_id
	WHERE o.is_valid = 1`

func capabilityQuery(processes []string) (string, []any) {
	query := capabilitySelect
	var args []any
	if len(processes) > 0 {
		args = append(args, processes)
		query += fmt.Sprintf(" AND p.process_name = ANY($%d)", len(args))
	}
	query += " ORDER BY p.process_name, l.location_name, o.operator_id"
	return query, args
}

// Capabilities lists who can work where. An empty process list means all
// processes.
func (s *Store) Capabilities(ctx context.Context, processes []string) ([]models.CapabilityRecord, error) {
	query, args := capabilityQuery(processes)
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CapabilityRecord
	for rows.Next() {
		var r models.CapabilityRecord
		if err := rows.Scan(&r.PersonID, &r.PersonName, &r.Location, &r.BusinessCategory, &r.BusinessName, &r.ProcessCategory, &r.ProcessName, &r.SkillLevel); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Snapshots(ctx context.Context, limit int) ([]models.SnapshotRow, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT snapshot_time, total_waiting, processing, entry_count, correction_waiting
		FROM progress_snapshots
		ORDER BY snapshot_id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SnapshotRow
	for rows.Next() {
		var r models.SnapshotRow
		if err := rows.Scan(&r.SnapshotTime, &r.TotalWaiting, &r.Processing, &r.EntryCount, &r.CorrectionWaiting); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Locations(ctx context.Context) ([]models.Location, error) {
	rows, err := s.Pool.Query(ctx, `SELECT location_id::text, location_name FROM locations ORDER BY location_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Location
	for rows.Next() {
		var l models.Location
		if err := rows.Scan(&l.ID, &l.Name); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) Processes(ctx context.Context) ([]models.Process, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT DISTINCT b.business_category, b.business_name, p.process_category, p.process_name, p.priority
		FROM processes p
			INNER JOIN businesses b ON b.business_id = p.business_id
		ORDER BY p.priority DESC, p.process_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Process
	for rows.Next() {
		var (
			p        models.Process
			priority *int
		)
		if err := rows.Scan(&p.BusinessCategory, &p.BusinessName, &p.ProcessCategory, &p.ProcessName, &priority); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AlertObservations gathers the measured values the alert rules look at.
// Each source is queried independently; whatever succeeded is returned along
// with the joined errors of the rest.
func (s *Store) AlertObservations(ctx context.Context) ([]alert.Observation, error) {
	var (
		out  []alert.Observation
		errs []error
	)

	backlog, err := s.correctionBacklog(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("correction backlog: %w", err))
	}
	out = append(out, backlog...)

	var received int64
	if err := s.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM ss_receipts WHERE received_at >= date_trunc('day', NOW())
	`).Scan(&received); err != nil {
		errs = append(errs, fmt.Errorf("ss receipts: %w", err))
	} else {
		out = append(out, alert.Observation{Metric: "ss_received", Value: float64(received)})
	}

	long, err := s.longestAssignments(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("assignment minutes: %w", err))
	}
	out = append(out, long...)

	var entry1, entry2 int64
	if err := s.Pool.QueryRow(ctx, `
		SELECT COALESCE(entry1_count, 0), COALESCE(entry2_count, 0)
		FROM progress_snapshots
		ORDER BY snapshot_id DESC
		LIMIT 1
	`).Scan(&entry1, &entry2); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			errs = append(errs, fmt.Errorf("entry balance: %w", err))
		}
	} else {
		out = append(out, alert.Observation{Metric: "entry_balance_gap", Value: entryBalanceGap(entry1, entry2)})
	}

	return out, errors.Join(errs...)
}

func (s *Store) correctionBacklog(ctx context.Context) ([]alert.Observation, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT DISTINCT ON (l.location_name) l.location_name, ps.correction_waiting
		FROM progress_snapshots ps
			INNER JOIN locations l ON l.location_id = ps.location_id
		ORDER BY l.location_name, ps.snapshot_time DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []alert.Observation
	for rows.Next() {
		var (
			loc     string
			waiting int64
		)
		if err := rows.Scan(&loc, &waiting); err != nil {
			return nil, err
		}
		out = append(out, alert.Observation{Metric: "correction_backlog", Location: loc, Value: float64(waiting)})
	}
	return out, rows.Err()
}

func (s *Store) longestAssignments(ctx context.Context) ([]alert.Observation, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT l.location_name, MAX(EXTRACT(EPOCH FROM (NOW() - da.assigned_at)) / 60)::float8
		FROM daily_assignments da
			INNER JOIN operators o ON o.operator_id = da.operator_id
			INNER JOIN locations l ON l.location_id = o.location_id
		WHERE da.released_at IS NULL
		GROUP BY l.location_name
		ORDER BY l.location_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []alert.Observation
	for rows.Next() {
		var (
			loc     string
			minutes float64
		)
		if err := rows.Scan(&loc, &minutes); err != nil {
			return nil, err
		}
		out = append(out, alert.Observation{Metric: "assignment_minutes", Location: loc, Value: math.Round(minutes)})
	}
	return out, rows.Err()
}

// entryBalanceGap is the relative difference between the two entry passes.
func entryBalanceGap(entry1, entry2 int64) float64 {
	hi := max(entry1, entry2)
	if hi == 0 {
		return 0
	}
	diff := entry1 - entry2
	if diff < 0 {
		diff = -diff
	}
	return math.Round(float64(diff)/float64(hi)*100) / 100
}

func (s *Store) InsertApprovalHistory(ctx context.Context, rec models.ApprovalHistoryRecord) error {
	changes, err := json.Marshal(rec.Changes)
	if err != nil {
		return err
	}
	impact, err := json.Marshal(rec.Impact)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `
		INSERT INTO approval_history (
			suggestion_id, suggestion_type, changes, impact, reason, confidence_score,
			action_type, action_user, action_user_id, action_timestamp,
			feedback_reason, feedback_notes, execution_status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, rec.SuggestionID, rec.SuggestionType, changes, impact, rec.Reason, rec.ConfidenceScore,
		rec.ActionType, rec.ActionUser, rec.ActionUserID, rec.ActionTimestamp,
		rec.FeedbackReason, rec.FeedbackNotes, rec.ExecutionStatus)
	return err
}
