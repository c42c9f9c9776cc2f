package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/meeting-lifecycle/internal/persistence"
)

// SeriesRepository implements persistence.SeriesRepository using SQLite
type SeriesRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewSeriesRepository creates a new SQLite series repository
func NewSeriesRepository(pool *ConnectionPool) *SeriesRepository {
	return &SeriesRepository{pool: pool, mapper: NewErrorMapper()}
}

// SaveGeneration writes the batch in one transaction.
func (r *SeriesRepository) SaveGeneration(ctx context.Context, batch persistence.GenerationBatch) (int, error) {
	retired := 0
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		retired = 0

		var active int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM series_instances WHERE series_id = ? AND retired_at IS NULL`,
			batch.SeriesID,
		).Scan(&active); err != nil {
			return fmt.Errorf("failed to count active instances: %w", err)
		}
		if batch.RequireNoActive && active > 0 {
			return persistence.ErrConflict
		}

		if batch.RetireAt != nil && active > 0 {
			result, err := tx.ExecContext(ctx,
				`UPDATE series_instances SET retired_at = ? WHERE series_id = ? AND retired_at IS NULL`,
				formatTime(*batch.RetireAt), batch.SeriesID,
			)
			if err != nil {
				return fmt.Errorf("failed to retire instances: %w", err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			retired = int(n)
		}

		for _, inst := range batch.Instances {
			if err := insertInstance(ctx, tx, inst); err != nil {
				return err
			}
		}
		for _, rec := range batch.Records {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO generation_records (id, series_id, instance_id, occurrence_date, outcome, message, recorded_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				rec.ID, rec.SeriesID, rec.InstanceID, formatDate(rec.Date), string(rec.Outcome), rec.Message, formatTime(rec.RecordedAt),
			)
			if err != nil {
				return r.mapper.MapError(err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return retired, nil
}

func insertInstance(ctx context.Context, tx *sql.Tx, inst persistence.Instance) error {
	mapper := NewErrorMapper()
	zone := inst.Start.Location().String()
	_, offset := inst.Start.Zone()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO series_instances (id, series_id, rule_id, rule_fingerprint, occurrence_date, starts_at, ends_at, time_zone, utc_offset, outcome, error_message, generated_at, retired_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.ID, inst.SeriesID, inst.RuleID, inst.RuleFingerprint,
		formatDate(inst.Date), formatTime(inst.Start), formatTime(inst.End), zone, offset,
		string(inst.Outcome), inst.ErrorMessage, formatTime(inst.GeneratedAt), nullableTime(inst.RetiredAt),
	)
	if err != nil {
		return mapper.MapError(err)
	}
	for _, participantID := range inst.ParticipantIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO instance_participants (instance_id, participant_id) VALUES (?, ?)`,
			inst.ID, participantID,
		); err != nil {
			return mapper.MapError(err)
		}
	}
	return nil
}

// ListInstances returns the series instances ordered by start then generation time.
// Start, End and Date come back in the zone the instance was generated in.
func (r *SeriesRepository) ListInstances(ctx context.Context, seriesID string, includeRetired bool) ([]persistence.Instance, error) {
	query := `
		SELECT id, series_id, rule_id, rule_fingerprint, occurrence_date, starts_at, ends_at, time_zone, utc_offset, outcome, error_message, generated_at, retired_at
		FROM series_instances
		WHERE series_id = ?`
	if !includeRetired {
		query += ` AND retired_at IS NULL`
	}
	query += ` ORDER BY starts_at, generated_at, id`

	rows, err := r.pool.DB().QueryContext(ctx, query, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}
	instances := make([]persistence.Instance, 0)
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		instances = append(instances, inst)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate instances: %w", err)
	}
	rows.Close()

	// Participants are loaded after the instance cursor is closed; the pool
	// holds a single connection.
	for i := range instances {
		ids, err := r.participants(ctx, instances[i].ID)
		if err != nil {
			return nil, err
		}
		instances[i].ParticipantIDs = ids
	}
	return instances, nil
}

func (r *SeriesRepository) participants(ctx context.Context, instanceID string) ([]string, error) {
	rows, err := r.pool.DB().QueryContext(ctx,
		`SELECT participant_id FROM instance_participants WHERE instance_id = ? ORDER BY participant_id`,
		instanceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanInstance(rows *sql.Rows) (persistence.Instance, error) {
	var (
		inst                                 persistence.Instance
		outcome, date, start, end, generated string
		zone                                 string
		offset                               int
		retired                              sql.NullString
	)
	if err := rows.Scan(&inst.ID, &inst.SeriesID, &inst.RuleID, &inst.RuleFingerprint,
		&date, &start, &end, &zone, &offset, &outcome, &inst.ErrorMessage, &generated, &retired); err != nil {
		return persistence.Instance{}, fmt.Errorf("failed to scan instance: %w", err)
	}
	inst.Outcome = persistence.Outcome(outcome)

	var err error
	if inst.Date, err = parseDate(date); err != nil {
		return persistence.Instance{}, err
	}
	if inst.Start, err = parseTime(start); err != nil {
		return persistence.Instance{}, err
	}
	if inst.End, err = parseTime(end); err != nil {
		return persistence.Instance{}, err
	}
	loc := loadZone(zone, offset)
	y, m, d := inst.Date.Date()
	inst.Date = time.Date(y, m, d, 0, 0, 0, 0, loc)
	inst.Start = inst.Start.In(loc)
	inst.End = inst.End.In(loc)
	if inst.GeneratedAt, err = parseTime(generated); err != nil {
		return persistence.Instance{}, err
	}
	if retired.Valid {
		at, err := parseTime(retired.String)
		if err != nil {
			return persistence.Instance{}, err
		}
		inst.RetiredAt = &at
	}
	return inst, nil
}

// ListGenerationRecords returns audit records for a series ordered by recording time.
func (r *SeriesRepository) ListGenerationRecords(ctx context.Context, seriesID string) ([]persistence.GenerationRecord, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, series_id, instance_id, occurrence_date, outcome, message, recorded_at
		FROM generation_records
		WHERE series_id = ?
		ORDER BY recorded_at, occurrence_date, id`,
		seriesID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query generation records: %w", err)
	}
	defer rows.Close()

	records := make([]persistence.GenerationRecord, 0)
	for rows.Next() {
		var (
			rec                     persistence.GenerationRecord
			date, outcome, recorded string
		)
		if err := rows.Scan(&rec.ID, &rec.SeriesID, &rec.InstanceID, &date, &outcome, &rec.Message, &recorded); err != nil {
			return nil, fmt.Errorf("failed to scan generation record: %w", err)
		}
		rec.Outcome = persistence.Outcome(outcome)
		if rec.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		if rec.RecordedAt, err = parseTime(recorded); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate generation records: %w", err)
	}
	return records, nil
}

// PurgeGenerationRecords deletes records recorded strictly before the cutoff.
func (r *SeriesRepository) PurgeGenerationRecords(ctx context.Context, before time.Time) (int, error) {
	result, err := r.pool.DB().ExecContext(ctx,
		`DELETE FROM generation_records WHERE recorded_at < ?`,
		formatTime(before),
	)
	if err != nil {
		return 0, r.mapper.MapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}
