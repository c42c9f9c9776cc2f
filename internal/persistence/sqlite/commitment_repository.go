package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/meeting-lifecycle/internal/availability"
	"github.com/example/meeting-lifecycle/internal/persistence"
)

// CommitmentRepository implements persistence.CommitmentRepository using SQLite
type CommitmentRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewCommitmentRepository creates a new SQLite commitment repository
func NewCommitmentRepository(pool *ConnectionPool) *CommitmentRepository {
	return &CommitmentRepository{pool: pool, mapper: NewErrorMapper()}
}

// ReplaceCommitments swaps every commitment of an entity.
func (r *CommitmentRepository) ReplaceCommitments(ctx context.Context, entityID string, commitments []persistence.Commitment) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM commitments WHERE entity_id = ?`, entityID); err != nil {
			return fmt.Errorf("failed to clear commitments: %w", err)
		}
		for _, c := range commitments {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO commitments (entity_id, participant_id, starts_at, ends_at)
				VALUES (?, ?, ?, ?)`,
				entityID, c.ParticipantID, formatTime(c.Start), formatTime(c.End),
			)
			if err != nil {
				return r.mapper.MapError(err)
			}
		}
		return nil
	})
}

// DeleteCommitments removes the commitments of an entity.
func (r *CommitmentRepository) DeleteCommitments(ctx context.Context, entityID string) error {
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM commitments WHERE entity_id = ?`, entityID)
	if err != nil {
		return r.mapper.MapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// BusyIntervals implements availability.BusySource over commitments and
// active, successfully generated series instances.
func (r *CommitmentRepository) BusyIntervals(ctx context.Context, participantIDs []string, window availability.Interval) ([]availability.BusyInterval, error) {
	if len(participantIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(participantIDs)), ",")

	query := fmt.Sprintf(`
		SELECT participant_id, entity_id, starts_at, ends_at
		FROM commitments
		WHERE participant_id IN (%[1]s) AND starts_at < ? AND ends_at > ? AND ends_at > starts_at
		UNION ALL
		SELECT p.participant_id, i.series_id, i.starts_at, i.ends_at
		FROM series_instances i
		JOIN instance_participants p ON p.instance_id = i.id
		WHERE p.participant_id IN (%[1]s) AND i.retired_at IS NULL AND i.outcome = 'SUCCESS'
		  AND i.starts_at < ? AND i.ends_at > ? AND i.ends_at > i.starts_at`, placeholders)

	args := make([]any, 0, 2*len(participantIDs)+4)
	for _, id := range participantIDs {
		args = append(args, id)
	}
	args = append(args, formatTime(window.End), formatTime(window.Start))
	for _, id := range participantIDs {
		args = append(args, id)
	}
	args = append(args, formatTime(window.End), formatTime(window.Start))

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query busy intervals: %w", err)
	}
	defer rows.Close()

	var busy []availability.BusyInterval
	for rows.Next() {
		var (
			b          availability.BusyInterval
			start, end string
		)
		if err := rows.Scan(&b.ParticipantID, &b.EntityID, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan busy interval: %w", err)
		}
		if b.Start, err = parseTime(start); err != nil {
			return nil, err
		}
		if b.End, err = parseTime(end); err != nil {
			return nil, err
		}
		busy = append(busy, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate busy intervals: %w", err)
	}
	return busy, nil
}
