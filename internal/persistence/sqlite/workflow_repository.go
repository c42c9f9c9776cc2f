package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/example/meeting-lifecycle/internal/persistence"
	"github.com/example/meeting-lifecycle/internal/workflow"
)

// WorkflowRepository implements persistence.WorkflowRepository using SQLite
type WorkflowRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewWorkflowRepository creates a new SQLite workflow repository
func NewWorkflowRepository(pool *ConnectionPool) *WorkflowRepository {
	return &WorkflowRepository{pool: pool, mapper: NewErrorMapper()}
}

// SaveDefinition creates or replaces a definition together with its steps.
func (r *WorkflowRepository) SaveDefinition(ctx context.Context, def workflow.Definition) error {
	config := def.Config
	if config == nil {
		config = map[string]string{}
	}
	encoded, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode definition config: %w", err)
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO workflow_definitions (id, name, mandatory, config, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				mandatory = excluded.mandatory,
				config = excluded.config,
				updated_at = excluded.updated_at`,
			def.ID, def.Name, boolToInt(def.Mandatory), string(encoded), formatTime(def.UpdatedAt),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM workflow_steps WHERE definition_id = ?`, def.ID); err != nil {
			return fmt.Errorf("failed to clear steps: %w", err)
		}
		for _, step := range def.Steps {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO workflow_steps (definition_id, step_index, name, validator_id, notify)
				VALUES (?, ?, ?, ?, ?)`,
				def.ID, step.Index, step.Name, step.ValidatorID, boolToInt(step.Notify),
			)
			if err != nil {
				return r.mapper.MapError(err)
			}
		}
		return nil
	})
}

// GetDefinition retrieves a definition by ID.
func (r *WorkflowRepository) GetDefinition(ctx context.Context, id string) (workflow.Definition, error) {
	var (
		def       workflow.Definition
		mandatory int
		config    string
		updatedAt string
	)
	err := r.pool.DB().QueryRowContext(ctx,
		`SELECT id, name, mandatory, config, updated_at FROM workflow_definitions WHERE id = ?`, id,
	).Scan(&def.ID, &def.Name, &mandatory, &config, &updatedAt)
	if err != nil {
		return workflow.Definition{}, r.mapper.MapError(err)
	}
	def.Mandatory = mandatory != 0
	if def.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return workflow.Definition{}, err
	}
	if err := decodeConfig(config, &def); err != nil {
		return workflow.Definition{}, err
	}
	if def.Steps, err = r.steps(ctx, def.ID); err != nil {
		return workflow.Definition{}, err
	}
	return def, nil
}

// ListDefinitions returns all definitions ordered by ID.
func (r *WorkflowRepository) ListDefinitions(ctx context.Context) ([]workflow.Definition, error) {
	rows, err := r.pool.DB().QueryContext(ctx,
		`SELECT id, name, mandatory, config, updated_at FROM workflow_definitions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query definitions: %w", err)
	}
	defs := make([]workflow.Definition, 0)
	for rows.Next() {
		var (
			def       workflow.Definition
			mandatory int
			config    string
			updatedAt string
		)
		if err := rows.Scan(&def.ID, &def.Name, &mandatory, &config, &updatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}
		def.Mandatory = mandatory != 0
		if def.UpdatedAt, err = parseTime(updatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		if err := decodeConfig(config, &def); err != nil {
			rows.Close()
			return nil, err
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate definitions: %w", err)
	}
	rows.Close()

	for i := range defs {
		if defs[i].Steps, err = r.steps(ctx, defs[i].ID); err != nil {
			return nil, err
		}
	}
	return defs, nil
}

func decodeConfig(raw string, def *workflow.Definition) error {
	if raw == "" || raw == "{}" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &def.Config); err != nil {
		return fmt.Errorf("failed to decode definition config: %w", err)
	}
	return nil
}

func (r *WorkflowRepository) steps(ctx context.Context, definitionID string) ([]workflow.Step, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT step_index, name, validator_id, notify
		FROM workflow_steps
		WHERE definition_id = ?
		ORDER BY step_index`,
		definitionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	var steps []workflow.Step
	for rows.Next() {
		var (
			step   workflow.Step
			notify int
		)
		if err := rows.Scan(&step.Index, &step.Name, &step.ValidatorID, &notify); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		step.Notify = notify != 0
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// stepRow is the JSON form of a step in workflow_runs.steps.
type stepRow struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	ValidatorID string `json:"validator_id"`
	Notify      bool   `json:"notify"`
}

func encodeSteps(steps []workflow.Step) (string, error) {
	rows := make([]stepRow, 0, len(steps))
	for _, s := range steps {
		rows = append(rows, stepRow{Index: s.Index, Name: s.Name, ValidatorID: s.ValidatorID, Notify: s.Notify})
	}
	encoded, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("failed to encode run steps: %w", err)
	}
	return string(encoded), nil
}

func decodeSteps(raw string) ([]workflow.Step, error) {
	var rows []stepRow
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, fmt.Errorf("failed to decode run steps: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	steps := make([]workflow.Step, 0, len(rows))
	for _, s := range rows {
		steps = append(steps, workflow.Step{Index: s.Index, Name: s.Name, ValidatorID: s.ValidatorID, Notify: s.Notify})
	}
	return steps, nil
}

// CreateRun stores a new run with its step snapshot. The partial unique index
// on in-progress runs turns a second active run for the same kind and id into
// persistence.ErrConflict.
func (r *WorkflowRepository) CreateRun(ctx context.Context, run workflow.Run) error {
	steps, err := encodeSteps(run.Steps)
	if err != nil {
		return err
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO workflow_runs (id, definition_id, target_kind, target_id, requester_id, steps, current_step, status, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.DefinitionID, string(run.Target.Kind), run.Target.ID, run.RequesterID, steps,
			run.CurrentStep, string(run.Status), run.Version, formatTime(run.CreatedAt), formatTime(run.UpdatedAt),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return insertDecisions(ctx, tx, run.ID, run.History, 0)
	})
}

// UpdateRun replaces a run when its stored version equals expectedVersion.
// History is append-only, so only decisions beyond the stored count are written.
func (r *WorkflowRepository) UpdateRun(ctx context.Context, run workflow.Run, expectedVersion int) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE workflow_runs
			SET current_step = ?, status = ?, version = ?, updated_at = ?
			WHERE id = ? AND version = ?`,
			run.CurrentStep, string(run.Status), run.Version, formatTime(run.UpdatedAt), run.ID, expectedVersion,
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n == 0 {
			var exists int
			err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM workflow_runs WHERE id = ?`, run.ID).Scan(&exists)
			if err != nil {
				return fmt.Errorf("failed to check run: %w", err)
			}
			if exists == 0 {
				return persistence.ErrNotFound
			}
			return persistence.ErrConflict
		}

		var stored int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM workflow_decisions WHERE run_id = ?`, run.ID).Scan(&stored); err != nil {
			return fmt.Errorf("failed to count decisions: %w", err)
		}
		if stored > len(run.History) {
			return fmt.Errorf("%w: run %s history shrank from %d to %d", persistence.ErrConflict, run.ID, stored, len(run.History))
		}
		return insertDecisions(ctx, tx, run.ID, run.History[stored:], stored)
	})
}

func insertDecisions(ctx context.Context, tx *sql.Tx, runID string, decisions []workflow.Decision, offset int) error {
	for i, d := range decisions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO workflow_decisions (run_id, seq, step_index, decision, actor_id, comment, decided_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, offset+i+1, d.StepIndex, string(d.Kind), d.ActorID, d.Comment, formatTime(d.At),
		)
		if err != nil {
			return NewErrorMapper().MapError(err)
		}
	}
	return nil
}

const runColumns = `id, definition_id, target_kind, target_id, requester_id, steps, current_step, status, version, created_at, updated_at`

// GetRun retrieves a run by ID.
func (r *WorkflowRepository) GetRun(ctx context.Context, id string) (workflow.Run, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `SELECT `+runColumns+` FROM workflow_runs WHERE id = ?`, id)
	if err != nil {
		return workflow.Run{}, fmt.Errorf("failed to query run: %w", err)
	}
	runs, err := r.collectRuns(ctx, rows)
	if err != nil {
		return workflow.Run{}, err
	}
	if len(runs) == 0 {
		return workflow.Run{}, persistence.ErrNotFound
	}
	return runs[0], nil
}

// ListRunsForTarget returns runs for a target ordered by CreatedAt.
func (r *WorkflowRepository) ListRunsForTarget(ctx context.Context, target workflow.Target) ([]workflow.Run, error) {
	rows, err := r.pool.DB().QueryContext(ctx,
		`SELECT `+runColumns+` FROM workflow_runs WHERE target_kind = ? AND target_id = ? ORDER BY created_at, id`,
		string(target.Kind), target.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	return r.collectRuns(ctx, rows)
}

// collectRuns drains and closes rows before loading each run's history.
func (r *WorkflowRepository) collectRuns(ctx context.Context, rows *sql.Rows) ([]workflow.Run, error) {
	runs := make([]workflow.Run, 0)
	for rows.Next() {
		var (
			run                  workflow.Run
			kind, status, steps  string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&run.ID, &run.DefinitionID, &kind, &run.Target.ID, &run.RequesterID, &steps,
			&run.CurrentStep, &status, &run.Version, &createdAt, &updatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Target.Kind = workflow.TargetKind(kind)
		run.Status = workflow.Status(status)
		var err error
		if run.Steps, err = decodeSteps(steps); err != nil {
			rows.Close()
			return nil, err
		}
		if run.CreatedAt, err = parseTime(createdAt); err != nil {
			rows.Close()
			return nil, err
		}
		if run.UpdatedAt, err = parseTime(updatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	rows.Close()

	for i := range runs {
		history, err := r.history(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].History = history
	}
	return runs, nil
}

func (r *WorkflowRepository) history(ctx context.Context, runID string) ([]workflow.Decision, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT step_index, decision, actor_id, comment, decided_at
		FROM workflow_decisions
		WHERE run_id = ?
		ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var history []workflow.Decision
	for rows.Next() {
		var (
			d          workflow.Decision
			kind, when string
		)
		if err := rows.Scan(&d.StepIndex, &kind, &d.ActorID, &d.Comment, &when); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		d.Kind = workflow.DecisionKind(kind)
		if d.At, err = parseTime(when); err != nil {
			return nil, err
		}
		history = append(history, d)
	}
	return history, rows.Err()
}
