package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

var _ ports.ScenarioStore = (*Store)(nil)

const scenarioColumns = `id, bot_id, name, description, start_step_id, is_default, created_at, updated_at`

const stepColumns = `id, scenario_id, step_type, content, input_type, conditions, next_step_id, is_start_step, order_index, created_at, updated_at`

// prefixed qualifies each column in a list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, c := range parts {
		parts[i] = alias + "." + c
	}
	return strings.Join(parts, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScenario(row rowScanner) (domain.Scenario, error) {
	var sc domain.Scenario
	var startStep sql.NullInt64
	err := row.Scan(&sc.ID, &sc.BotID, &sc.Name, &sc.Description, &startStep, &sc.IsDefault, &sc.CreatedAt, &sc.UpdatedAt)
	if err != nil {
		return sc, err
	}
	if startStep.Valid {
		sc.StartStepID = domain.Int64(startStep.Int64)
	}
	return sc, nil
}

func scanStep(row rowScanner) (domain.Step, error) {
	var st domain.Step
	var stepType, inputType string
	var conditions sql.NullString
	var next sql.NullInt64
	err := row.Scan(&st.ID, &st.ScenarioID, &stepType, &st.Content, &inputType, &conditions, &next, &st.IsStart, &st.OrderIndex, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return st, err
	}
	st.Type = domain.StepType(stepType)
	st.InputType = domain.InputType(inputType)
	if next.Valid {
		st.NextStepID = domain.Int64(next.Int64)
	}
	if conditions.Valid && conditions.String != "" && conditions.String != "null" {
		var raw map[string]any
		if err := json.Unmarshal([]byte(conditions.String), &raw); err != nil {
			// A broken payload must not hide the step; evaluation falls back.
			st.Conditions = &domain.Conditions{ParseErr: fmt.Errorf("invalid conditions json: %w", err)}
		} else {
			st.Conditions = domain.ParseConditions(raw)
		}
	}
	return st, nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func encodeConditions(c *domain.Conditions) (any, error) {
	if c.IsEmpty() {
		return nil, nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode conditions: %w", err)
	}
	return string(data), nil
}

func (s *Store) GetScenario(ctx context.Context, id int64) (*domain.Scenario, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+scenarioColumns+` FROM scenarios WHERE id = ?`), id)
	sc, err := scanScenario(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrScenarioNotFound
	}
	if err != nil {
		s.logger.Error("GetScenario failed", "error", err, "scenario_id", id)
		return nil, fmt.Errorf("failed to get scenario %d: %w", id, err)
	}
	return &sc, nil
}

func (s *Store) ListScenariosByBot(ctx context.Context, botID int64) ([]domain.Scenario, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+scenarioColumns+` FROM scenarios WHERE bot_id = ? ORDER BY id`), botID)
	if err != nil {
		s.logger.Error("ListScenariosByBot query failed", "error", err, "bot_id", botID)
		return nil, fmt.Errorf("failed to query scenarios: %w", err)
	}
	defer rows.Close()

	out := []domain.Scenario{}
	for rows.Next() {
		sc, err := scanScenario(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scenario row: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scenario rows: %w", err)
	}
	return out, nil
}

func (s *Store) CreateScenario(ctx context.Context, scenario *domain.Scenario) error {
	now := time.Now().UTC()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if scenario.ID != 0 {
			_, err := s.exec(ctx, tx, `INSERT INTO scenarios (id, bot_id, name, description, start_step_id, is_default, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				scenario.ID, scenario.BotID, scenario.Name, scenario.Description, nullableID(scenario.StartStepID), scenario.IsDefault, now, now)
			if err != nil {
				return err
			}
			return s.syncSequence(ctx, tx, "scenarios")
		}
		row := tx.QueryRowContext(ctx, s.rebind(`INSERT INTO scenarios (bot_id, name, description, start_step_id, is_default, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`),
			scenario.BotID, scenario.Name, scenario.Description, nullableID(scenario.StartStepID), scenario.IsDefault, now, now)
		return row.Scan(&scenario.ID)
	})
	if err != nil {
		s.logger.Error("CreateScenario failed", "error", err, "name", scenario.Name)
		return fmt.Errorf("failed to create scenario: %w", err)
	}
	scenario.CreatedAt, scenario.UpdatedAt = now, now
	s.logger.Debug("Scenario created", "scenario_id", scenario.ID)
	return nil
}

func (s *Store) UpdateScenario(ctx context.Context, scenario *domain.Scenario) error {
	now := time.Now().UTC()
	res, err := s.exec(ctx, s.db, `UPDATE scenarios SET bot_id = ?, name = ?, description = ?, start_step_id = ?, is_default = ?, updated_at = ? WHERE id = ?`,
		scenario.BotID, scenario.Name, scenario.Description, nullableID(scenario.StartStepID), scenario.IsDefault, now, scenario.ID)
	if err != nil {
		s.logger.Error("UpdateScenario failed", "error", err, "scenario_id", scenario.ID)
		return fmt.Errorf("failed to update scenario %d: %w", scenario.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrScenarioNotFound
	}
	scenario.UpdatedAt = now
	return nil
}

func (s *Store) DeleteScenario(ctx context.Context, id int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.exec(ctx, tx, `DELETE FROM scenario_steps WHERE scenario_id = ?`, id); err != nil {
			return err
		}
		_, err := s.exec(ctx, tx, `DELETE FROM scenarios WHERE id = ?`, id)
		return err
	})
	if err != nil {
		s.logger.Error("DeleteScenario failed", "error", err, "scenario_id", id)
		return fmt.Errorf("failed to delete scenario %d: %w", id, err)
	}
	s.logger.Debug("Scenario deleted", "scenario_id", id)
	return nil
}

func (s *Store) GetStep(ctx context.Context, id int64) (*domain.Step, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+stepColumns+` FROM scenario_steps WHERE id = ?`), id)
	return s.oneStep(row, "GetStep", id)
}

func (s *Store) oneStep(row *sql.Row, op string, id int64) (*domain.Step, error) {
	st, err := scanStep(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrStepNotFound
	}
	if err != nil {
		s.logger.Error(op+" failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to load step: %w", err)
	}
	return &st, nil
}

func (s *Store) GetStepsByScenario(ctx context.Context, scenarioID int64) ([]domain.Step, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+stepColumns+` FROM scenario_steps WHERE scenario_id = ? ORDER BY order_index, id`), scenarioID)
	if err != nil {
		s.logger.Error("GetStepsByScenario query failed", "error", err, "scenario_id", scenarioID)
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	out := []domain.Step{}
	for rows.Next() {
		st, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step row: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate step rows: %w", err)
	}
	return out, nil
}

func (s *Store) GetStartStep(ctx context.Context, scenarioID int64) (*domain.Step, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+stepColumns+` FROM scenario_steps WHERE scenario_id = ? AND is_start_step = ? ORDER BY order_index, id LIMIT 1`), scenarioID, true)
	step, err := s.oneStep(row, "GetStartStep", scenarioID)
	if !errors.Is(err, domain.ErrStepNotFound) {
		return step, err
	}

	sc, err := s.GetScenario(ctx, scenarioID)
	if err != nil {
		if errors.Is(err, domain.ErrScenarioNotFound) {
			return nil, domain.ErrStepNotFound
		}
		return nil, err
	}
	if sc.StartStepID == nil {
		return nil, domain.ErrStepNotFound
	}
	return s.GetStep(ctx, *sc.StartStepID)
}

func (s *Store) GetNextStep(ctx context.Context, currentStepID int64) (*domain.Step, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+prefixed("n", stepColumns)+` FROM scenario_steps c JOIN scenario_steps n ON n.id = c.next_step_id WHERE c.id = ?`), currentStepID)
	return s.oneStep(row, "GetNextStep", currentStepID)
}

func (s *Store) CreateStep(ctx context.Context, step *domain.Step) error {
	conditions, err := encodeConditions(step.Conditions)
	if err != nil {
		return err
	}
	if step.Type == "" {
		step.Type = domain.StepMessage
	}
	now := time.Now().UTC()
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if step.ID != 0 {
			_, err := s.exec(ctx, tx, `INSERT INTO scenario_steps (id, scenario_id, step_type, content, input_type, conditions, next_step_id, is_start_step, order_index, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				step.ID, step.ScenarioID, string(step.Type), step.Content, string(step.InputType), conditions, nullableID(step.NextStepID), step.IsStart, step.OrderIndex, now, now)
			if err != nil {
				return err
			}
			return s.syncSequence(ctx, tx, "scenario_steps")
		}
		row := tx.QueryRowContext(ctx, s.rebind(`INSERT INTO scenario_steps (scenario_id, step_type, content, input_type, conditions, next_step_id, is_start_step, order_index, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
			step.ScenarioID, string(step.Type), step.Content, string(step.InputType), conditions, nullableID(step.NextStepID), step.IsStart, step.OrderIndex, now, now)
		return row.Scan(&step.ID)
	})
	if err != nil {
		s.logger.Error("CreateStep failed", "error", err, "scenario_id", step.ScenarioID)
		return fmt.Errorf("failed to create step: %w", err)
	}
	step.CreatedAt, step.UpdatedAt = now, now
	return nil
}

func (s *Store) UpdateStep(ctx context.Context, step *domain.Step) error {
	conditions, err := encodeConditions(step.Conditions)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := s.exec(ctx, s.db, `UPDATE scenario_steps SET scenario_id = ?, step_type = ?, content = ?, input_type = ?, conditions = ?, next_step_id = ?, is_start_step = ?, order_index = ?, updated_at = ? WHERE id = ?`,
		step.ScenarioID, string(step.Type), step.Content, string(step.InputType), conditions, nullableID(step.NextStepID), step.IsStart, step.OrderIndex, now, step.ID)
	if err != nil {
		s.logger.Error("UpdateStep failed", "error", err, "step_id", step.ID)
		return fmt.Errorf("failed to update step %d: %w", step.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrStepNotFound
	}
	step.UpdatedAt = now
	return nil
}

func (s *Store) DeleteStep(ctx context.Context, id int64) error {
	if _, err := s.exec(ctx, s.db, `DELETE FROM scenario_steps WHERE id = ?`, id); err != nil {
		s.logger.Error("DeleteStep failed", "error", err, "step_id", id)
		return fmt.Errorf("failed to delete step %d: %w", id, err)
	}
	return nil
}
