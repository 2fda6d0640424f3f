// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sqlite provides a SQLite Store implementation for single-node
// deployments. Selected when DATABASE_URL is set.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/flowline/flowline/internal/store"
	"github.com/flowline/flowline/pkg/errors"
	_ "modernc.org/sqlite"
)

// Compile-time interface assertion.
var _ store.Store = (*Store)(nil)

// Store is a SQLite storage backend.
type Store struct {
	db *sql.DB
}

// Config contains SQLite connection configuration.
type Config struct {
	// Path is the database file path.
	Path string

	// WAL enables Write-Ahead Logging mode for concurrent reads.
	WAL bool
}

// New creates a new SQLite store, configuring pragmas and running
// migrations before returning.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writes, so only 1 connection.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db}

	if err := s.configurePragmas(ctx, cfg.WAL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure pragmas: %w", err)
	}

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// configurePragmas sets SQLite configuration options.
func (s *Store) configurePragmas(ctx context.Context, enableWAL bool) error {
	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA auto_vacuum=INCREMENTAL",
		"PRAGMA synchronous=NORMAL",
	}

	if enableWAL {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}

	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return nil
}

// migrate runs database migrations.
func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			is_active INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS steps (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			label TEXT,
			position TEXT,
			config TEXT,
			step_order INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (workflow_id) REFERENCES workflows(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_steps_workflow ON steps(workflow_id)`,
		`CREATE TABLE IF NOT EXISTS edges (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			source_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			label TEXT,
			FOREIGN KEY (workflow_id) REFERENCES workflows(id) ON DELETE CASCADE,
			FOREIGN KEY (source_id) REFERENCES steps(id) ON DELETE CASCADE,
			FOREIGN KEY (target_id) REFERENCES steps(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_workflow ON edges(workflow_id)`,
		`CREATE TABLE IF NOT EXISTS executions (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			status TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT,
			error TEXT,
			outputs TEXT,
			FOREIGN KEY (workflow_id) REFERENCES workflows(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_workflow ON executions(workflow_id)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_start_time ON executions(start_time)`,
		`CREATE TABLE IF NOT EXISTS step_executions (
			id TEXT PRIMARY KEY,
			execution_id TEXT NOT NULL,
			step_id TEXT NOT NULL,
			status TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT,
			error TEXT,
			input TEXT,
			output TEXT,
			seq INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (execution_id) REFERENCES executions(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_step_executions_execution ON step_executions(execution_id)`,
		`CREATE TABLE IF NOT EXISTS credentials (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			value TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// CreateWorkflow creates a new workflow.
func (s *Store) CreateWorkflow(ctx context.Context, w *store.Workflow) error {
	now := time.Now()
	w.CreatedAt = now
	w.UpdatedAt = now

	query := `INSERT INTO workflows (id, name, description, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		w.ID, w.Name, nullString(w.Description), boolToInt(w.IsActive),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}
	return nil
}

// GetWorkflow retrieves a workflow by id.
func (s *Store) GetWorkflow(ctx context.Context, id string) (*store.Workflow, error) {
	query := `SELECT id, name, description, is_active, created_at, updated_at
		FROM workflows WHERE id = ?`
	w, err := scanWorkflow(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, &errors.NotFoundError{Resource: "workflow", ID: id}
		}
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	return w, nil
}

// ListWorkflows returns all workflows ordered by creation time.
func (s *Store) ListWorkflows(ctx context.Context) ([]*store.Workflow, error) {
	query := `SELECT id, name, description, is_active, created_at, updated_at
		FROM workflows ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var result []*store.Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

// UpdateWorkflow updates an existing workflow.
func (s *Store) UpdateWorkflow(ctx context.Context, w *store.Workflow) error {
	w.UpdatedAt = time.Now()

	query := `UPDATE workflows SET name = ?, description = ?, is_active = ?, updated_at = ?
		WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query,
		w.Name, nullString(w.Description), boolToInt(w.IsActive),
		w.UpdatedAt.Format(time.RFC3339Nano), w.ID)
	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}
	return requireAffected(res, "workflow", w.ID)
}

// DeleteWorkflow deletes a workflow. Steps, edges, and runs cascade via
// foreign keys.
func (s *Store) DeleteWorkflow(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	return requireAffected(res, "workflow", id)
}

// GetSteps returns the workflow's steps ordered by Order then ID.
func (s *Store) GetSteps(ctx context.Context, workflowID string) ([]*store.Step, error) {
	query := `SELECT id, workflow_id, kind, label, position, config, step_order
		FROM steps WHERE workflow_id = ? ORDER BY step_order, id`
	rows, err := s.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get steps: %w", err)
	}
	defer rows.Close()

	var result []*store.Step
	for rows.Next() {
		var (
			st           store.Step
			label        sql.NullString
			positionJSON sql.NullString
			configJSON   sql.NullString
		)
		if err := rows.Scan(&st.ID, &st.WorkflowID, &st.Kind, &label,
			&positionJSON, &configJSON, &st.Order); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		st.Label = label.String
		if err := unmarshalMap(positionJSON, &st.Position); err != nil {
			return nil, fmt.Errorf("failed to unmarshal position: %w", err)
		}
		if err := unmarshalMap(configJSON, &st.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
		result = append(result, &st)
	}
	return result, rows.Err()
}

// GetEdges returns the workflow's edges.
func (s *Store) GetEdges(ctx context.Context, workflowID string) ([]*store.Edge, error) {
	query := `SELECT id, workflow_id, source_id, target_id, label
		FROM edges WHERE workflow_id = ? ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get edges: %w", err)
	}
	defer rows.Close()

	var result []*store.Edge
	for rows.Next() {
		var (
			e     store.Edge
			label sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.WorkflowID, &e.SourceID, &e.TargetID, &label); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		e.Label = label.String
		result = append(result, &e)
	}
	return result, rows.Err()
}

// ReplaceGraph atomically replaces the workflow's step and edge sets inside
// one transaction. Edges go first on delete and last on insert so foreign
// keys hold at every point.
func (s *Store) ReplaceGraph(ctx context.Context, workflowID string, steps []*store.Step, edges []*store.Edge) error {
	if _, err := s.GetWorkflow(ctx, workflowID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE workflow_id = ?`, workflowID); err != nil {
		return fmt.Errorf("failed to clear edges: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM steps WHERE workflow_id = ?`, workflowID); err != nil {
		return fmt.Errorf("failed to clear steps: %w", err)
	}

	for _, st := range steps {
		positionJSON, err := marshalMap(st.Position)
		if err != nil {
			return fmt.Errorf("failed to marshal position: %w", err)
		}
		configJSON, err := marshalMap(st.Config)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO steps (id, workflow_id, kind, label, position, config, step_order)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			st.ID, workflowID, st.Kind, nullString(st.Label),
			positionJSON, configJSON, st.Order)
		if err != nil {
			return fmt.Errorf("failed to insert step: %w", err)
		}
	}

	for _, e := range edges {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO edges (id, workflow_id, source_id, target_id, label)
			VALUES (?, ?, ?, ?, ?)`,
			e.ID, workflowID, e.SourceID, e.TargetID, nullString(e.Label))
		if err != nil {
			return fmt.Errorf("failed to insert edge: %w", err)
		}
	}

	return tx.Commit()
}

// CreateExecution creates a new run record.
func (s *Store) CreateExecution(ctx context.Context, e *store.Execution) error {
	outputsJSON, err := marshalMap(e.Outputs)
	if err != nil {
		return fmt.Errorf("failed to marshal outputs: %w", err)
	}

	query := `INSERT INTO executions (id, workflow_id, status, start_time, end_time, error, outputs)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		e.ID, e.WorkflowID, e.Status, e.StartTime.Format(time.RFC3339Nano),
		formatTime(e.EndTime), nullString(e.Error), outputsJSON)
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}
	return nil
}

// UpdateExecution updates an existing run record.
func (s *Store) UpdateExecution(ctx context.Context, e *store.Execution) error {
	outputsJSON, err := marshalMap(e.Outputs)
	if err != nil {
		return fmt.Errorf("failed to marshal outputs: %w", err)
	}

	query := `UPDATE executions SET status = ?, end_time = ?, error = ?, outputs = ?
		WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query,
		e.Status, formatTime(e.EndTime), nullString(e.Error), outputsJSON, e.ID)
	if err != nil {
		return fmt.Errorf("failed to update execution: %w", err)
	}
	return requireAffected(res, "execution", e.ID)
}

// GetExecution retrieves a run by id.
func (s *Store) GetExecution(ctx context.Context, id string) (*store.Execution, error) {
	query := `SELECT id, workflow_id, status, start_time, end_time, error, outputs
		FROM executions WHERE id = ?`
	e, err := scanExecution(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, &errors.NotFoundError{Resource: "execution", ID: id}
		}
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}
	return e, nil
}

// ListExecutions returns the workflow's runs newest-first.
func (s *Store) ListExecutions(ctx context.Context, workflowID string) ([]*store.Execution, error) {
	query := `SELECT id, workflow_id, status, start_time, end_time, error, outputs
		FROM executions WHERE workflow_id = ? ORDER BY start_time DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var result []*store.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// CreateStepExecution records one step dispatch. Dispatch order is preserved
// through a per-run sequence number.
func (s *Store) CreateStepExecution(ctx context.Context, se *store.StepExecution) error {
	inputJSON, err := marshalMap(se.Input)
	if err != nil {
		return fmt.Errorf("failed to marshal input: %w", err)
	}
	outputJSON, err := marshalValue(se.Output)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	query := `INSERT INTO step_executions (id, execution_id, step_id, status, start_time, end_time, error, input, output, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM step_executions WHERE execution_id = ?))`
	_, err = s.db.ExecContext(ctx, query,
		se.ID, se.ExecutionID, se.StepID, se.Status,
		se.StartTime.Format(time.RFC3339Nano), formatTime(se.EndTime),
		nullString(se.Error), inputJSON, outputJSON, se.ExecutionID)
	if err != nil {
		return fmt.Errorf("failed to create step execution: %w", err)
	}
	return nil
}

// UpdateStepExecution updates a step dispatch record.
func (s *Store) UpdateStepExecution(ctx context.Context, se *store.StepExecution) error {
	outputJSON, err := marshalValue(se.Output)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	query := `UPDATE step_executions SET status = ?, end_time = ?, error = ?, output = ?
		WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query,
		se.Status, formatTime(se.EndTime), nullString(se.Error), outputJSON, se.ID)
	if err != nil {
		return fmt.Errorf("failed to update step execution: %w", err)
	}
	return requireAffected(res, "step execution", se.ID)
}

// ListStepExecutions returns the run's step records in dispatch order.
func (s *Store) ListStepExecutions(ctx context.Context, executionID string) ([]*store.StepExecution, error) {
	query := `SELECT id, execution_id, step_id, status, start_time, end_time, error, input, output
		FROM step_executions WHERE execution_id = ? ORDER BY seq`
	rows, err := s.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list step executions: %w", err)
	}
	defer rows.Close()

	var result []*store.StepExecution
	for rows.Next() {
		var (
			se         store.StepExecution
			startTime  string
			endTime    sql.NullString
			errText    sql.NullString
			inputJSON  sql.NullString
			outputJSON sql.NullString
		)
		if err := rows.Scan(&se.ID, &se.ExecutionID, &se.StepID, &se.Status,
			&startTime, &endTime, &errText, &inputJSON, &outputJSON); err != nil {
			return nil, fmt.Errorf("failed to scan step execution: %w", err)
		}
		se.StartTime, err = time.Parse(time.RFC3339Nano, startTime)
		if err != nil {
			return nil, fmt.Errorf("failed to parse start_time: %w", err)
		}
		se.EndTime, err = parseTimePtr(endTime)
		if err != nil {
			return nil, fmt.Errorf("failed to parse end_time: %w", err)
		}
		se.Error = errText.String
		if err := unmarshalMap(inputJSON, &se.Input); err != nil {
			return nil, fmt.Errorf("failed to unmarshal input: %w", err)
		}
		if outputJSON.Valid && outputJSON.String != "" {
			if err := json.Unmarshal([]byte(outputJSON.String), &se.Output); err != nil {
				return nil, fmt.Errorf("failed to unmarshal output: %w", err)
			}
		}
		result = append(result, &se)
	}
	return result, rows.Err()
}

// ListCredentials returns all credentials.
func (s *Store) ListCredentials(ctx context.Context) ([]*store.Credential, error) {
	query := `SELECT id, name, type, value, created_at FROM credentials ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	var result []*store.Credential
	for rows.Next() {
		var (
			c         store.Credential
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.Value, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		result = append(result, &c)
	}
	return result, rows.Err()
}

// CreateCredential stores a credential.
func (s *Store) CreateCredential(ctx context.Context, c *store.Credential) error {
	c.CreatedAt = time.Now()
	query := `INSERT INTO credentials (id, name, type, value, created_at)
		VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.Name, c.Type, c.Value, c.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to create credential: %w", err)
	}
	return nil
}

// DeleteCredential deletes a credential.
func (s *Store) DeleteCredential(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return requireAffected(res, "credential", id)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row scanner) (*store.Workflow, error) {
	var (
		w           store.Workflow
		description sql.NullString
		isActive    int
		createdAt   string
		updatedAt   string
	)
	if err := row.Scan(&w.ID, &w.Name, &description, &isActive, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	w.Description = description.String
	w.IsActive = isActive != 0

	var err error
	w.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	w.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return &w, nil
}

func scanExecution(row scanner) (*store.Execution, error) {
	var (
		e           store.Execution
		startTime   string
		endTime     sql.NullString
		errText     sql.NullString
		outputsJSON sql.NullString
	)
	if err := row.Scan(&e.ID, &e.WorkflowID, &e.Status, &startTime,
		&endTime, &errText, &outputsJSON); err != nil {
		return nil, err
	}

	var err error
	e.StartTime, err = time.Parse(time.RFC3339Nano, startTime)
	if err != nil {
		return nil, fmt.Errorf("failed to parse start_time: %w", err)
	}
	e.EndTime, err = parseTimePtr(endTime)
	if err != nil {
		return nil, fmt.Errorf("failed to parse end_time: %w", err)
	}
	e.Error = errText.String
	if err := unmarshalMap(outputsJSON, &e.Outputs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal outputs: %w", err)
	}
	return &e, nil
}

// requireAffected converts a zero-row update or delete into a NotFoundError.
func requireAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return &errors.NotFoundError{Resource: resource, ID: id}
	}
	return nil
}

// formatTime returns nil for a nil time, otherwise an RFC3339 string.
func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// nullString returns nil if string is empty, otherwise the string.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// boolToInt maps a bool onto the 0/1 INTEGER columns the schema uses.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// marshalMap returns nil for a nil map, otherwise its JSON encoding.
func marshalMap(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func marshalValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func unmarshalMap(s sql.NullString, dest *map[string]any) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), dest)
}
