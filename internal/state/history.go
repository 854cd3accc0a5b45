package state

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/kestrelabs/agentmesh/pkg/models"
)

// RecordTask inserts or updates a task row. Tasks are never deleted; the
// table is the conversation history.
func (db *DB) RecordTask(task *models.Task) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	createdAt := task.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	updatedAt := task.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err := db.conn.Exec(`
		INSERT INTO tasks (id, title, description, priority, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at
	`, task.ID, task.Title, task.Description, string(task.Priority), string(task.Status), createdAt, updatedAt)
	if err != nil {
		return fmt.Errorf("record task %s: %w", task.ID, err)
	}
	return nil
}

// RecordSubtask inserts or updates a subtask row, including its result
// once the subtask is terminal.
func (db *DB) RecordSubtask(st *models.Subtask) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	updatedAt := st.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	var success sql.NullBool
	var output, errorCode, errorMessage sql.NullString
	var durationMS sql.NullInt64
	if st.Result != nil {
		success = sql.NullBool{Bool: st.Result.Success, Valid: true}
		durationMS = sql.NullInt64{Int64: st.Result.Metrics.Duration.Milliseconds(), Valid: true}
		if st.Result.Output != nil {
			output = sql.NullString{String: fmt.Sprintf("%v", st.Result.Output), Valid: true}
		}
		if st.Result.Error != nil {
			errorCode = sql.NullString{String: st.Result.Error.Code, Valid: true}
			errorMessage = sql.NullString{String: st.Result.Error.Message, Valid: true}
		}
	}

	_, err := db.conn.Exec(`
		INSERT INTO subtasks (id, parent_task_id, title, description, status,
			assigned_agent_id, depends_on, complexity, order_index,
			success, output, error_code, error_message, duration_ms, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			assigned_agent_id = excluded.assigned_agent_id,
			success = excluded.success,
			output = excluded.output,
			error_code = excluded.error_code,
			error_message = excluded.error_message,
			duration_ms = excluded.duration_ms,
			updated_at = excluded.updated_at
	`, st.ID, st.ParentTaskID, st.Title, st.Description, string(st.Status),
		st.AssignedAgentID, strings.Join(st.DependsOn, ","), st.Complexity, st.OrderIndex,
		success, output, errorCode, errorMessage, durationMS, updatedAt)
	if err != nil {
		return fmt.Errorf("record subtask %s: %w", st.ID, err)
	}
	return nil
}

// TaskSummary is one row of task history.
type TaskSummary struct {
	ID        string
	Title     string
	Priority  models.Priority
	Status    models.TaskStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListTasks returns task history, newest first, capped at limit.
// A limit of zero or less returns everything.
func (db *DB) ListTasks(limit int) ([]TaskSummary, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	query := "SELECT id, title, priority, status, created_at, updated_at FROM tasks ORDER BY created_at DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []TaskSummary
	for rows.Next() {
		var t TaskSummary
		var priority, status string
		if err := rows.Scan(&t.ID, &t.Title, &priority, &status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		t.Priority = models.Priority(priority)
		t.Status = models.TaskStatus(status)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// SubtaskSummary is one row of subtask history for a task.
type SubtaskSummary struct {
	ID           string
	Title        string
	Status       models.TaskStatus
	AgentID      string
	Success      bool
	Output       string
	ErrorCode    string
	ErrorMessage string
	Duration     time.Duration
}

// ListSubtasks returns the subtasks recorded for a task in decomposition
// order.
func (db *DB) ListSubtasks(taskID string) ([]SubtaskSummary, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT id, title, status, COALESCE(assigned_agent_id, ''),
			COALESCE(success, 0), COALESCE(output, ''),
			COALESCE(error_code, ''), COALESCE(error_message, ''),
			COALESCE(duration_ms, 0)
		FROM subtasks WHERE parent_task_id = ? ORDER BY order_index
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list subtasks for %s: %w", taskID, err)
	}
	defer rows.Close()

	var subtasks []SubtaskSummary
	for rows.Next() {
		var s SubtaskSummary
		var status string
		var durationMS int64
		if err := rows.Scan(&s.ID, &s.Title, &status, &s.AgentID, &s.Success,
			&s.Output, &s.ErrorCode, &s.ErrorMessage, &durationMS); err != nil {
			return nil, fmt.Errorf("scan subtask row: %w", err)
		}
		s.Status = models.TaskStatus(status)
		s.Duration = time.Duration(durationMS) * time.Millisecond
		subtasks = append(subtasks, s)
	}
	return subtasks, rows.Err()
}
