package engine

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tmnlabs/bizsuite/libs/db"
)

// Store persists workflow executions. Claiming uses FOR UPDATE SKIP
// LOCKED plus a lease column so several workers can share a task queue
// and a crashed worker's claims become due again after LeaseFor.
type Store struct {
	pool *db.Pool
}

func NewStore(pool *db.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Insert(ctx context.Context, exec Execution) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO workflow_executions
			(workflow_id, workflow_type, task_queue, dedup_key, input, status, traceparent, tracestate)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, 'pending', $6, $7)
	`, exec.WorkflowID, string(exec.Type), exec.TaskQueue, exec.DedupKey, exec.Input, exec.Traceparent, exec.Tracestate)
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateWorkflow
	}
	return err
}

// ClaimDue claims up to limit runnable executions on the queue: pending
// rows plus running rows whose lease expired (their worker died).
func (s *Store) ClaimDue(ctx context.Context, taskQueue string, limit int, leaseFor time.Duration) ([]Execution, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT id, workflow_id, workflow_type, task_queue, COALESCE(dedup_key, ''),
		       input, status, attempts, COALESCE(last_error, ''),
		       COALESCE(traceparent, ''), COALESCE(tracestate, ''), created_at
		FROM workflow_executions
		WHERE task_queue = $1
		  AND (status = 'pending' OR (status = 'running' AND locked_until < now()))
		ORDER BY id
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, taskQueue, limit)
	if err != nil {
		return nil, err
	}
	execs, err := scanExecutions(rows)
	if err != nil {
		return nil, err
	}
	if len(execs) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(execs))
	for i := range execs {
		execs[i].Status = StatusRunning
		execs[i].Attempts++
		ids = append(ids, execs[i].ID)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE workflow_executions
		SET status = 'running', attempts = attempts + 1,
		    locked_until = now() + make_interval(secs => $2), updated_at = now()
		WHERE id = ANY($1)
	`, ids, leaseFor.Seconds()); err != nil {
		return nil, err
	}
	return execs, tx.Commit(ctx)
}

// ExtendLease pushes a running execution's lease forward. Called before
// every activity attempt so a slow but alive run is never claimed by a
// second worker mid-flight.
func (s *Store) ExtendLease(ctx context.Context, id int64, leaseFor time.Duration) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE workflow_executions
		SET locked_until = now() + make_interval(secs => $2), updated_at = now()
		WHERE id = $1 AND status = 'running'
	`, id, leaseFor.Seconds())
	return err
}

func (s *Store) MarkCompleted(ctx context.Context, id int64, result []byte) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE workflow_executions
		SET status = 'completed', result = $2, locked_until = NULL, updated_at = now()
		WHERE id = $1
	`, id, result)
	return err
}

func (s *Store) MarkFailed(ctx context.Context, id int64, cause string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE workflow_executions
		SET status = 'failed', last_error = $2, locked_until = NULL, updated_at = now()
		WHERE id = $1
	`, id, cause)
	return err
}

func scanExecutions(rows pgx.Rows) ([]Execution, error) {
	defer rows.Close()
	var execs []Execution
	for rows.Next() {
		var e Execution
		var wt string
		if err := rows.Scan(&e.ID, &e.WorkflowID, &wt, &e.TaskQueue, &e.DedupKey,
			&e.Input, &e.Status, &e.Attempts, &e.LastError,
			&e.Traceparent, &e.Tracestate, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = WorkflowType(wt)
		execs = append(execs, e)
	}
	return execs, rows.Err()
}
