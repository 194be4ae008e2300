package importers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/diagramstudio/internal/db"
)

// Store records import runs.
type Store struct {
	db *db.DB
}

// NewStore creates a new import run store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Start records a new running import of root.
func (s *Store) Start(ctx context.Context, root string) (*Run, error) {
	run := Run{
		ID:        uuid.New().String(),
		Root:      root,
		Status:    StatusRunning,
		Errors:    []string{},
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO import_runs (id, root, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Root, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting import run: %w", err)
	}
	return &run, nil
}

// Finish stores the final status, counts and errors of run.
func (s *Store) Finish(ctx context.Context, run *Run) error {
	now := time.Now().UTC()
	run.FinishedAt = &now
	if run.Errors == nil {
		run.Errors = []string{}
	}
	errs, err := json.Marshal(run.Errors)
	if err != nil {
		return fmt.Errorf("encoding import errors: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE import_runs
		 SET status = ?, files_scanned = ?, diagrams_imported = ?, errors = ?, finished_at = ?
		 WHERE id = ?`,
		run.Status, run.FilesScanned, run.DiagramsImported, string(errs), now, run.ID,
	)
	if err != nil {
		return fmt.Errorf("updating import run: %w", err)
	}
	return nil
}

const runColumns = `id, root, status, files_scanned, diagrams_imported, errors, started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run      Run
		errs     string
		finished sql.NullTime
	)
	if err := row.Scan(&run.ID, &run.Root, &run.Status, &run.FilesScanned,
		&run.DiagramsImported, &errs, &run.StartedAt, &finished); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(errs), &run.Errors); err != nil {
		return nil, fmt.Errorf("decoding import errors: %w", err)
	}
	if run.Errors == nil {
		run.Errors = []string{}
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return &run, nil
}

// GetByID retrieves an import run by ID.
func (s *Store) GetByID(ctx context.Context, id string) (*Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM import_runs WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting import run: %w", err)
	}
	return run, nil
}

// List returns the most recent runs first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM import_runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing import runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning import run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Delete removes an import run record. Imported diagrams are kept.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM import_runs WHERE id = ?`, id)
	return err
}
