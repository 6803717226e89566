package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanschultz/funnel/internal/app"
	"github.com/evanschultz/funnel/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Repository represents repository data used by this package.
type Repository struct {
	db *sql.DB
}

// Open opens the requested operation.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes the board's concurrent load with stage seeding.
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens in memory.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, "file::memory:?cache=shared")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping reports whether the database answers.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pipeline_stages (
			pipeline TEXT NOT NULL,
			id TEXT NOT NULL,
			title TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT '#E5E7EB',
			position INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY(pipeline, id)
		);`,
		`CREATE TABLE IF NOT EXISTS pipeline_items (
			id TEXT PRIMARY KEY,
			pipeline TEXT NOT NULL,
			status TEXT NOT NULL,
			title TEXT NOT NULL,
			person TEXT NOT NULL DEFAULT '',
			organization TEXT NOT NULL DEFAULT '',
			owner TEXT NOT NULL DEFAULT '',
			tag TEXT NOT NULL DEFAULT '',
			value TEXT NOT NULL DEFAULT '',
			probability INTEGER,
			expected_close_at TEXT,
			notes TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_pipeline_items_pipeline_status ON pipeline_items(pipeline, status);`,
		`CREATE TABLE IF NOT EXISTS card_preferences (
			user_id TEXT PRIMARY KEY,
			fields_json TEXT NOT NULL DEFAULT '[]',
			updated_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

const itemColumns = `id, pipeline, status, title, person, organization, owner, tag, value, probability, expected_close_at, notes, created_at, updated_at`

// ListItems lists items of one pipeline.
func (r *Repository) ListItems(ctx context.Context, p domain.Pipeline) ([]domain.Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM pipeline_items
		WHERE pipeline = ?
		ORDER BY created_at ASC, id ASC
	`, string(p))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// GetItem returns item.
func (r *Repository) GetItem(ctx context.Context, id string) (domain.Item, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM pipeline_items
		WHERE id = ?
	`, id)
	return scanItem(row)
}

// UpsertItems inserts or replaces items in one transaction.
func (r *Repository) UpsertItems(ctx context.Context, items []domain.Item) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, item := range items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO pipeline_items(`+itemColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				pipeline = excluded.pipeline,
				status = excluded.status,
				title = excluded.title,
				person = excluded.person,
				organization = excluded.organization,
				owner = excluded.owner,
				tag = excluded.tag,
				value = excluded.value,
				probability = excluded.probability,
				expected_close_at = excluded.expected_close_at,
				notes = excluded.notes,
				updated_at = excluded.updated_at
		`,
			item.ID,
			string(item.Pipeline),
			item.Status,
			item.Title,
			item.Person,
			item.Organization,
			item.Owner,
			item.Tag,
			string(item.Value),
			nullableInt(item.Probability),
			nullableTS(item.ExpectedCloseAt),
			item.Notes,
			ts(item.CreatedAt),
			ts(item.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("upsert item %q: %w", item.ID, err)
		}
	}
	err = tx.Commit()
	return err
}

// UpdateItemStatus changes exactly the status column of one item.
func (r *Repository) UpdateItemStatus(ctx context.Context, id, status string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE pipeline_items
		SET status = ?, updated_at = ?
		WHERE id = ?
	`, status, ts(at), id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// ListStages lists stages of one pipeline by position.
func (r *Repository) ListStages(ctx context.Context, p domain.Pipeline) ([]domain.Stage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT pipeline, id, title, color, position, created_at, updated_at
		FROM pipeline_stages
		WHERE pipeline = ?
		ORDER BY position ASC, id ASC
	`, string(p))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Stage{}
	for rows.Next() {
		var (
			s          domain.Stage
			pipeline   string
			createdRaw string
			updatedRaw string
		)
		if err := rows.Scan(&pipeline, &s.ID, &s.Title, &s.Color, &s.Position, &createdRaw, &updatedRaw); err != nil {
			return nil, err
		}
		s.Pipeline = domain.Pipeline(pipeline)
		s.CreatedAt = parseTS(createdRaw)
		s.UpdatedAt = parseTS(updatedRaw)
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpsertStages writes a stage batch in one transaction.
func (r *Repository) UpsertStages(ctx context.Context, p domain.Pipeline, stages []domain.Stage) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, s := range stages {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO pipeline_stages(pipeline, id, title, color, position, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(pipeline, id) DO UPDATE SET
				title = excluded.title,
				color = excluded.color,
				position = excluded.position,
				updated_at = excluded.updated_at
		`, string(p), s.ID, s.Title, s.Color, s.Position, ts(s.CreatedAt), ts(s.UpdatedAt))
		if err != nil {
			return fmt.Errorf("upsert stage %q: %w", s.ID, err)
		}
	}
	err = tx.Commit()
	return err
}

// DeleteStages removes stages by id.
func (r *Repository) DeleteStages(ctx context.Context, p domain.Pipeline, ids []string) (err error) {
	if len(ids) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, id := range ids {
		if _, err = tx.ExecContext(ctx, `DELETE FROM pipeline_stages WHERE pipeline = ? AND id = ?`, string(p), id); err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

// LoadCardFields returns the stored card field selection for user.
func (r *Repository) LoadCardFields(ctx context.Context, user string) ([]domain.FieldID, bool, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT fields_json FROM card_preferences WHERE user_id = ?`, user).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var fields []string
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, false, fmt.Errorf("decode fields_json: %w", err)
	}
	return domain.ParseFieldIDs(fields), true, nil
}

// SaveCardFields replaces the stored selection for user.
func (r *Repository) SaveCardFields(ctx context.Context, user string, fields []domain.FieldID) error {
	encoded, err := json.Marshal(domain.FieldStrings(fields))
	if err != nil {
		return fmt.Errorf("encode fields_json: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO card_preferences(user_id, fields_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET fields_json = excluded.fields_json, updated_at = excluded.updated_at
	`, user, string(encoded), ts(time.Now()))
	return err
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

// scanItem handles scan item.
func scanItem(s scanner) (domain.Item, error) {
	var (
		item        domain.Item
		pipeline    string
		value       string
		probability sql.NullInt64
		closeRaw    sql.NullString
		createdRaw  string
		updatedRaw  string
	)
	if err := s.Scan(
		&item.ID,
		&pipeline,
		&item.Status,
		&item.Title,
		&item.Person,
		&item.Organization,
		&item.Owner,
		&item.Tag,
		&value,
		&probability,
		&closeRaw,
		&item.Notes,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Item{}, app.ErrNotFound
		}
		return domain.Item{}, err
	}
	item.Pipeline = domain.Pipeline(pipeline)
	item.Value = domain.MonetaryValue(value)
	if probability.Valid {
		p := int(probability.Int64)
		item.Probability = &p
	}
	item.ExpectedCloseAt = parseNullTS(closeRaw)
	item.CreatedAt = parseTS(createdRaw)
	item.UpdatedAt = parseTS(updatedRaw)
	return item, nil
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// nullableTS handles nullable ts.
func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// parseNullTS parses input into a normalized form.
func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	ts := parseTS(v.String)
	return &ts
}
