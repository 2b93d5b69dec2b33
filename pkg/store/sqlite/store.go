// Package sqlite provides a SQLite-backed roll and preset repository.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lemonberrylabs/dicenotation/pkg/rolllog"
	"github.com/lemonberrylabs/dicenotation/pkg/store"
	"github.com/lemonberrylabs/dicenotation/pkg/store/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const memoryPath = ":memory:"

// Store persists rolls and presets in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ store.Repository = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store and applies embedded migrations. The path
// ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := memoryPath
	if path != memoryPath {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == memoryPath {
		// every connection to :memory: is a separate database
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SaveRoll inserts one roll record.
func (s *Store) SaveRoll(ctx context.Context, roll *store.Roll) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(roll.ID) == "" {
		return fmt.Errorf("roll id is required")
	}
	if roll.CreateTime.IsZero() {
		roll.CreateTime = time.Now().UTC()
	}

	diceJSON, err := json.Marshal(roll.Dice)
	if err != nil {
		return fmt.Errorf("encode dice: %w", err)
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO rolls (id, notation, canonical, total, dice_json, seed, preset, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		roll.ID,
		roll.Notation,
		roll.Canonical,
		roll.Total,
		string(diceJSON),
		roll.Seed,
		roll.Preset,
		toMillis(roll.CreateTime),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("roll '%s' already exists", roll.ID)
		}
		return fmt.Errorf("save roll: %w", err)
	}
	return nil
}

const rollColumns = `id, notation, canonical, total, dice_json, seed, preset, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRoll(row scanner) (*store.Roll, error) {
	var roll store.Roll
	var diceJSON string
	var createdAt int64
	if err := row.Scan(
		&roll.ID,
		&roll.Notation,
		&roll.Canonical,
		&roll.Total,
		&diceJSON,
		&roll.Seed,
		&roll.Preset,
		&createdAt,
	); err != nil {
		return nil, err
	}
	roll.Dice = []rolllog.Entry{}
	if err := json.Unmarshal([]byte(diceJSON), &roll.Dice); err != nil {
		return nil, fmt.Errorf("decode dice: %w", err)
	}
	roll.CreateTime = fromMillis(createdAt)
	return &roll, nil
}

// GetRoll returns one roll by id.
func (s *Store) GetRoll(ctx context.Context, id string) (*store.Roll, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+rollColumns+` FROM rolls WHERE id = ?`, id)
	roll, err := scanRoll(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.RollNotFound(id)
		}
		return nil, fmt.Errorf("get roll: %w", err)
	}
	return roll, nil
}

// ListRolls returns up to limit rolls, newest first.
func (s *Store) ListRolls(ctx context.Context, limit int) ([]*store.Roll, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+rollColumns+` FROM rolls ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list rolls: %w", err)
	}
	defer rows.Close()

	result := []*store.Roll{}
	for rows.Next() {
		roll, err := scanRoll(rows)
		if err != nil {
			return nil, fmt.Errorf("scan roll: %w", err)
		}
		result = append(result, roll)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rolls: %w", err)
	}
	return result, nil
}

// PutPreset inserts or replaces a preset, keeping the original create time.
func (s *Store) PutPreset(ctx context.Context, preset *store.Preset) (*store.Preset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(preset.Name) == "" {
		return nil, fmt.Errorf("preset name is required")
	}

	now := time.Now().UTC()
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO presets (name, notation, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   notation = excluded.notation,
		   description = excluded.description,
		   updated_at = excluded.updated_at`,
		preset.Name,
		preset.Notation,
		preset.Description,
		toMillis(now),
		toMillis(now),
	)
	if err != nil {
		return nil, fmt.Errorf("put preset: %w", err)
	}
	return s.GetPreset(ctx, preset.Name)
}

const presetColumns = `name, notation, description, created_at, updated_at`

func scanPreset(row scanner) (*store.Preset, error) {
	var p store.Preset
	var createdAt, updatedAt int64
	if err := row.Scan(&p.Name, &p.Notation, &p.Description, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.CreateTime = fromMillis(createdAt)
	p.UpdateTime = fromMillis(updatedAt)
	return &p, nil
}

// GetPreset returns one preset by name.
func (s *Store) GetPreset(ctx context.Context, name string) (*store.Preset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+presetColumns+` FROM presets WHERE name = ?`, name)
	p, err := scanPreset(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.PresetNotFound(name)
		}
		return nil, fmt.Errorf("get preset: %w", err)
	}
	return p, nil
}

// ListPresets returns every preset ordered by name.
func (s *Store) ListPresets(ctx context.Context) ([]*store.Preset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+presetColumns+` FROM presets ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	defer rows.Close()

	result := []*store.Preset{}
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan preset: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate presets: %w", err)
	}
	return result, nil
}

// DeletePreset removes a preset.
func (s *Store) DeletePreset(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM presets WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete preset: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete preset: %w", err)
	}
	if n == 0 {
		return store.PresetNotFound(name)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

const migrationTable = "schema_migrations"

// applyMigrations executes each embedded .sql file at most once, in name order.
func applyMigrations(sqlDB *sql.DB, migrationFS fs.FS) error {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if _, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		var count int
		if err := sqlDB.QueryRow(`SELECT COUNT(*) FROM `+migrationTable+` WHERE name = ?`, file).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if count > 0 {
			continue
		}

		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}

		tx, err := sqlDB.BeginTx(context.Background(), nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(upMigration(string(content))); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`,
			file,
			toMillis(time.Now()),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

// upMigration returns the SQL in the "-- +migrate Up" section.
func upMigration(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	start := strings.Index(content, up)
	if start == -1 {
		return content
	}
	content = content[start+len(up):]
	if end := strings.Index(content, down); end != -1 {
		content = content[:end]
	}
	return content
}
