package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rzayevsahil/Monity/internal/storage"
)

type appStore struct {
	store *Store
}

func (a *appStore) GetOrCreateID(ctx context.Context, processName, exePath string) (int64, error) {
	if exePath == "" {
		exePath = processName
	}

	cacheKey := processName + "|" + exePath
	if id, ok := a.store.appIDs.Get(cacheKey); ok {
		return id, nil
	}

	var id int64
	err := a.store.db.QueryRowContext(ctx,
		"SELECT id FROM apps WHERE process_name = ? AND exe_path = ?",
		processName, exePath).Scan(&id)
	if err == nil {
		a.store.appIDs.Add(cacheKey, id)
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup app: %w", err)
	}

	// The same binary may have been recorded under a different directory
	// (reinstall, per-user install path). Fold into the existing row when
	// the executable file name matches.
	if folded, ok, err := a.findByExeName(ctx, processName, exePath); err != nil {
		return 0, err
	} else if ok {
		a.store.appIDs.Add(cacheKey, folded)
		return folded, nil
	}

	displayName := ""
	if a.store.resolver != nil {
		displayName = a.store.resolver(exePath)
	}

	now := time.Now().Format(time.RFC3339)
	res, err := a.store.db.ExecContext(ctx, `
		INSERT INTO apps (process_name, exe_path, display_name, category, is_ignored, created_at, updated_at)
		VALUES (?, ?, NULLIF(?, ''), NULL, 0, ?, ?)`,
		processName, exePath, displayName, now, now)
	if err != nil {
		return 0, fmt.Errorf("insert app: %w", err)
	}

	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert app id: %w", err)
	}

	a.store.appIDs.Add(cacheKey, id)
	a.store.logger.Debug().
		Int64("app_id", id).
		Str("process", processName).
		Msg("Registered new tracked application")
	return id, nil
}

func (a *appStore) findByExeName(ctx context.Context, processName, exePath string) (int64, bool, error) {
	fileName := storage.BaseName(exePath)
	if fileName == "" {
		return 0, false, nil
	}

	rows, err := a.store.db.QueryContext(ctx,
		"SELECT id, exe_path FROM apps WHERE process_name = ?", processName)
	if err != nil {
		return 0, false, fmt.Errorf("lookup app by process name: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id int64
		var path string
		if err := rows.Scan(&id, &path); err != nil {
			return 0, false, fmt.Errorf("scan app row: %w", err)
		}
		if storage.BaseName(path) == fileName {
			return id, true, nil
		}
	}
	return 0, false, rows.Err()
}

func (a *appStore) Get(ctx context.Context, id int64) (*storage.App, error) {
	row := a.store.db.QueryRowContext(ctx, `
		SELECT id, process_name, exe_path, COALESCE(display_name, ''), COALESCE(category, ''),
		       is_ignored, created_at, updated_at
		FROM apps WHERE id = ?`, id)

	app, err := scanApp(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get app: %w", err)
	}
	return app, nil
}

func (a *appStore) ProcessNameByID(ctx context.Context, id int64) (string, error) {
	var name string
	err := a.store.db.QueryRowContext(ctx,
		"SELECT process_name FROM apps WHERE id = ?", id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get process name: %w", err)
	}
	return name, nil
}

func (a *appStore) List(ctx context.Context) ([]storage.App, error) {
	rows, err := a.store.db.QueryContext(ctx, `
		SELECT id, process_name, exe_path, COALESCE(display_name, ''), COALESCE(category, ''),
		       is_ignored, created_at, updated_at
		FROM apps
		ORDER BY COALESCE(NULLIF(display_name, ''), process_name)`)
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var apps []storage.App
	for rows.Next() {
		app, err := scanApp(rows)
		if err != nil {
			return nil, fmt.Errorf("scan app: %w", err)
		}
		apps = append(apps, *app)
	}
	return apps, rows.Err()
}

func (a *appStore) SetCategory(ctx context.Context, id int64, category string) error {
	return a.updateApp(ctx, id,
		"UPDATE apps SET category = NULLIF(?, ''), updated_at = ? WHERE id = ?", category)
}

func (a *appStore) SetIgnored(ctx context.Context, id int64, ignored bool) error {
	flag := 0
	if ignored {
		flag = 1
	}
	return a.updateApp(ctx, id,
		"UPDATE apps SET is_ignored = ?, updated_at = ? WHERE id = ?", flag)
}

func (a *appStore) updateApp(ctx context.Context, id int64, query string, value any) error {
	now := time.Now().Format(time.RFC3339)
	res, err := a.store.db.ExecContext(ctx, query, value, now, id)
	if err != nil {
		return fmt.Errorf("update app: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update app: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// BackfillDisplayNames fills display_name where it is still missing. Apps are
// created on the session write path, where name resolution must not block;
// this is the slow path that catches up later.
func (a *appStore) BackfillDisplayNames(ctx context.Context) error {
	if a.store.resolver == nil {
		return nil
	}

	rows, err := a.store.db.QueryContext(ctx,
		"SELECT id, exe_path FROM apps WHERE display_name IS NULL OR display_name = ''")
	if err != nil {
		return fmt.Errorf("list unnamed apps: %w", err)
	}

	type pending struct {
		id      int64
		exePath string
	}
	var unnamed []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.exePath); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan unnamed app: %w", err)
		}
		unnamed = append(unnamed, p)
	}
	if err := rows.Close(); err != nil {
		return err
	}

	now := time.Now().Format(time.RFC3339)
	for _, p := range unnamed {
		name := a.store.resolver(p.exePath)
		if name == "" {
			continue
		}
		if _, err := a.store.db.ExecContext(ctx,
			"UPDATE apps SET display_name = ?, updated_at = ? WHERE id = ?",
			name, now, p.id); err != nil {
			return fmt.Errorf("backfill display name: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApp(row rowScanner) (*storage.App, error) {
	var app storage.App
	var ignored int
	var createdAt, updatedAt string
	if err := row.Scan(&app.ID, &app.ProcessName, &app.ExePath, &app.DisplayName,
		&app.Category, &ignored, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	app.Ignored = ignored != 0
	app.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	app.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &app, nil
}
