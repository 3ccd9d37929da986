package devplane

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"edgepub/internal/controlplane"
	"edgepub/internal/durable"

	"github.com/containerd/errdefs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS namespaces (
	id         TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	name       TEXT NOT NULL,
	script     TEXT NOT NULL DEFAULT '',
	class      TEXT NOT NULL DEFAULT '',
	UNIQUE (account_id, name)
);
CREATE TABLE IF NOT EXISTS scripts (
	account_id  TEXT NOT NULL,
	name        TEXT NOT NULL,
	body        BLOB NOT NULL,
	bindings    TEXT NOT NULL,
	workers_dev INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (account_id, name)
);
CREATE TABLE IF NOT EXISTS subdomains (
	account_id TEXT PRIMARY KEY,
	subdomain  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS routes (
	id      TEXT PRIMARY KEY,
	zone_id TEXT NOT NULL,
	pattern TEXT NOT NULL,
	script  TEXT NOT NULL,
	UNIQUE (zone_id, pattern)
);
CREATE TABLE IF NOT EXISTS schedules (
	account_id TEXT NOT NULL,
	script     TEXT NOT NULL,
	position   INTEGER NOT NULL,
	cron       TEXT NOT NULL,
	PRIMARY KEY (account_id, script, position)
);
`

// Store keeps the emulated control plane state in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the store at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (s *Store) ListNamespaces(ctx context.Context, accountID string) ([]durable.NamespaceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, script, class FROM namespaces WHERE account_id = ? ORDER BY rowid`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query namespaces: %w", err)
	}
	defer rows.Close()

	out := []durable.NamespaceRecord{}
	for rows.Next() {
		var rec durable.NamespaceRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Script, &rec.Class); err != nil {
			return nil, fmt.Errorf("scan namespace: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CreateNamespace inserts a namespace. A namespace bound to a script requires
// the script to exist already.
func (s *Store) CreateNamespace(ctx context.Context, accountID string, req durable.CreateNamespaceRequest) (durable.NamespaceRecord, error) {
	if strings.TrimSpace(req.Name) == "" {
		return durable.NamespaceRecord{}, fmt.Errorf("namespace name is required: %w", errdefs.ErrInvalidArgument)
	}
	if err := s.requireImplementation(ctx, accountID, req.Script, req.Class); err != nil {
		return durable.NamespaceRecord{}, err
	}

	rec := durable.NamespaceRecord{ID: newID(), Name: req.Name, Script: req.Script, Class: req.Class}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO namespaces (id, account_id, name, script, class) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, accountID, rec.Name, rec.Script, rec.Class)
	if err != nil {
		if isUniqueViolation(err) {
			return durable.NamespaceRecord{}, fmt.Errorf("namespace %q already exists: %w", req.Name, errdefs.ErrConflict)
		}
		return durable.NamespaceRecord{}, fmt.Errorf("insert namespace: %w", err)
	}
	return rec, nil
}

func (s *Store) UpdateNamespace(ctx context.Context, accountID, namespaceID string, req durable.UpdateNamespaceRequest) (durable.NamespaceRecord, error) {
	if err := s.requireImplementation(ctx, accountID, req.Script, req.Class); err != nil {
		return durable.NamespaceRecord{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE namespaces SET script = ?, class = ? WHERE account_id = ? AND id = ?`,
		req.Script, req.Class, accountID, namespaceID)
	if err != nil {
		return durable.NamespaceRecord{}, fmt.Errorf("update namespace: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return durable.NamespaceRecord{}, fmt.Errorf("update namespace: %w", err)
	} else if n == 0 {
		return durable.NamespaceRecord{}, fmt.Errorf("namespace %s: %w", namespaceID, errdefs.ErrNotFound)
	}

	rec := durable.NamespaceRecord{ID: namespaceID}
	err = s.db.QueryRowContext(ctx, `SELECT name, script, class FROM namespaces WHERE id = ?`, namespaceID).
		Scan(&rec.Name, &rec.Script, &rec.Class)
	if err != nil {
		return durable.NamespaceRecord{}, fmt.Errorf("read namespace: %w", err)
	}
	return rec, nil
}

func (s *Store) requireImplementation(ctx context.Context, accountID, script, class string) error {
	if script == "" && class == "" {
		return nil
	}
	if script == "" || class == "" {
		return fmt.Errorf("script and class must be set together: %w", errdefs.ErrInvalidArgument)
	}
	exists, err := s.scriptExists(ctx, accountID, script)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("script %q does not exist: %w", script, errdefs.ErrInvalidArgument)
	}
	return nil
}

// PutScript stores a script. Every durable object binding must reference an
// existing namespace of the account.
func (s *Store) PutScript(ctx context.Context, accountID, name string, body []byte, bindings []controlplane.Binding) error {
	for _, b := range bindings {
		if b.Type != controlplane.BindingTypeDurableObjectNamespace {
			continue
		}
		var n int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM namespaces WHERE account_id = ? AND id = ?`, accountID, b.NamespaceID).Scan(&n)
		if err != nil {
			return fmt.Errorf("check binding %s: %w", b.Name, err)
		}
		if n == 0 {
			return fmt.Errorf("binding %s references unknown namespace %q: %w", b.Name, b.NamespaceID, errdefs.ErrInvalidArgument)
		}
	}

	encoded, err := encodeBindings(bindings)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scripts (account_id, name, body, bindings) VALUES (?, ?, ?, ?)
		ON CONFLICT (account_id, name) DO UPDATE SET body = excluded.body, bindings = excluded.bindings`,
		accountID, name, body, encoded)
	if err != nil {
		return fmt.Errorf("store script: %w", err)
	}
	return nil
}

// Script returns a stored script body and its bindings.
func (s *Store) Script(ctx context.Context, accountID, name string) ([]byte, []controlplane.Binding, error) {
	var (
		body    []byte
		encoded string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT body, bindings FROM scripts WHERE account_id = ? AND name = ?`, accountID, name).Scan(&body, &encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("script %q: %w", name, errdefs.ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read script: %w", err)
	}
	bindings, err := decodeBindings(encoded)
	if err != nil {
		return nil, nil, err
	}
	return body, bindings, nil
}

func (s *Store) scriptExists(ctx context.Context, accountID, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scripts WHERE account_id = ? AND name = ?`, accountID, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check script: %w", err)
	}
	return n > 0, nil
}

func (s *Store) SetSubdomain(ctx context.Context, accountID, subdomain string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subdomains (account_id, subdomain) VALUES (?, ?)
		ON CONFLICT (account_id) DO UPDATE SET subdomain = excluded.subdomain`,
		accountID, subdomain)
	if err != nil {
		return fmt.Errorf("store subdomain: %w", err)
	}
	return nil
}

func (s *Store) Subdomain(ctx context.Context, accountID string) (string, error) {
	var sub string
	err := s.db.QueryRowContext(ctx, `SELECT subdomain FROM subdomains WHERE account_id = ?`, accountID).Scan(&sub)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("account %s has no workers.dev subdomain: %w", accountID, errdefs.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read subdomain: %w", err)
	}
	return sub, nil
}

func (s *Store) EnableWorkersDev(ctx context.Context, accountID, script string, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scripts SET workers_dev = ? WHERE account_id = ? AND name = ?`, enabled, accountID, script)
	if err != nil {
		return fmt.Errorf("update script: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("script %q: %w", script, errdefs.ErrNotFound)
	}
	return nil
}

func (s *Store) ListRoutes(ctx context.Context, zoneID string) ([]controlplane.Route, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, pattern, script FROM routes WHERE zone_id = ? ORDER BY rowid`, zoneID)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	defer rows.Close()

	out := []controlplane.Route{}
	for rows.Next() {
		var r controlplane.Route
		if err := rows.Scan(&r.ID, &r.Pattern, &r.Script); err != nil {
			return nil, fmt.Errorf("scan route: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) CreateRoute(ctx context.Context, zoneID string, route controlplane.Route) (controlplane.Route, error) {
	if strings.TrimSpace(route.Pattern) == "" {
		return controlplane.Route{}, fmt.Errorf("route pattern is required: %w", errdefs.ErrInvalidArgument)
	}
	route.ID = newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO routes (id, zone_id, pattern, script) VALUES (?, ?, ?, ?)`,
		route.ID, zoneID, route.Pattern, route.Script)
	if err != nil {
		if isUniqueViolation(err) {
			return controlplane.Route{}, fmt.Errorf("route %q already exists: %w", route.Pattern, errdefs.ErrConflict)
		}
		return controlplane.Route{}, fmt.Errorf("insert route: %w", err)
	}
	return route, nil
}

// ReplaceSchedules swaps the cron triggers of a script in one transaction.
func (s *Store) ReplaceSchedules(ctx context.Context, accountID, script string, crons []string) error {
	exists, err := s.scriptExists(ctx, accountID, script)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("script %q: %w", script, errdefs.ErrNotFound)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schedules WHERE account_id = ? AND script = ?`, accountID, script); err != nil {
		return fmt.Errorf("clear schedules: %w", err)
	}
	for i, cron := range crons {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schedules (account_id, script, position, cron) VALUES (?, ?, ?, ?)`,
			accountID, script, i, cron); err != nil {
			return fmt.Errorf("insert schedule: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) Schedules(ctx context.Context, accountID, script string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cron FROM schedules WHERE account_id = ? AND script = ? ORDER BY position`, accountID, script)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var cron string
		if err := rows.Scan(&cron); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		out = append(out, cron)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
