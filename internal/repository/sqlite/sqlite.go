package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"netpulse/internal/domain"

	_ "modernc.org/sqlite"
)

// Repository implements repository.Repository using SQLite
type Repository struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and migrates the schema.
// ":memory:" gives a private in-memory database.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer; one connection also keeps :memory: alive
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		external_id TEXT,
		address TEXT,
		port INTEGER NOT NULL DEFAULT 0,
		status TEXT CHECK (status IS NULL OR status IN ('active', 'inactive')),
		parent_id TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS node_children (
		parent_id TEXT NOT NULL,
		child_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (parent_id, child_id),
		FOREIGN KEY (parent_id) REFERENCES nodes(id) ON DELETE CASCADE
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_nodes_external_id ON nodes(kind, external_id)
		WHERE external_id IS NOT NULL;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_nodes_name ON nodes(kind, name)
		WHERE kind IN ('network', 'building');
	CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent_id);
	CREATE INDEX IF NOT EXISTS idx_node_children_child ON node_children(child_id);
	`

	_, err := r.db.Exec(schema)
	return err
}

// LoadNodes returns all nodes with their ordered child collections
func (r *Repository) LoadNodes(ctx context.Context) ([]*domain.Node, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+nodeColumns+` FROM nodes ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*domain.Node
	byID := make(map[string]*domain.Node)
	for rows.Next() {
		var row nodeRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		node := row.toDomain()
		nodes = append(nodes, node)
		byID[node.ID] = node
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}

	childRows, err := r.db.QueryContext(ctx, `
		SELECT parent_id, child_id FROM node_children ORDER BY parent_id, position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query node children: %w", err)
	}
	defer childRows.Close()

	for childRows.Next() {
		var parentID, childID string
		if err := childRows.Scan(&parentID, &childID); err != nil {
			return nil, fmt.Errorf("failed to scan node child: %w", err)
		}
		if parent := byID[parentID]; parent != nil {
			parent.Children = append(parent.Children, childID)
		}
	}
	if err := childRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating node children: %w", err)
	}

	return nodes, nil
}

// SaveNode inserts or updates a node record
func (r *Repository) SaveNode(ctx context.Context, node *domain.Node) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO nodes (`+nodeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			external_id = excluded.external_id,
			address = excluded.address,
			port = excluded.port,
			status = excluded.status,
			updated_at = excluded.updated_at
	`, nodeInsertArgs(node)...)
	if err != nil {
		return wrapExecError("save node", err)
	}
	return nil
}

// InsertChild creates the node record and appends its backlink in one transaction
func (r *Repository) InsertChild(ctx context.Context, node *domain.Node) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO nodes (`+nodeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, nodeInsertArgs(node)...); err != nil {
			return wrapExecError("insert node", err)
		}
		if node.ParentID == "" {
			return nil
		}
		return appendChild(ctx, tx, node.ParentID, node.ID)
	})
}

// DeleteChild removes the parent's backlink and the node record in one transaction.
// The node's own child collection goes with it; its children's records stay.
func (r *Repository) DeleteChild(ctx context.Context, id, parentID string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if parentID != "" {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM node_children WHERE parent_id = ? AND child_id = ?
			`, parentID, id); err != nil {
				return wrapExecError("remove backlink", err)
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id)
		if err != nil {
			return wrapExecError("delete node", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("node %s: %w", id, domain.ErrNodeNotFound)
		}
		return nil
	})
}

// AddChildRef appends childID to parentID's child collection
func (r *Repository) AddChildRef(ctx context.Context, parentID, childID string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		return appendChild(ctx, tx, parentID, childID)
	})
}

// RemoveChildRef drops childID from parentID's child collection
func (r *Repository) RemoveChildRef(ctx context.Context, parentID, childID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM node_children WHERE parent_id = ? AND child_id = ?
	`, parentID, childID)
	if err != nil {
		return wrapExecError("remove child ref", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("child %s of %s: %w", childID, parentID, domain.ErrNodeNotFound)
	}
	return nil
}

// UpdateStatus persists a node's liveness status
func (r *Repository) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE nodes SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), time.Now().UTC(), id)
	if err != nil {
		return wrapExecError("update status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("node %s: %w", id, domain.ErrNodeNotFound)
	}
	return nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w: %w", domain.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func appendChild(ctx context.Context, tx *sql.Tx, parentID, childID string) error {
	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes WHERE id = ?`, parentID).Scan(&exists); err != nil {
		return wrapExecError("lookup parent", err)
	}
	if exists == 0 {
		return fmt.Errorf("parent %s: %w", parentID, domain.ErrParentNotFound)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO node_children (parent_id, child_id, position)
		VALUES (?, ?, (SELECT COALESCE(MAX(position) + 1, 0) FROM node_children WHERE parent_id = ?))
		ON CONFLICT(parent_id, child_id) DO NOTHING
	`, parentID, childID, parentID); err != nil {
		return wrapExecError("append backlink", err)
	}
	return nil
}

// wrapExecError classifies driver errors: constraint violations become
// ErrDuplicateID, everything else ErrStoreUnavailable.
func wrapExecError(op string, err error) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("failed to %s: %w: %w", op, domain.ErrDuplicateID, err)
	}
	return fmt.Errorf("failed to %s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
