package sqlite

import (
	"database/sql"
	"time"

	"netpulse/internal/domain"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullToTime converts sql.NullTime to time.Time (zero when NULL)
func nullToTime(nt sql.NullTime) time.Time {
	if nt.Valid {
		return nt.Time
	}
	return time.Time{}
}

// ============================================================================
// Node Row Scanner
// ============================================================================
//
// CRITICAL: column order must match between nodeColumns, scanArgs() and
// nodeInsertArgs().

const nodeColumns = `id, kind, name, external_id, address, port, status, parent_id, created_at, updated_at`

// nodeRow holds all columns from a node query for scanning
type nodeRow struct {
	ID         string
	Kind       string
	Name       string
	ExternalID sql.NullString
	Address    sql.NullString
	Port       int
	Status     sql.NullString
	ParentID   sql.NullString
	CreatedAt  sql.NullTime
	UpdatedAt  sql.NullTime
}

// scanArgs returns pointers for rows.Scan in nodeColumns order
func (r *nodeRow) scanArgs() []any {
	return []any{
		&r.ID,
		&r.Kind,
		&r.Name,
		&r.ExternalID,
		&r.Address,
		&r.Port,
		&r.Status,
		&r.ParentID,
		&r.CreatedAt,
		&r.UpdatedAt,
	}
}

// toDomain converts the row into a domain node with an empty child collection
func (r *nodeRow) toDomain() *domain.Node {
	return &domain.Node{
		ID:         r.ID,
		Kind:       domain.NodeKind(r.Kind),
		Name:       r.Name,
		ExternalID: nullToString(r.ExternalID),
		Address:    nullToString(r.Address),
		Port:       r.Port,
		Status:     domain.Status(nullToString(r.Status)),
		ParentID:   nullToString(r.ParentID),
		Children:   []string{},
		CreatedAt:  nullToTime(r.CreatedAt),
		UpdatedAt:  nullToTime(r.UpdatedAt),
	}
}

// nodeInsertArgs returns values in nodeColumns order
func nodeInsertArgs(n *domain.Node) []any {
	return []any{
		n.ID,
		string(n.Kind),
		n.Name,
		stringToNull(n.ExternalID),
		stringToNull(n.Address),
		n.Port,
		stringToNull(string(n.Status)),
		stringToNull(n.ParentID),
		n.CreatedAt,
		n.UpdatedAt,
	}
}
