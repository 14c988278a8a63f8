package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"infra-monitor/internal/model"
)

const nodeColumns = `id, name, type, host, port, credentials, is_active`

// ActiveNodes returns the active nodes matching filter, ordered by id.
func (s *Store) ActiveNodes(ctx context.Context, filter model.NodeFilter) ([]*model.Node, error) {
	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE is_active = 1`
	var args []any

	if filter.NodeID > 0 {
		query += ` AND id = ?`
		args = append(args, filter.NodeID)
	}
	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(filter.Type))
	}
	query += ` ORDER BY id ASC`

	return s.queryNodes(ctx, query, args...)
}

// ListNodes returns every node, active or not, ordered by id.
func (s *Store) ListNodes(ctx context.Context) ([]*model.Node, error) {
	return s.queryNodes(ctx, `SELECT `+nodeColumns+` FROM nodes ORDER BY id ASC`)
}

// GetNode returns a node by id, or ErrNotFound.
func (s *Store) GetNode(ctx context.Context, id int64) (*model.Node, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id)
	node, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("node %d: %w", id, ErrNotFound)
	}
	return node, err
}

// UpsertNode inserts or updates a node keyed by name and returns its id.
func (s *Store) UpsertNode(ctx context.Context, node *model.Node) (int64, error) {
	creds, err := node.Credentials.Encode()
	if err != nil {
		return 0, fmt.Errorf("failed to encode credentials for %s: %w", node.Name, err)
	}
	var credsArg sql.NullString
	if creds != nil {
		credsArg = sql.NullString{String: string(creds), Valid: true}
	}

	now := toMillis(s.now())
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO nodes (name, type, host, port, credentials, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			type = excluded.type,
			host = excluded.host,
			port = excluded.port,
			credentials = excluded.credentials,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		node.Name, string(node.Type), node.Host, node.Port, credsArg, boolToInt(node.Active), now, now); err != nil {
		return 0, fmt.Errorf("failed to upsert node %s: %w", node.Name, err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM nodes WHERE name = ?`, node.Name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to resolve node id for %s: %w", node.Name, err)
	}
	node.ID = id
	return id, nil
}

func (s *Store) queryNodes(ctx context.Context, query string, args ...any) ([]*model.Node, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*model.Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate nodes: %w", err)
	}
	return nodes, nil
}

func scanNode(r rowScanner) (*model.Node, error) {
	var (
		node     model.Node
		nodeType string
		creds    sql.NullString
		active   int
	)
	if err := r.Scan(&node.ID, &node.Name, &nodeType, &node.Host, &node.Port, &creds, &active); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan node: %w", err)
	}

	t, err := model.ParseNodeType(nodeType)
	if err != nil {
		return nil, fmt.Errorf("node %d: %w", node.ID, err)
	}
	node.Type = t
	node.Active = active == 1

	node.Credentials, err = model.DecodeCredentials(t, []byte(strings.TrimSpace(creds.String)))
	if err != nil {
		return nil, fmt.Errorf("node %d: %w", node.ID, err)
	}
	return &node, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
