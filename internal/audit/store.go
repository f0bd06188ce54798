// Package audit provides PostgreSQL-backed storage for issued moderation
// actions. Each record captures the group, the target identity, the action
// taken, the matched term and strike count, and whether the transport
// accepted the action. Recording is best-effort: the engine never blocks a
// moderation decision on the audit trail.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action types recorded in the audit trail.
const (
	ActionDelete = "delete"
	ActionWarn   = "warn"
	ActionRemove = "remove"
	ActionDeny   = "deny"
	ActionNotice = "notice"
)

// Outcomes recorded per action.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// validActions matches the CHECK constraint on the moderation_actions table.
var validActions = map[string]bool{
	ActionDelete: true,
	ActionWarn:   true,
	ActionRemove: true,
	ActionDeny:   true,
	ActionNotice: true,
}

// Store manages moderation action records in PostgreSQL.
type Store struct {
	db *sql.DB
}

// Action represents a single issued moderation action to be persisted.
type Action struct {
	ID       string // assigned on insert when empty
	Group    string
	Identity string
	Action   string // one of the Action* constants
	Term     string // matched banned term, if any
	Strikes  int    // warning count after the action, if applicable
	Outcome  string // "ok" or "failed"
	Detail   string // free-form context (error text, command name)
}

// NewStore creates a new audit store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record inserts an action into PostgreSQL. The action type is validated
// against the allowed set before insertion.
func (s *Store) Record(ctx context.Context, a *Action) error {
	if !validActions[a.Action] {
		return fmt.Errorf("audit: invalid action %q", a.Action)
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}

	const q = `
		INSERT INTO moderation_actions
			(id, group_name, identity, action, term, strikes, outcome, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.ExecContext(ctx, q,
		a.ID, a.Group, a.Identity, a.Action, a.Term, a.Strikes, a.Outcome, a.Detail,
		time.Now().UTC())
	if err != nil {
		return fmt.Errorf("audit: insert action: %w", err)
	}
	return nil
}

// CountByIdentity returns the number of recorded actions against an identity,
// for moderator review tooling.
func (s *Store) CountByIdentity(ctx context.Context, identity string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM moderation_actions WHERE identity = $1`, identity).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("audit: count actions: %w", err)
	}
	return n, nil
}
