package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"helpdesk/internal/ticket/models"
	id "helpdesk/pkg/domain"
	"helpdesk/pkg/platform/sentinel"
	txcontext "helpdesk/pkg/platform/tx"
)

// PostgresHistoryStore persists the append-only status audit trail.
type PostgresHistoryStore struct {
	db *sql.DB
}

func NewPostgresHistoryStore(db *sql.DB) *PostgresHistoryStore {
	return &PostgresHistoryStore{db: db}
}

func (s *PostgresHistoryStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresHistoryStore) Append(ctx context.Context, entry *models.StatusHistoryEntry) error {
	query := `
		INSERT INTO ticket_status_history (ticket_number, status_id, actor_id, comment, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := s.execer(ctx).QueryRowContext(ctx, query,
		entry.TicketNumber.String(),
		int64(entry.StatusID),
		entry.ActorID.String(),
		entry.Comment,
		entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

func (s *PostgresHistoryStore) Latest(ctx context.Context, number id.TicketNumber) (*models.StatusHistoryEntry, error) {
	query := `
		SELECT id, ticket_number, status_id, actor_id, comment, created_at
		FROM ticket_status_history
		WHERE ticket_number = $1
		ORDER BY id DESC
		LIMIT 1
	`
	return scanHistory(s.execer(ctx).QueryRowContext(ctx, query, number.String()))
}

func (s *PostgresHistoryStore) ListByTicket(ctx context.Context, number id.TicketNumber) ([]models.StatusHistoryEntry, error) {
	query := `
		SELECT id, ticket_number, status_id, actor_id, comment, created_at
		FROM ticket_status_history
		WHERE ticket_number = $1
		ORDER BY id ASC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, number.String())
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []models.StatusHistoryEntry
	for rows.Next() {
		entry, err := scanHistoryRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *entry)
	}
	return out, rows.Err()
}

func scanHistory(row *sql.Row) (*models.StatusHistoryEntry, error) {
	entry, err := scanHistoryRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return entry, err
}

func scanHistoryRow(row rowScanner) (*models.StatusHistoryEntry, error) {
	var (
		e        models.StatusHistoryEntry
		number   string
		actor    string
		statusID int64
	)
	err := row.Scan(&e.ID, &number, &statusID, &actor, &e.Comment, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan history entry: %w", err)
	}
	e.TicketNumber = id.TicketNumber(number)
	e.StatusID = id.StatusID(statusID)
	actorID, err := id.ParseUserID(actor)
	if err != nil {
		return nil, fmt.Errorf("scan history actor: %w", err)
	}
	e.ActorID = actorID
	return &e, nil
}

// PostgresStatusStore resolves status lookups.
type PostgresStatusStore struct {
	db *sql.DB
}

func NewPostgresStatusStore(db *sql.DB) *PostgresStatusStore {
	return &PostgresStatusStore{db: db}
}

func (s *PostgresStatusStore) FindByID(ctx context.Context, statusID id.StatusID) (*models.Status, error) {
	var st models.Status
	var rawID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name FROM ticket_statuses WHERE id = $1`, int64(statusID),
	).Scan(&rawID, &st.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find status: %w", err)
	}
	st.ID = id.StatusID(rawID)
	return &st, nil
}

// PostgresNumberStore reserves ticket numbers in their own table, outside the
// lifecycle transaction, so a rolled-back ticket insert can never recycle a
// number.
type PostgresNumberStore struct {
	db *sql.DB
}

func NewPostgresNumberStore(db *sql.DB) *PostgresNumberStore {
	return &PostgresNumberStore{db: db}
}

func (s *PostgresNumberStore) MaxWithPrefix(ctx context.Context, prefix string) (int, error) {
	// Degraded allocations carry more than five digits after the prefix and
	// are excluded from the sequential scan.
	query := `
		SELECT COALESCE(MAX(CAST(SUBSTRING(number FROM $2) AS INTEGER)), 0)
		FROM ticket_numbers
		WHERE number LIKE $1 AND LENGTH(number) = LENGTH($3) + 5
	`
	var max int
	err := s.db.QueryRowContext(ctx, query, prefix+"%", len(prefix)+1, prefix).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max ticket number: %w", err)
	}
	return max, nil
}

func (s *PostgresNumberStore) Reserve(ctx context.Context, number id.TicketNumber) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ticket_numbers (number, reserved_at) VALUES ($1, NOW())`,
		number.String(),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("reserve ticket number: %w", err)
	}
	return nil
}
