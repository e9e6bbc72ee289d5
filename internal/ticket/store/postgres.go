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

// uniqueViolation is the Postgres error code for unique constraint hits.
const uniqueViolation = "23505"

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// PostgresTicketStore is the durable record store for tickets. Lifecycle
// writes participate in the caller's transaction via pkg/platform/tx.
type PostgresTicketStore struct {
	db *sql.DB
}

func NewPostgresTicketStore(db *sql.DB) *PostgresTicketStore {
	return &PostgresTicketStore{db: db}
}

func (s *PostgresTicketStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresTicketStore) Create(ctx context.Context, ticket *models.Ticket) error {
	query := `
		INSERT INTO tickets (number, category_id, project_id, description, status_id, creator_id, assignee_id, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	var assignee any
	if ticket.AssigneeID != nil {
		assignee = ticket.AssigneeID.String()
	}
	_, err := s.execer(ctx).ExecContext(ctx, query,
		ticket.Number.String(),
		ticket.CategoryID,
		ticket.ProjectID,
		ticket.Description,
		int64(ticket.StatusID),
		ticket.CreatorID.String(),
		assignee,
		ticket.Enabled,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

func (s *PostgresTicketStore) FindByNumber(ctx context.Context, number id.TicketNumber) (*models.Ticket, error) {
	query := `
		SELECT number, category_id, project_id, description, status_id, creator_id, assignee_id, enabled, created_at, updated_at
		FROM tickets
		WHERE number = $1
	`
	// FOR UPDATE inside a lifecycle transaction serializes concurrent
	// transitions on the same ticket at the record store, per the locking
	// model of the lifecycle manager.
	if _, inTx := txcontext.From(ctx); inTx {
		query += " FOR UPDATE"
	}
	return scanTicket(s.execer(ctx).QueryRowContext(ctx, query, number.String()))
}

func (s *PostgresTicketStore) Update(ctx context.Context, ticket *models.Ticket) error {
	query := `
		UPDATE tickets
		SET status_id = $2, assignee_id = $3, enabled = $4, updated_at = $5
		WHERE number = $1
	`
	var assignee any
	if ticket.AssigneeID != nil {
		assignee = ticket.AssigneeID.String()
	}
	res, err := s.execer(ctx).ExecContext(ctx, query,
		ticket.Number.String(),
		int64(ticket.StatusID),
		assignee,
		ticket.Enabled,
		ticket.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update ticket rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresTicketStore) List(ctx context.Context, filter models.ListFilter) ([]models.Ticket, error) {
	query := `
		SELECT number, category_id, project_id, description, status_id, creator_id, assignee_id, enabled, created_at, updated_at
		FROM tickets
		WHERE enabled = TRUE
	`
	args := []any{}
	if filter.StatusID != nil {
		args = append(args, int64(*filter.StatusID))
		query += fmt.Sprintf(" AND status_id = $%d", len(args))
	}
	if filter.CreatorID != nil {
		args = append(args, filter.CreatorID.String())
		query += fmt.Sprintf(" AND creator_id = $%d", len(args))
	}
	query += " ORDER BY created_at DESC, number DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var out []models.Ticket
	for rows.Next() {
		ticket, err := scanTicketRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ticket)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row *sql.Row) (*models.Ticket, error) {
	ticket, err := scanTicketRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return ticket, err
}

func scanTicketRow(row rowScanner) (*models.Ticket, error) {
	var (
		t        models.Ticket
		number   string
		creator  string
		assignee sql.NullString
		statusID int64
	)
	err := row.Scan(&number, &t.CategoryID, &t.ProjectID, &t.Description, &statusID, &creator, &assignee, &t.Enabled, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan ticket: %w", err)
	}
	t.Number = id.TicketNumber(number)
	t.StatusID = id.StatusID(statusID)
	creatorID, err := id.ParseUserID(creator)
	if err != nil {
		return nil, fmt.Errorf("scan ticket creator: %w", err)
	}
	t.CreatorID = creatorID
	if assignee.Valid {
		assigneeID, err := id.ParseUserID(assignee.String)
		if err != nil {
			return nil, fmt.Errorf("scan ticket assignee: %w", err)
		}
		t.AssigneeID = &assigneeID
	}
	return &t, nil
}
