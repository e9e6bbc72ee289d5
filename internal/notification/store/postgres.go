package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"helpdesk/internal/notification/models"
	id "helpdesk/pkg/domain"
	"helpdesk/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresNotificationStore is the durable notification store. Notification
// writes deliberately run outside the lifecycle transaction: each row is its
// own atomic unit.
type PostgresNotificationStore struct {
	db *sql.DB
}

func NewPostgresNotificationStore(db *sql.DB) *PostgresNotificationStore {
	return &PostgresNotificationStore{db: db}
}

const notificationColumns = `id, recipient_id, ticket_number, kind, title, body, read, read_at, message_delivered, message_delivered_at, created_at`

func (s *PostgresNotificationStore) Create(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query,
		n.ID.String(),
		n.RecipientID.String(),
		n.TicketNumber.String(),
		n.Kind.String(),
		n.Title,
		n.Body,
		n.Read,
		n.ReadAt,
		n.MessageDelivered,
		n.MessageDeliveredAt,
		n.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresNotificationStore) FindByID(ctx context.Context, notificationID id.NotificationID) (*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	return scanNotification(s.db.QueryRowContext(ctx, query, notificationID.String()))
}

func (s *PostgresNotificationStore) Update(ctx context.Context, n *models.Notification) error {
	query := `
		UPDATE notifications
		SET read = $2, read_at = $3, message_delivered = $4, message_delivered_at = $5
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		n.ID.String(),
		n.Read,
		n.ReadAt,
		n.MessageDelivered,
		n.MessageDeliveredAt,
	)
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update notification rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresNotificationStore) MarkMessageDelivered(ctx context.Context, notificationID id.NotificationID, deliveredAt time.Time) error {
	query := `
		UPDATE notifications
		SET message_delivered = TRUE, message_delivered_at = $2
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query, notificationID.String(), deliveredAt)
	if err != nil {
		return fmt.Errorf("mark message delivered: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark message delivered rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresNotificationStore) ListByRecipient(ctx context.Context, recipient id.UserID, filter ListFilter) ([]models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient_id = $1`
	args := []any{recipient.String()}
	if filter.Kind != nil {
		args = append(args, filter.Kind.String())
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return s.queryList(ctx, query, args...)
}

func (s *PostgresNotificationStore) ListByTicket(ctx context.Context, number id.TicketNumber) ([]models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE ticket_number = $1 ORDER BY created_at DESC, id DESC`
	return s.queryList(ctx, query, number.String())
}

func (s *PostgresNotificationStore) UnreadCount(ctx context.Context, recipient id.UserID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND read = FALSE`,
		recipient.String(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func (s *PostgresNotificationStore) MarkAllRead(ctx context.Context, recipient id.UserID) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE, read_at = $2 WHERE recipient_id = $1 AND read = FALSE`,
		recipient.String(),
		time.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all read rows affected: %w", err)
	}
	return int(affected), nil
}

func (s *PostgresNotificationStore) queryList(ctx context.Context, query string, args ...any) ([]models.Notification, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		n, err := scanNotificationRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row *sql.Row) (*models.Notification, error) {
	n, err := scanNotificationRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return n, err
}

func scanNotificationRow(row rowScanner) (*models.Notification, error) {
	var (
		n           models.Notification
		rawID       string
		recipient   string
		number      string
		kind        string
		readAt      sql.NullTime
		deliveredAt sql.NullTime
	)
	err := row.Scan(&rawID, &recipient, &number, &kind, &n.Title, &n.Body, &n.Read, &readAt, &n.MessageDelivered, &deliveredAt, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan notification: %w", err)
	}
	notificationID, err := id.ParseNotificationID(rawID)
	if err != nil {
		return nil, fmt.Errorf("scan notification id: %w", err)
	}
	recipientID, err := id.ParseUserID(recipient)
	if err != nil {
		return nil, fmt.Errorf("scan notification recipient: %w", err)
	}
	n.ID = notificationID
	n.RecipientID = recipientID
	n.TicketNumber = id.TicketNumber(number)
	n.Kind = models.Kind(kind)
	if readAt.Valid {
		t := readAt.Time
		n.ReadAt = &t
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time
		n.MessageDeliveredAt = &t
	}
	return &n, nil
}
