package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/seismolink/siteapi/internal/domain"
)

const messageColumns = `id, kind, name, email, phone, company, subject, body, read, ip, created_at, read_at`

// MessageRepository implements domain.MessageRepository for SQLite
type MessageRepository struct {
	db *sql.DB
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create stores a new message
func (r *MessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	var readAt any
	if msg.ReadAt != nil {
		readAt = formatTime(*msg.ReadAt)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, string(msg.Kind), msg.Name, msg.Email, msg.Phone, msg.Company,
		msg.Subject, msg.Body, msg.Read, msg.IP, formatTime(msg.CreatedAt), readAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	return nil
}

// GetByID retrieves a message by ID
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)

	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return msg, nil
}

// List retrieves messages newest first
func (r *MessageRepository) List(ctx context.Context, params domain.MessageListParams) ([]*domain.Message, int, error) {
	var conds []string
	var args []any

	if params.Kind != nil {
		conds = append(conds, "kind = ?")
		args = append(args, string(*params.Kind))
	}
	if params.Read != nil {
		conds = append(conds, "read = ?")
		args = append(args, *params.Read)
	}
	if params.Query != "" {
		like := "%" + params.Query + "%"
		conds = append(conds, "(name LIKE ? OR email LIKE ? OR subject LIKE ? OR body LIKE ?)")
		args = append(args, like, like, like, like)
	}

	where := whereClause(conds)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages`+where+` ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		append(args, limit, params.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]*domain.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		msgs = append(msgs, msg)
	}

	return msgs, total, rows.Err()
}

// SetRead marks a message read or unread
func (r *MessageRepository) SetRead(ctx context.Context, id string, read bool, at time.Time) (bool, error) {
	var readAt any
	if read {
		readAt = formatTime(at)
	}

	res, err := r.db.ExecContext(ctx, `UPDATE messages SET read = ?, read_at = ? WHERE id = ?`, read, readAt, id)
	if err != nil {
		return false, fmt.Errorf("failed to update message: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes a message
func (r *MessageRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete message: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetStats summarises the inbox
func (r *MessageRepository) GetStats(ctx context.Context) (*domain.MessageStats, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT kind, read, COUNT(*) FROM messages GROUP BY kind, read`)
	if err != nil {
		return nil, fmt.Errorf("failed to get message stats: %w", err)
	}
	defer rows.Close()

	stats := &domain.MessageStats{}
	for rows.Next() {
		var kind string
		var read bool
		var count int
		if err := rows.Scan(&kind, &read, &count); err != nil {
			return nil, err
		}
		addMessageCount(stats, domain.MessageKind(kind), read, count)
	}

	return stats, rows.Err()
}

func addMessageCount(stats *domain.MessageStats, kind domain.MessageKind, read bool, count int) {
	stats.Total += count
	if !read {
		stats.Unread += count
	}

	switch kind {
	case domain.MessageKindContact:
		stats.Contact += count
		if !read {
			stats.ContactUnread += count
		}
	case domain.MessageKindNewsletter:
		stats.Newsletter += count
		if !read {
			stats.NewsletterUnread += count
		}
	}
}

func scanMessage(row rowScanner) (*domain.Message, error) {
	msg := &domain.Message{}
	var kind, createdAt string
	var readAt sql.NullString

	err := row.Scan(
		&msg.ID, &kind, &msg.Name, &msg.Email, &msg.Phone, &msg.Company,
		&msg.Subject, &msg.Body, &msg.Read, &msg.IP, &createdAt, &readAt,
	)
	if err != nil {
		return nil, err
	}

	msg.Kind = domain.MessageKind(kind)

	if msg.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if readAt.Valid {
		t, err := parseTime(readAt.String)
		if err != nil {
			return nil, err
		}
		msg.ReadAt = &t
	}

	return msg, nil
}
