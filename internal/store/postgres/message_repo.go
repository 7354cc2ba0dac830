package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"sfcollab/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageStore = (*MessageRepo)(nil)

const messageColumns = `id, sender_id, recipient_id, content, file, message_type, status, is_read, created_at`

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	var file []byte
	if m.File != nil {
		b, err := json.Marshal(m.File)
		if err != nil {
			return fmt.Errorf("encode file: %w", err)
		}
		file = b
	}

	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO direct_messages (sender_id, recipient_id, content, file, message_type, status, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))
		RETURNING id, created_at
	`, m.SenderID, m.RecipientID, m.Content, file, string(m.MessageType), string(m.Status), m.IsRead,
		nullTime(m),
	).Scan(&id, &m.Timestamp)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	m.ID = domain.MessageID(strconv.FormatInt(id, 10))
	return nil
}

func (r *MessageRepo) ListBetween(ctx context.Context, a, b string) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM direct_messages
		WHERE (sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1)
		ORDER BY created_at ASC, id ASC
	`, a, b)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return r.scanMessages(rows)
}

func (r *MessageRepo) LatestBetween(ctx context.Context, a, b string) (*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM direct_messages
		WHERE (sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, a, b)
	if err != nil {
		return nil, fmt.Errorf("latest message: %w", err)
	}
	msgs, err := r.scanMessages(rows)
	if err != nil || len(msgs) == 0 {
		return nil, err
	}
	return msgs[0], nil
}

func (r *MessageRepo) CountUnread(ctx context.Context, senderID, recipientID string) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM direct_messages
		WHERE sender_id = $1 AND recipient_id = $2 AND is_read = FALSE
	`, senderID, recipientID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func (r *MessageRepo) MarkRead(ctx context.Context, ids []domain.MessageID, recipientID string) ([]domain.ReadMark, error) {
	nums := make([]int64, 0, len(ids))
	for _, id := range ids {
		if n, err := strconv.ParseInt(string(id), 10, 64); err == nil {
			nums = append(nums, n)
		}
	}
	if len(nums) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		UPDATE direct_messages SET is_read = TRUE, status = $3
		WHERE id = ANY($1) AND recipient_id = $2 AND is_read = FALSE
		RETURNING id, sender_id
	`, nums, recipientID, string(domain.StatusRead))
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	defer rows.Close()

	var marks []domain.ReadMark
	for rows.Next() {
		var (
			id     int64
			sender string
		)
		if err := rows.Scan(&id, &sender); err != nil {
			return nil, fmt.Errorf("scan read mark: %w", err)
		}
		marks = append(marks, domain.ReadMark{
			ID:       domain.MessageID(strconv.FormatInt(id, 10)),
			SenderID: sender,
		})
	}
	return marks, rows.Err()
}

func (r *MessageRepo) ListCounterparts(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT CASE WHEN sender_id = $1 THEN recipient_id ELSE sender_id END
		FROM direct_messages
		WHERE sender_id = $1 OR recipient_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list counterparts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan counterpart: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ── helpers ──────────────────────────────────────────────────────────────────

func nullTime(m *domain.Message) sql.NullTime {
	return sql.NullTime{Time: m.Timestamp, Valid: !m.Timestamp.IsZero()}
}

func (r *MessageRepo) scanMessages(rows *sql.Rows) ([]*domain.Message, error) {
	defer rows.Close()
	var res []*domain.Message
	for rows.Next() {
		var (
			m       domain.Message
			id      int64
			file    []byte
			msgType string
			status  string
		)
		if err := rows.Scan(&id, &m.SenderID, &m.RecipientID, &m.Content, &file,
			&msgType, &status, &m.IsRead, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.ID = domain.MessageID(strconv.FormatInt(id, 10))
		m.MessageType = domain.MessageType(msgType)
		m.Status = domain.MessageStatus(status)
		if len(file) > 0 {
			m.File = &domain.FileDescriptor{}
			if err := json.Unmarshal(file, m.File); err != nil {
				return nil, fmt.Errorf("decode file: %w", err)
			}
		}
		res = append(res, &m)
	}
	return res, rows.Err()
}
