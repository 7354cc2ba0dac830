package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"sfcollab/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageStore = (*MessageRepo)(nil)

const messageColumns = `id, sender_id, recipient_id, content, file, message_type, status, is_read, created_at_ns`

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	file, err := encodeFile(m.File)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (sender_id, recipient_id, content, file, message_type, status, is_read, created_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.SenderID, m.RecipientID, m.Content, file, string(m.MessageType), string(m.Status), m.IsRead, m.Timestamp.UnixNano())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	m.ID = domain.MessageID(strconv.FormatInt(id, 10))
	return nil
}

func (r *MessageRepo) ListBetween(ctx context.Context, a, b string) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE (sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)
		ORDER BY created_at_ns ASC, id ASC
	`, a, b, b, a)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return scanMessages(rows)
}

func (r *MessageRepo) LatestBetween(ctx context.Context, a, b string) (*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE (sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)
		ORDER BY created_at_ns DESC, id DESC
		LIMIT 1
	`, a, b, b, a)
	if err != nil {
		return nil, fmt.Errorf("latest message: %w", err)
	}
	msgs, err := scanMessages(rows)
	if err != nil || len(msgs) == 0 {
		return nil, err
	}
	return msgs[0], nil
}

func (r *MessageRepo) CountUnread(ctx context.Context, senderID, recipientID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE sender_id = ? AND recipient_id = ? AND is_read = 0
	`, senderID, recipientID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func (r *MessageRepo) MarkRead(ctx context.Context, ids []domain.MessageID, recipientID string) ([]domain.ReadMark, error) {
	args := make([]any, 0, len(ids)+1)
	for _, id := range ids {
		n, err := strconv.ParseInt(string(id), 10, 64)
		if err != nil {
			continue
		}
		args = append(args, n)
	}
	if len(args) == 0 {
		return nil, nil
	}
	in := `(?` + strings.Repeat(",?", len(args)-1) + `)`
	args = append(args, recipientID)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, sender_id FROM messages
		WHERE id IN `+in+` AND recipient_id = ? AND is_read = 0
		ORDER BY id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("select unread: %w", err)
	}
	var marks []domain.ReadMark
	for rows.Next() {
		var (
			id     int64
			sender string
		)
		if err := rows.Scan(&id, &sender); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan read mark: %w", err)
		}
		marks = append(marks, domain.ReadMark{
			ID:       domain.MessageID(strconv.FormatInt(id, 10)),
			SenderID: sender,
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unread: %w", err)
	}
	if len(marks) == 0 {
		return nil, nil
	}

	statusArgs := append([]any{string(domain.StatusRead)}, args...)
	if _, err := tx.ExecContext(ctx, `
		UPDATE messages SET is_read = 1, status = ?
		WHERE id IN `+in+` AND recipient_id = ? AND is_read = 0
	`, statusArgs...); err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return marks, nil
}

func (r *MessageRepo) ListCounterparts(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT CASE WHEN sender_id = ? THEN recipient_id ELSE sender_id END
		FROM messages
		WHERE sender_id = ? OR recipient_id = ?
	`, userID, userID, userID)
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

func scanMessages(rows *sql.Rows) ([]*domain.Message, error) {
	defer rows.Close()
	var res []*domain.Message
	for rows.Next() {
		var (
			m    domain.Message
			id   int64
			file sql.NullString
			ns   int64
		)
		if err := rows.Scan(&id, &m.SenderID, &m.RecipientID, &m.Content, &file,
			&m.MessageType, &m.Status, &m.IsRead, &ns); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.ID = domain.MessageID(strconv.FormatInt(id, 10))
		m.Timestamp = time.Unix(0, ns).UTC()
		if file.Valid {
			f, err := decodeFile(file.String)
			if err != nil {
				return nil, err
			}
			m.File = f
		}
		res = append(res, &m)
	}
	return res, rows.Err()
}

func encodeFile(f *domain.FileDescriptor) (sql.NullString, error) {
	if f == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode file: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeFile(s string) (*domain.FileDescriptor, error) {
	var f domain.FileDescriptor
	if err := json.Unmarshal([]byte(s), &f); err != nil {
		return nil, fmt.Errorf("decode file: %w", err)
	}
	return &f, nil
}
