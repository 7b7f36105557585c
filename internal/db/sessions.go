package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const sessionColumns = `id, user_id, title, message_count, total_tokens, last_model,
	last_message_preview, last_message_at, last_activity_at, created_at, updated_at`

type CreateSessionParams struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Title  string
}

func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) (ChatSession, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO chat_sessions (id, user_id, title)
		VALUES ($1, $2, $3)
		RETURNING `+sessionColumns,
		arg.ID, arg.UserID, arg.Title)
	return scanSession(row)
}

func (q *Queries) GetSession(ctx context.Context, id uuid.UUID) (ChatSession, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM chat_sessions WHERE id = $1`, id)
	return scanSession(row)
}

func (q *Queries) ListSessionsByUser(ctx context.Context, userID uuid.UUID) ([]ChatSession, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+sessionColumns+` FROM chat_sessions
		WHERE user_id = $1
		ORDER BY last_activity_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]ChatSession, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// DeleteSession removes the session; messages cascade via FK.
func (q *Queries) DeleteSession(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM chat_sessions WHERE id = $1`, id)
	return err
}

type RecomputeSessionRollupParams struct {
	SessionID     uuid.UUID
	PreviewLength int32
}

// RecomputeSessionRollup rebuilds the session's counters and last-message
// fields from the current full set of its messages. A full rescan rather
// than an incremental delta: idempotent and self-healing against drift.
func (q *Queries) RecomputeSessionRollup(ctx context.Context, arg RecomputeSessionRollupParams) (ChatSession, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE chat_sessions s SET
			message_count        = agg.message_count,
			total_tokens         = agg.total_tokens,
			last_model           = COALESCE(last_msg.model, ''),
			last_message_preview = COALESCE(left(last_msg.content, $2), ''),
			last_message_at      = last_msg.created_at,
			last_activity_at     = now(),
			updated_at           = now()
		FROM (
			SELECT count(*)::bigint AS message_count,
			       COALESCE(sum(input_tokens + output_tokens), 0)::bigint AS total_tokens
			FROM chat_messages
			WHERE session_id = $1
		) agg
		LEFT JOIN LATERAL (
			SELECT model, content, created_at
			FROM chat_messages
			WHERE session_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) last_msg ON true
		WHERE s.id = $1
		RETURNING s.id, s.user_id, s.title, s.message_count, s.total_tokens, s.last_model,
			s.last_message_preview, s.last_message_at, s.last_activity_at, s.created_at, s.updated_at`,
		arg.SessionID, arg.PreviewLength)
	return scanSession(row)
}

type InsertMessageParams struct {
	ID           uuid.UUID
	SessionID    uuid.UUID
	Role         string
	Content      string
	Model        string
	InputTokens  int64
	OutputTokens int64
	ElapsedMs    int64
	ErrorMessage string
}

func (q *Queries) InsertMessage(ctx context.Context, arg InsertMessageParams) (ChatMessage, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO chat_messages (id, session_id, role, content, model, input_tokens, output_tokens, elapsed_ms, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, session_id, role, content, model, input_tokens, output_tokens, elapsed_ms, error_message, created_at`,
		arg.ID, arg.SessionID, arg.Role, arg.Content, arg.Model,
		arg.InputTokens, arg.OutputTokens, arg.ElapsedMs, arg.ErrorMessage)
	return scanMessage(row)
}

type UpdateMessageParams struct {
	ID           uuid.UUID
	Content      string
	OutputTokens int64
	ElapsedMs    int64
	ErrorMessage string
}

// UpdateMessage applies a streaming completion update to an existing message.
func (q *Queries) UpdateMessage(ctx context.Context, arg UpdateMessageParams) (ChatMessage, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE chat_messages SET
			content       = $2,
			output_tokens = $3,
			elapsed_ms    = $4,
			error_message = $5
		WHERE id = $1
		RETURNING id, session_id, role, content, model, input_tokens, output_tokens, elapsed_ms, error_message, created_at`,
		arg.ID, arg.Content, arg.OutputTokens, arg.ElapsedMs, arg.ErrorMessage)
	return scanMessage(row)
}

func (q *Queries) GetMessage(ctx context.Context, id uuid.UUID) (ChatMessage, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, session_id, role, content, model, input_tokens, output_tokens, elapsed_ms, error_message, created_at
		FROM chat_messages WHERE id = $1`, id)
	return scanMessage(row)
}

func (q *Queries) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM chat_messages WHERE id = $1`, id)
	return err
}

func (q *Queries) ListSessionMessages(ctx context.Context, sessionID uuid.UUID) ([]ChatMessage, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, session_id, role, content, model, input_tokens, output_tokens, elapsed_ms, error_message, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]ChatMessage, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (ChatSession, error) {
	var s ChatSession
	var lastMessageAt *time.Time
	err := row.Scan(&s.ID, &s.UserID, &s.Title, &s.MessageCount, &s.TotalTokens,
		&s.LastModel, &s.LastMessagePreview, &lastMessageAt, &s.LastActivityAt,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return ChatSession{}, err
	}
	s.LastMessageAt = lastMessageAt
	return s, nil
}

func scanMessage(row rowScanner) (ChatMessage, error) {
	var m ChatMessage
	err := row.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Model,
		&m.InputTokens, &m.OutputTokens, &m.ElapsedMs, &m.ErrorMessage, &m.CreatedAt)
	if err != nil {
		return ChatMessage{}, err
	}
	return m, nil
}
