package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/tuyishimwe/umurinzi/core/alert"
)

type messageRepository struct {
	db *sqlx.DB
}

var _ alert.Repository = (*messageRepository)(nil)

func NewMessageRepository(db *sql.DB) alert.Repository {
	return &messageRepository{db: sqlx.NewDb(db, "postgres")}
}

const messageColumns = `id, student_id, school_id, recipient_name, recipient_phone,
	recipient_email, channel, type, subject, body, sms_body, status, sms_status,
	email_status, retry_count, sent_by, last_attempt_at, created_at, updated_at`

func (repo *messageRepository) CreateMessage(ctx context.Context, m alert.Message) (alert.Message, error) {
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO messages (`+messageColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		m.ID, m.StudentID, m.SchoolID, m.RecipientName, m.RecipientPhone, m.RecipientEmail,
		m.Channel, m.Type, m.Subject, m.Body, m.SMSBody, m.Status, m.SMSStatus, m.EmailStatus,
		m.RetryCount, m.SentBy, m.LastAttemptAt, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return alert.Message{}, errors.Wrap(err, "creating message")
	}
	return m, nil
}

func (repo *messageRepository) GetMessage(ctx context.Context, id string) (alert.Message, error) {
	var m alert.Message
	err := repo.db.GetContext(ctx, &m, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return alert.Message{}, alert.ErrMessageNotFound
	}
	if err != nil {
		return alert.Message{}, errors.Wrap(err, "getting message")
	}
	return m, nil
}

func (repo *messageRepository) UpdateMessage(ctx context.Context, m alert.Message) (alert.Message, error) {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE messages
		 SET status = $2, sms_status = $3, email_status = $4, retry_count = $5,
		     last_attempt_at = $6, updated_at = $7
		 WHERE id = $1`,
		m.ID, m.Status, m.SMSStatus, m.EmailStatus, m.RetryCount, m.LastAttemptAt, m.UpdatedAt,
	)
	if err != nil {
		return alert.Message{}, errors.Wrap(err, "updating message")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return alert.Message{}, alert.ErrMessageNotFound
	}
	return m, nil
}

// QueryRetryable mirrors Message.Retryable in SQL; keep the WHERE clause in
// sync with that method.
func (repo *messageRepository) QueryRetryable(ctx context.Context, maxRetries, limit int) ([]alert.Message, error) {
	var msgs []alert.Message
	err := repo.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages
		 WHERE retry_count < $1
		   AND (status = 'PENDING' OR sms_status = 'FAILED' OR email_status = 'FAILED')
		 ORDER BY created_at
		 LIMIT $2`,
		maxRetries, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying retryable messages")
	}
	return msgs, nil
}
