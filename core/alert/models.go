package alert

import (
	"time"
)

type Channel string

const (
	ChannelSMS   Channel = "SMS"
	ChannelEmail Channel = "EMAIL"
	ChannelBoth  Channel = "BOTH"
)

func (c Channel) WantsSMS() bool   { return c == ChannelSMS || c == ChannelBoth }
func (c Channel) WantsEmail() bool { return c == ChannelEmail || c == ChannelBoth }

type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

type TemplateType string

const (
	TemplateRiskAlert   TemplateType = "RISK_ALERT"
	TemplateAbsence     TemplateType = "ABSENCE_ALERT"
	TemplatePerformance TemplateType = "PERFORMANCE_ALERT"
	TemplateGeneral     TemplateType = "GENERAL"
)

// Message is one guardian/staff alert. Channel delivery outcomes are tracked
// independently in SMSStatus/EmailStatus; the overall Status is a monotone
// function of them (see ComputeStatus).
type Message struct {
	ID        string `db:"id" json:"id"`
	StudentID string `db:"student_id" json:"student_id"`
	SchoolID  string `db:"school_id" json:"school_id"`

	RecipientName  string `db:"recipient_name" json:"recipient_name"`
	RecipientPhone string `db:"recipient_phone" json:"recipient_phone"`
	RecipientEmail string `db:"recipient_email" json:"recipient_email"`

	Channel Channel      `db:"channel" json:"channel"`
	Type    TemplateType `db:"type" json:"type"`
	Subject string       `db:"subject" json:"subject"`
	Body    string       `db:"body" json:"body"`
	SMSBody string       `db:"sms_body" json:"sms_body"`

	Status      Status `db:"status" json:"status"`
	SMSStatus   Status `db:"sms_status" json:"sms_status"`
	EmailStatus Status `db:"email_status" json:"email_status"`
	RetryCount  int    `db:"retry_count" json:"retry_count"`

	SentBy        string     `db:"sent_by" json:"sent_by"`
	LastAttemptAt *time.Time `db:"last_attempt_at" json:"last_attempt_at"` // UTC
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`           // UTC
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`           // UTC
}

// ComputeStatus derives the overall status from the channel statuses:
// SENT as soon as any requested channel succeeded, FAILED only once every
// requested channel failed and the retry budget is spent, PENDING otherwise.
func (m *Message) ComputeStatus(maxRetries int) Status {
	var anySent, allFailed bool
	allFailed = true
	if m.Channel.WantsSMS() {
		anySent = anySent || m.SMSStatus == StatusSent
		allFailed = allFailed && m.SMSStatus == StatusFailed
	}
	if m.Channel.WantsEmail() {
		anySent = anySent || m.EmailStatus == StatusSent
		allFailed = allFailed && m.EmailStatus == StatusFailed
	}

	switch {
	case anySent:
		return StatusSent
	case allFailed && m.RetryCount >= maxRetries:
		return StatusFailed
	default:
		return StatusPending
	}
}

// Retryable reports whether the sweep should re-attempt this message.
func (m *Message) Retryable(maxRetries int) bool {
	if m.Status == StatusSent {
		// channel-scoped retry: an overall-SENT message may still have a
		// failed secondary channel worth re-attempting
		return m.Channel == ChannelBoth && (m.SMSStatus == StatusFailed || m.EmailStatus == StatusFailed) && m.RetryCount < maxRetries
	}
	return m.RetryCount < maxRetries
}

// SendRequest is an explicit alert request from a write path or the API.
type SendRequest struct {
	StudentID string            `json:"student_id" validate:"required"`
	ActorID   string            `json:"actor_id" validate:"required"`
	Channel   Channel           `json:"channel" validate:"required,oneof=SMS EMAIL BOTH"`
	Type      TemplateType      `json:"type" validate:"required,oneof=RISK_ALERT ABSENCE_ALERT PERFORMANCE_ALERT GENERAL"`
	Variables map[string]string `json:"variables"`
}
