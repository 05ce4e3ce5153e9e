package alert

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tuyishimwe/umurinzi/core"
	"github.com/tuyishimwe/umurinzi/core/student"
)

type (
	Service interface {
		// SendAlert renders and persists an alert for the student's primary
		// guardian and attempts delivery on every requested channel.
		// Channel failures are recorded on the message, never returned.
		SendAlert(ctx context.Context, req SendRequest) (Message, error)
		// RetryMessage resets the message (status PENDING, retry count 0)
		// and re-attempts every requested channel that has not succeeded.
		RetryMessage(ctx context.Context, id string) (Message, error)
		// ProcessPendingMessages re-attempts retryable messages; returns the
		// number processed.
		ProcessPendingMessages(ctx context.Context) (int, error)

		GetMessage(ctx context.Context, id string) (Message, error)
	}

	service struct {
		repo     Repository
		students student.Repository
		email    core.EmailSender
		sms      core.SMSSender
		logger   core.Logger
		conf     *core.Config
		nowFunc  func() time.Time
	}
)

func NewService(
	repo Repository,
	students student.Repository,
	email core.EmailSender,
	sms core.SMSSender,
	logger core.Logger,
	conf *core.Config,
) Service {
	return &service{
		repo:     repo,
		students: students,
		email:    email,
		sms:      sms,
		logger:   logger,
		conf:     conf,
		nowFunc:  time.Now,
	}
}

func (svc *service) SendAlert(ctx context.Context, req SendRequest) (Message, error) {
	if err := req.Validate(); err != nil {
		return Message{}, err
	}

	st, err := svc.students.GetStudent(ctx, req.StudentID)
	if err != nil {
		return Message{}, err
	}
	guardian, ok := st.PrimaryGuardian()
	if !ok {
		return Message{}, core.NewValidationError(
			errors.New("student has no guardian contact"),
			core.FieldError{Field: "student_id", Error: "student has no guardian contact"},
		)
	}

	rendered, err := renderAlert(req.Type, templateData{
		Student:  st,
		Guardian: guardian,
		Vars:     req.Variables,
		AppName:  svc.conf.AppName,
	})
	if err != nil {
		return Message{}, errors.Wrap(err, "rendering alert")
	}

	now := svc.nowFunc().UTC()
	m := Message{
		ID:             uuid.NewString(),
		StudentID:      st.ID,
		SchoolID:       st.SchoolID,
		RecipientName:  guardian.Name,
		RecipientPhone: guardian.Phone,
		RecipientEmail: guardian.Email,
		Channel:        req.Channel,
		Type:           req.Type,
		Subject:        rendered.subject,
		Body:           rendered.email,
		SMSBody:        rendered.smsBody,
		Status:         StatusPending,
		SentBy:         req.ActorID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if m.Channel.WantsSMS() {
		m.SMSStatus = StatusPending
	}
	if m.Channel.WantsEmail() {
		m.EmailStatus = StatusPending
	}
	if m, err = svc.repo.CreateMessage(ctx, m); err != nil {
		return Message{}, err
	}

	svc.attemptChannels(ctx, &m)
	return svc.finishAttempt(ctx, m)
}

func (svc *service) RetryMessage(ctx context.Context, id string) (Message, error) {
	m, err := svc.repo.GetMessage(ctx, id)
	if err != nil {
		return Message{}, err
	}

	// manual retry resets the message and re-attempts every requested
	// channel that has not yet succeeded
	m.Status = StatusPending
	m.RetryCount = 0
	if m.Channel.WantsSMS() && m.SMSStatus != StatusSent {
		m.SMSStatus = StatusPending
	}
	if m.Channel.WantsEmail() && m.EmailStatus != StatusSent {
		m.EmailStatus = StatusPending
	}

	svc.attemptChannels(ctx, &m)
	return svc.finishAttempt(ctx, m)
}

func (svc *service) ProcessPendingMessages(ctx context.Context) (int, error) {
	msgs, err := svc.repo.QueryRetryable(ctx, svc.conf.Alert.MaxRetries, 100)
	if err != nil {
		return 0, err
	}

	for i := range msgs {
		m := msgs[i]
		m.RetryCount++
		svc.attemptChannels(ctx, &m)
		if _, err := svc.finishAttempt(ctx, m); err != nil {
			svc.logger.Error(fmt.Sprintf("updating message %s: %v", m.ID, err), err)
		}
	}
	return len(msgs), nil
}

func (svc *service) GetMessage(ctx context.Context, id string) (Message, error) {
	return svc.repo.GetMessage(ctx, id)
}

// attemptChannels tries each requested channel that has not already
// succeeded. Each channel's outcome lands on its own status field; delivery
// errors are logged and recovered here, never propagated.
func (svc *service) attemptChannels(ctx context.Context, m *Message) {
	if m.Channel.WantsSMS() && m.SMSStatus != StatusSent {
		if err := svc.sendSMS(ctx, m); err != nil {
			svc.logger.Warn(fmt.Sprintf("message %s: sms delivery failed: %v", m.ID, err), err)
			m.SMSStatus = StatusFailed
		} else {
			m.SMSStatus = StatusSent
		}
	}
	if m.Channel.WantsEmail() && m.EmailStatus != StatusSent {
		if err := svc.sendEmail(ctx, m); err != nil {
			svc.logger.Warn(fmt.Sprintf("message %s: email delivery failed: %v", m.ID, err), err)
			m.EmailStatus = StatusFailed
		} else {
			m.EmailStatus = StatusSent
		}
	}
}

func (svc *service) sendSMS(ctx context.Context, m *Message) error {
	if m.RecipientPhone == "" {
		return errors.New("recipient has no phone number")
	}
	return svc.sms.Send(ctx, &core.SMSMessage{To: m.RecipientPhone, Body: m.SMSBody})
}

func (svc *service) sendEmail(ctx context.Context, m *Message) error {
	if m.RecipientEmail == "" {
		return errors.New("recipient has no email address")
	}
	return svc.email.Send(ctx, &core.EmailMessage{
		To:          []mail.Address{{Name: m.RecipientName, Address: m.RecipientEmail}},
		Subject:     m.Subject,
		TextContent: m.Body,
	})
}

func (svc *service) finishAttempt(ctx context.Context, m Message) (Message, error) {
	now := svc.nowFunc().UTC()
	m.LastAttemptAt = &now
	m.UpdatedAt = now
	m.Status = m.ComputeStatus(svc.conf.Alert.MaxRetries)
	return svc.repo.UpdateMessage(ctx, m)
}
