package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"text/template"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Raimpz/simple-chat/internal/notify"
)

var templates = template.Must(template.New("mail").Parse(
	`{{define "verification"}}Welcome! Your verification code is: {{.Code}}{{end}}` +
		`{{define "password_reset"}}Use this code to reset your password: {{.Code}}

This code expires in {{.Expiry}}.{{end}}`,
))

var subjects = map[notify.MailType]string{
	notify.MailVerification:  "Verify your SimpleChat Account",
	notify.MailPasswordReset: "Reset Your Password",
}

// Processor turns mail stream entries into outgoing mail.
type Processor struct {
	sender   Sender
	resetTTL time.Duration
	logger   zerolog.Logger
}

func NewProcessor(sender Sender, resetTTL time.Duration, logger zerolog.Logger) *Processor {
	return &Processor{sender: sender, resetTTL: resetTTL, logger: logger}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	job, err := notify.ParseMailJob(msg.Values)
	if err != nil {
		if errors.Is(err, notify.ErrInvalidJob) {
			p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("dropping mail job")
			return nil
		}
		return err
	}

	out, err := p.Render(job)
	if err != nil {
		return err
	}
	if err := p.sender.Send(ctx, out); err != nil {
		return err
	}
	p.logger.Info().Str("message_id", msg.ID).Str("type", string(job.Type)).Str("to", job.Email).Msg("mail sent")
	return nil
}

func (p *Processor) Render(job notify.MailJob) (Message, error) {
	var body bytes.Buffer
	data := map[string]string{"Code": job.Code, "Expiry": formatTTL(p.resetTTL)}
	if err := templates.ExecuteTemplate(&body, string(job.Type), data); err != nil {
		return Message{}, fmt.Errorf("render %s mail: %w", job.Type, err)
	}
	return Message{To: job.Email, Subject: subjects[job.Type], Body: body.String()}, nil
}

func formatTTL(d time.Duration) string {
	if d <= 0 {
		d = 15 * time.Minute
	}
	if d%time.Minute == 0 {
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
	return d.String()
}
