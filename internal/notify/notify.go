package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type MailType string

const (
	MailVerification  MailType = "verification"
	MailPasswordReset MailType = "password_reset"
)

var ErrInvalidJob = errors.New("invalid mail job")

// MailJob is one entry on the mail stream.
type MailJob struct {
	Type  MailType
	Email string
	Code  string
}

func (j MailJob) Values() map[string]any {
	return map[string]any{
		"type":  string(j.Type),
		"email": j.Email,
		"code":  j.Code,
	}
}

// ParseMailJob decodes stream entry fields.
func ParseMailJob(values map[string]any) (MailJob, error) {
	field := func(name string) string {
		s, _ := values[name].(string)
		return s
	}
	job := MailJob{Type: MailType(field("type")), Email: field("email"), Code: field("code")}
	switch job.Type {
	case MailVerification, MailPasswordReset:
	default:
		return MailJob{}, fmt.Errorf("%w: unknown type %q", ErrInvalidJob, job.Type)
	}
	if job.Email == "" || job.Code == "" {
		return MailJob{}, fmt.Errorf("%w: email and code are required", ErrInvalidJob)
	}
	return job, nil
}

// QueueNotifier hands mail jobs to the worker through a Redis stream.
type QueueNotifier struct {
	client redis.Cmdable
	stream string
}

func NewQueueNotifier(client redis.Cmdable, stream string) *QueueNotifier {
	return &QueueNotifier{client: client, stream: stream}
}

func (n *QueueNotifier) enqueue(ctx context.Context, job MailJob) error {
	if err := n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		Values: job.Values(),
	}).Err(); err != nil {
		return fmt.Errorf("enqueue %s mail: %w", job.Type, err)
	}
	return nil
}

func (n *QueueNotifier) SendVerification(ctx context.Context, email, code string) error {
	return n.enqueue(ctx, MailJob{Type: MailVerification, Email: email, Code: code})
}

func (n *QueueNotifier) SendPasswordReset(ctx context.Context, email, code string) error {
	return n.enqueue(ctx, MailJob{Type: MailPasswordReset, Email: email, Code: code})
}

// LogNotifier writes codes to the log. Used when no Redis is configured.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendVerification(_ context.Context, email, code string) error {
	n.log.Info().Str("type", string(MailVerification)).Str("email", email).Str("code", code).Msg("mail not queued")
	return nil
}

func (n *LogNotifier) SendPasswordReset(_ context.Context, email, code string) error {
	n.log.Info().Str("type", string(MailPasswordReset)).Str("email", email).Str("code", code).Msg("mail not queued")
	return nil
}
