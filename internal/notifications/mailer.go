package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sony/gobreaker/v2"

	"github.com/angelmondragon/florist-backend/pkg/config"
	"github.com/angelmondragon/florist-backend/pkg/logger"
)

// Message is a rendered transactional email.
type Message struct {
	Template  string
	ToEmail   string
	ToName    string
	Subject   string
	PlainText string
	HTML      string
}

// Mailer delivers a rendered message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// ErrPermanent marks a rejection that will not succeed on redelivery.
var ErrPermanent = errors.New("permanent mail failure")

type sendClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridMailer sends through the SendGrid v3 API behind a circuit breaker so
// an outage fails fast and Pub/Sub redelivers later.
type SendGridMailer struct {
	client   sendClient
	from     *mail.Email
	breaker  *gobreaker.CircuitBreaker[*rest.Response]
	logg     *logger.Logger
	deadline time.Duration
}

const defaultSendTimeout = 10 * time.Second

// NewSendGridMailer builds a mailer from configuration.
func NewSendGridMailer(cfg config.SendgridConfig, logg *logger.Logger) (*SendGridMailer, error) {
	if !cfg.Enabled() {
		return nil, errors.New("sendgrid api key and sender are required")
	}
	return newSendGridMailer(sendgrid.NewSendClient(cfg.APIKey), cfg, logg), nil
}

func newSendGridMailer(client sendClient, cfg config.SendgridConfig, logg *logger.Logger) *SendGridMailer {
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	settings := gobreaker.Settings{
		Name:        "sendgrid",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrPermanent)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logg == nil {
				return
			}
			ctx := logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			logg.Warn(ctx, "mail circuit breaker state changed")
		},
	}
	return &SendGridMailer{
		client:   client,
		from:     mail.NewEmail(cfg.FromName, cfg.DefaultFrom),
		breaker:  gobreaker.NewCircuitBreaker[*rest.Response](settings),
		logg:     logg,
		deadline: defaultSendTimeout,
	}
}

func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.ToEmail) == "" {
		return fmt.Errorf("%w: recipient missing for %s", ErrPermanent, msg.Template)
	}
	email := mail.NewSingleEmail(m.from, msg.Subject, mail.NewEmail(msg.ToName, msg.ToEmail), msg.PlainText, msg.HTML)

	sendCtx, cancel := context.WithTimeout(ctx, m.deadline)
	defer cancel()

	_, err := m.breaker.Execute(func() (*rest.Response, error) {
		resp, err := m.client.SendWithContext(sendCtx, email)
		if err != nil {
			return nil, err
		}
		return resp, classifyStatus(resp)
	})
	return err
}

func classifyStatus(resp *rest.Response) error {
	if resp == nil {
		return errors.New("sendgrid returned no response")
	}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == 429 || resp.StatusCode >= 500:
		return fmt.Errorf("sendgrid status %d: %s", resp.StatusCode, resp.Body)
	default:
		return fmt.Errorf("%w: sendgrid status %d: %s", ErrPermanent, resp.StatusCode, resp.Body)
	}
}

// LogMailer writes messages to the log instead of sending them. Used when
// SendGrid is not configured outside production.
type LogMailer struct {
	logg *logger.Logger
}

func NewLogMailer(logg *logger.Logger) *LogMailer {
	return &LogMailer{logg: logg}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if m.logg == nil {
		return nil
	}
	m.logg.Info(m.logg.WithFields(ctx, map[string]any{
		"template": msg.Template,
		"to":       msg.ToEmail,
		"subject":  msg.Subject,
	}), "mail delivery skipped")
	return nil
}
