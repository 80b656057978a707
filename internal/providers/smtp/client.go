package smtp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"syscall"
	"time"

	mail "github.com/wneessen/go-mail"

	"showreg/internal/store"
)

// Message is one rendered mail ready for delivery.
type Message struct {
	To      string
	BCC     string
	Subject string
	Body    string
}

// Client attempts delivery through one SMTP account per call. Failover across
// accounts is the executor's job; the client only classifies failures.
type Client struct {
	Timeout time.Duration
}

func (c *Client) Deliver(ctx context.Context, account store.EmailAccount, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(account.FromAddress); err != nil {
		return &DeliveryError{Err: fmt.Errorf("from address: %w", err)}
	}
	if err := m.To(msg.To); err != nil {
		return &DeliveryError{Err: fmt.Errorf("recipient address: %w", err)}
	}
	if msg.BCC != "" {
		if err := m.Bcc(msg.BCC); err != nil {
			return &DeliveryError{Err: fmt.Errorf("bcc address: %w", err)}
		}
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	opts := []mail.Option{
		mail.WithPort(account.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(account.User),
		mail.WithPassword(account.Secret),
		mail.WithTimeout(timeout),
	}
	if account.Secure {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}

	client, err := mail.NewClient(account.Host, opts...)
	if err != nil {
		return classify(err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.DialWithContext(sendCtx); err != nil {
		return classify(err)
	}
	defer func() { _ = client.Close() }()

	if err := client.Send(m); err != nil {
		return classify(err)
	}
	return nil
}

// DeliveryError wraps a transport failure with its retry classification.
type DeliveryError struct {
	Retryable bool
	Code      int
	Err       error
}

func (e *DeliveryError) Error() string {
	kind := "fatal"
	if e.Retryable {
		kind = "retryable"
	}
	if e.Code > 0 {
		return fmt.Sprintf("smtp %s failure (code %d): %v", kind, e.Code, e.Err)
	}
	return fmt.Sprintf("smtp %s failure: %v", kind, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// classify maps a transport error to retryable (timeouts, connection trouble,
// 4xx temporary SMTP codes) or fatal (5xx permanent rejections, bad addresses).
func classify(err error) *DeliveryError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &DeliveryError{Retryable: true, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &DeliveryError{Retryable: true, Err: err}
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return &DeliveryError{Retryable: true, Err: err}
	}

	var tpe *textproto.Error
	if errors.As(err, &tpe) {
		return &DeliveryError{Retryable: tpe.Code >= 400 && tpe.Code < 500, Code: tpe.Code, Err: err}
	}
	if code := leadingSMTPCode(err.Error()); code > 0 {
		return &DeliveryError{Retryable: code >= 400 && code < 500, Code: code, Err: err}
	}

	// dial/handshake errors without a server code: worth another account
	return &DeliveryError{Retryable: true, Err: err}
}

// leadingSMTPCode digs a 3-digit reply code out of an error string like
// "421 4.7.0 try again later".
func leadingSMTPCode(s string) int {
	for _, part := range strings.Fields(s) {
		if len(part) == 3 {
			if code, err := strconv.Atoi(part); err == nil && code >= 200 && code < 600 {
				return code
			}
		}
	}
	return 0
}

// ShouldRetry reports whether another account is worth trying.
func ShouldRetry(err error) bool {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Retryable
	}
	return false
}

// Backoff spaces consecutive attempts for one recipient.
func Backoff(attempt int) time.Duration {
	base := []time.Duration{200 * time.Millisecond, 600 * time.Millisecond, 1400 * time.Millisecond}
	if attempt <= 0 {
		return base[0]
	}
	if attempt >= len(base) {
		return base[len(base)-1]
	}
	return base[attempt]
}
