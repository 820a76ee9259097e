package mailer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// SMTPConfig describes the smarthost the client submits to. DKIM signing and
// MX routing are the smarthost's concern.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Encryption string // "starttls", "tls" or "none"
	Timeout    time.Duration
}

// SMTPClient submits messages to a configured smarthost
type SMTPClient struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

// NewSMTPClient creates a new SMTP submission client
func NewSMTPClient(cfg SMTPConfig, logger *slog.Logger) *SMTPClient {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Encryption == "" {
		cfg.Encryption = "starttls"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPClient{cfg: cfg, logger: logger}
}

// Send submits the message. Any error is a delivery failure; the caller
// decides what to record, there is no retry at this layer.
func (c *SMTPClient) Send(ctx context.Context, msg *Message) error {
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))

	var auth sasl.Client
	if c.cfg.Username != "" {
		auth = sasl.NewPlainClient("", c.cfg.Username, c.cfg.Password)
	}

	start := time.Now()
	body := bytes.NewReader(msg.Encode())

	var err error
	switch c.cfg.Encryption {
	case "tls":
		err = smtp.SendMailTLS(addr, auth, msg.From, []string{msg.To}, body)
	default:
		// STARTTLS when offered, which covers "starttls" and "none"
		err = smtp.SendMail(addr, auth, msg.From, []string{msg.To}, body)
	}
	if err != nil {
		return fmt.Errorf("smtp submission to %s failed: %w", addr, err)
	}

	c.logger.Debug("message submitted",
		"to", msg.To,
		"subject", msg.Subject,
		"duration", time.Since(start))
	return nil
}
