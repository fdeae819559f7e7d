package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"net"
	netmail "net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/YOGESHBOTCHA965/W/internal/core/port"
	"github.com/YOGESHBOTCHA965/W/internal/infra/config"
	"github.com/YOGESHBOTCHA965/W/internal/infra/logger"
)

const (
	resetSubject     = "WOW: Password Reset OTP"
	implicitTLSPort  = 465
	defaultSMTPPort  = 587
	defaultDialLimit = 15 * time.Second
)

var resetTemplate = template.Must(template.New("reset").Parse(`<div style="font-family: Arial, sans-serif; max-width: 480px; margin: 0 auto; padding: 32px; background: #1a1a2e; border-radius: 12px; color: #ffffff;">
  <div style="text-align: center; margin-bottom: 24px;">
    <h1 style="color: #FF6B35; font-size: 28px; margin: 0;">W<span style="color: #fff;">O</span>W</h1>
    <p style="color: #888; font-size: 14px;">Work On Wheels</p>
  </div>
  <h2 style="color: #fff; font-size: 20px; text-align: center;">Password Reset</h2>
  <p style="color: #ccc; font-size: 14px;">Hi <strong>{{.Name}}</strong>,</p>
  <p style="color: #ccc; font-size: 14px;">Use this OTP to reset your password:</p>
  <div style="text-align: center; margin: 24px 0;">
    <span style="display: inline-block; background: #FF6B35; color: #fff; font-size: 32px; font-weight: 800; padding: 16px 40px; border-radius: 12px; letter-spacing: 8px;">{{.Code}}</span>
  </div>
  <p style="color: #999; font-size: 12px; text-align: center;">This OTP expires in <strong>{{.ExpiryMinutes}} minutes</strong>.</p>
  <p style="color: #999; font-size: 12px; text-align: center;">If you didn't request this, ignore this email.</p>
  <hr style="border: none; border-top: 1px solid #333; margin: 24px 0;" />
  <p style="color: #666; font-size: 11px; text-align: center;">&copy; WOW (Work On Wheels). All rights reserved.</p>
</div>
`))

// SMTPMailer delivers reset codes as HTML email. Port 465 uses implicit TLS; any other
// port must offer STARTTLS, credentials are never sent in the clear.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	logger   *zap.Logger
	dial     func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewSMTPMailer validates cfg and builds a mailer.
func NewSMTPMailer(cfg config.SMTPSettings, log *zap.Logger) (*SMTPMailer, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, fmt.Errorf("smtp: host is required")
	}
	port := cfg.Port
	if port <= 0 {
		port = defaultSMTPPort
	}
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		from = cfg.Username
	}
	if _, err := netmail.ParseAddress(from); err != nil {
		return nil, fmt.Errorf("smtp: invalid from address: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}

	dialer := &net.Dialer{Timeout: defaultDialLimit}
	return &SMTPMailer{
		host:     host,
		port:     port,
		username: cfg.Username,
		password: cfg.Password,
		from:     from,
		logger:   log,
		dial:     dialer.DialContext,
	}, nil
}

// SendResetOTP renders the reset email and sends it.
func (m *SMTPMailer) SendResetOTP(ctx context.Context, msg port.OTPMessage) error {
	body, err := renderResetEmail(msg)
	if err != nil {
		return err
	}
	raw, err := buildMessage(m.from, msg.To, resetSubject, body)
	if err != nil {
		return err
	}

	if err := m.send(ctx, msg.To, raw); err != nil {
		return fmt.Errorf("smtp: send reset otp: %w", err)
	}

	m.logger.Info("reset otp emailed", zap.String("email", logger.MaskEmail(msg.To)))
	return nil
}

func (m *SMTPMailer) send(ctx context.Context, to string, raw []byte) error {
	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))
	conn, err := m.dial(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	tlsConfig := &tls.Config{ServerName: m.host, MinVersion: tls.VersionTLS12}
	if m.port == implicitTLSPort {
		conn = tls.Client(conn, tlsConfig)
	}

	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return err
	}
	defer client.Close()

	if m.port != implicitTLSPort {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			return fmt.Errorf("server does not support STARTTLS")
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return err
		}
	}

	if m.username != "" {
		if err := client.Auth(smtp.PlainAuth("", m.username, m.password, m.host)); err != nil {
			return err
		}
	}

	sender, err := netmail.ParseAddress(m.from)
	if err != nil {
		return err
	}
	if err := client.Mail(sender.Address); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func renderResetEmail(msg port.OTPMessage) (string, error) {
	var buf bytes.Buffer
	if err := resetTemplate.Execute(&buf, msg); err != nil {
		return "", fmt.Errorf("render reset email: %w", err)
	}
	return buf.String(), nil
}

func buildMessage(from, to, subject, htmlBody string) ([]byte, error) {
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return nil, fmt.Errorf("smtp: header values must not contain line breaks")
	}

	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String()), nil
}

var _ port.OTPMailer = (*SMTPMailer)(nil)
