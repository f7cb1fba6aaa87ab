package utils

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/habitly/habitd/config"
)

// Mailer sends plain text email through the configured SMTP server. It is the
// delivery backend for reminder notifications.
type Mailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

// NewMailer builds a Mailer from the SMTP section of cfg.
func NewMailer(cfg config.AppConfig) *Mailer {
	return &Mailer{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
		TLS:      cfg.SMTPTLS,
	}
}

// SendReminder emails recipient a reminder for habitName.
func (m *Mailer) SendReminder(ctx context.Context, recipient, habitName string) error {
	subject, body := ReminderMessage(habitName)
	return m.SendMail(ctx, recipient, subject, body)
}

// ReminderMessage renders the reminder email.
func ReminderMessage(habitName string) (subject, body string) {
	subject = fmt.Sprintf("Reminder: %s", habitName)
	body = fmt.Sprintf("Hi,\r\n\r\nThis is your reminder to complete \"%s\" today.\r\nKeep the streak going!\r\n", habitName)
	return subject, body
}

// BuildMessage assembles headers and body into an RFC 5322 message.
func (m *Mailer) BuildMessage(to, subject, body string) []byte {
	fromName := m.FromName
	if fromName == "" {
		fromName = "habitd"
	}
	headers := map[string]string{
		"From":         fmt.Sprintf("%s <%s>", mime.BEncoding.Encode("UTF-8", fromName), m.From),
		"To":           to,
		"Subject":      mime.BEncoding.Encode("UTF-8", subject),
		"MIME-Version": "1.0",
		"Content-Type": "text/plain; charset=UTF-8",
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var msg strings.Builder
	for _, k := range keys {
		msg.WriteString(fmt.Sprintf("%s: %s\r\n", k, headers[k]))
	}
	msg.WriteString("\r\n")
	msg.WriteString(body)
	return []byte(msg.String())
}

// SendMail sends a plain text email.
func (m *Mailer) SendMail(ctx context.Context, to, subject, body string) error {
	if m.Host == "" || m.From == "" {
		return fmt.Errorf("smtp not configured")
	}
	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	auth := smtp.PlainAuth("", m.Username, m.Password, m.Host)
	msg := m.BuildMessage(to, subject, body)

	d := net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	// ensure we don't hang forever
	deadline := time.Now().Add(15 * time.Second)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, m.Host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()
	if m.TLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: m.Host}); err != nil {
				return err
			}
		}
	}
	if m.Username != "" {
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(m.From); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	wc, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write(msg); err != nil {
		_ = wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return c.Quit()
}
