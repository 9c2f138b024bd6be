package mailer

import (
	"context"
	"io"

	"course_checkout/internal/pkg/config"

	"gopkg.in/gomail.v2"
)

// Attachment 二进制附件
type Attachment struct {
	Filename string
	Content  []byte
}

type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string, attachments []Attachment) error
}

type smtpMailer struct {
	dialer *gomail.Dialer
	from   string
	name   string
}

func NewSMTPMailer() Mailer {
	cfg := config.GlobalConfig.SMTP
	return &smtpMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		name:   cfg.FromName,
	}
}

func (m *smtpMailer) Send(ctx context.Context, to, subject, htmlBody string, attachments []Attachment) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, m.name)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	for _, att := range attachments {
		content := att.Content
		msg.Attach(att.Filename, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(content)
			return err
		}))
	}

	// gomail 不接收 context；编排器已对整个任务限时，这里只负责发送
	done := make(chan error, 1)
	go func() {
		done <- m.dialer.DialAndSend(msg)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
