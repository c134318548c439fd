package email

import (
	"fmt"
	"net/smtp"
	"strings"

	"cabinsite/common"
	"cabinsite/models"
)

type EmailService struct {
	host     string
	port     string
	user     string
	password string
	from     string

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailService(cfg common.SMTPConfig) *EmailService {
	return &EmailService{
		host:     cfg.Host,
		port:     cfg.Port,
		user:     cfg.User,
		password: cfg.Password,
		from:     cfg.From,
		send:     smtp.SendMail,
	}
}

// Enabled reports whether an SMTP relay is configured.
func (e *EmailService) Enabled() bool {
	return e != nil && e.host != "" && e.from != ""
}

// SendReviewNotice tells the moderator a new review is waiting for approval.
func (e *EmailService) SendReviewNotice(to string, review models.Review) error {
	if !e.Enabled() || to == "" {
		return nil
	}

	subject := fmt.Sprintf("Новый отзыв от %s (%d/5)", review.Name, review.Rating)
	body := fmt.Sprintf(`Здравствуйте!

На сайте оставлен новый отзыв, он ожидает модерации.

Имя: %s
Email: %s
Оценка: %d из 5

%s

Отзыв появится на сайте после одобрения в панели администратора.
`, review.Name, orDash(review.Email), review.Rating, review.Comment)

	return e.sendPlain(to, subject, body)
}

func (e *EmailService) sendPlain(to, subject, body string) error {
	message := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/plain; charset=UTF-8\r\n"+
		"\r\n"+
		"%s\r\n", e.from, to, headerValue(subject), body)

	var auth smtp.Auth
	if e.user != "" {
		auth = smtp.PlainAuth("", e.user, e.password, e.host)
	}
	addr := fmt.Sprintf("%s:%s", e.host, e.port)

	if err := e.send(addr, auth, e.from, []string{to}, []byte(message)); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}

// headerValue drops line breaks so user input cannot inject headers.
func headerValue(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
