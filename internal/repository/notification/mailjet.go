package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"digitalMenu/pkg/logger"

	"github.com/pobyzaarif/goshortcute"
)

type MailjetConfig struct {
	MailjetBaseURL           string
	MailjetBasicAuthUsername string
	MailjetBasicAuthPassword string
	MailjetSenderEmail       string
	MailjetSenderName        string
}

type MailjetRepository struct {
	cfg    MailjetConfig
	client *http.Client
}

// NewMailjetRepository uses a 5s client when none is given.
func NewMailjetRepository(cfg MailjetConfig, client *http.Client) *MailjetRepository {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &MailjetRepository{cfg: cfg, client: client}
}

type sendPayload struct {
	Messages []message `json:"Messages"`
}

type address struct {
	Email string `json:"Email"`
	Name  string `json:"Name"`
}

type message struct {
	From     address   `json:"From"`
	To       []address `json:"To"`
	Subject  string    `json:"Subject"`
	TextPart string    `json:"TextPart"`
	HTMLPart string    `json:"HTMLPart"`
}

func (r *MailjetRepository) SendEmail(toName, toEmail, subject, body string) error {
	payload := sendPayload{Messages: []message{{
		From:     address{Email: r.cfg.MailjetSenderEmail, Name: r.cfg.MailjetSenderName},
		To:       []address{{Email: toEmail, Name: toName}},
		Subject:  subject,
		TextPart: body,
		HTMLPart: body,
	}}}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal json payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, r.cfg.MailjetBaseURL+"/v3.1/send", bytes.NewReader(raw))
	if err != nil {
		return err
	}

	basic := goshortcute.StringtoBase64Encode(r.cfg.MailjetBasicAuthUsername + ":" + r.cfg.MailjetBasicAuthPassword)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+basic)

	res, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("mailer request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 200 && res.StatusCode <= 299 {
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	logger.Warn("Mailjet rejected message", "status", res.StatusCode, "response", string(respBody))

	return fmt.Errorf("mailer service return negative response %v", res.StatusCode)
}

// LogMailer stands in for Mailjet in development when no credentials are set.
type LogMailer struct{}

func (LogMailer) SendEmail(toName, toEmail, subject, body string) error {
	logger.Info("Email not sent, mailer disabled", "to", toEmail, "subject", subject, "body", body)
	return nil
}
