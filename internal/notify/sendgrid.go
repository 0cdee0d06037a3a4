package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultSendGridBaseURL = "https://api.sendgrid.com"

type SendGridConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// SendGridMailer posts to the SendGrid v3 mail send endpoint.
type SendGridMailer struct {
	httpClient *resty.Client
}

func NewSendGridMailer(cfg SendGridConfig) *SendGridMailer {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultSendGridBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	client := resty.New().
		SetBaseURL(base).
		SetHeader("Authorization", "Bearer "+cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)

	return &SendGridMailer{httpClient: client}
}

type sgAddress struct {
	Email string `json:"email"`
}

type sgPersonalization struct {
	To []sgAddress `json:"to"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgMailSend struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
}

type sgErrorResponse struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("sendgrid: no recipients")
	}

	to := make([]sgAddress, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, sgAddress{Email: addr})
	}
	payload := sgMailSend{
		Personalizations: []sgPersonalization{{To: to}},
		From:             sgAddress{Email: msg.From},
		Subject:          msg.Subject,
	}
	if msg.Text != "" {
		payload.Content = append(payload.Content, sgContent{Type: "text/plain", Value: msg.Text})
	}
	if msg.HTML != "" {
		payload.Content = append(payload.Content, sgContent{Type: "text/html", Value: msg.HTML})
	}

	apiErr := new(sgErrorResponse)
	resp, err := m.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		SetError(apiErr).
		Post("/v3/mail/send")
	if err != nil {
		return fmt.Errorf("sendgrid: send: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		message := strings.TrimSpace(resp.String())
		if len(apiErr.Errors) > 0 && apiErr.Errors[0].Message != "" {
			message = apiErr.Errors[0].Message
		}
		return fmt.Errorf("sendgrid api error: status=%d, message=%s", resp.StatusCode(), message)
	}
	return nil
}
