package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/your-org/facegate/internal/config"
	"github.com/your-org/facegate/internal/faceerr"
)

// SMSProvider sends text messages through a Twilio-compatible REST API.
type SMSProvider struct {
	client              *http.Client
	baseURL             string
	accountSID          string
	authToken           string
	messagingServiceSID string
	countryPrefix       string
}

func NewSMSProvider(cfg config.NotifyConfig) *SMSProvider {
	return &SMSProvider{
		client:              &http.Client{Timeout: 10 * time.Second},
		baseURL:             strings.TrimRight(cfg.BaseURL, "/"),
		accountSID:          cfg.AccountSID,
		authToken:           cfg.AuthToken,
		messagingServiceSID: cfg.MessagingServiceSID,
		countryPrefix:       cfg.CountryPrefix,
	}
}

// Send posts one message. Rate limits and provider outages surface as
// transient errors; rejected requests are permanent.
func (p *SMSProvider) Send(ctx context.Context, address, message string) error {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", p.baseURL, p.accountSID)

	form := url.Values{}
	form.Set("To", p.countryPrefix+address)
	form.Set("MessagingServiceSid", p.messagingServiceSID)
	form.Set("Body", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.SetBasicAuth(p.accountSID, p.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return faceerr.Wrap(faceerr.Transient, "send sms", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return faceerr.Newf(faceerr.Transient, "sms provider returned %d: %s", resp.StatusCode, body)
	}
	return faceerr.Newf(faceerr.Notification, "sms provider rejected message (%d): %s", resp.StatusCode, body)
}
