package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SMSSender delivers a text message to a phone number.
type SMSSender interface {
	Send(ctx context.Context, phone, text string) error
}

// HTTPSMSSender posts messages to an SMS gateway as JSON.
type HTTPSMSSender struct {
	URL    string
	APIKey string
	Client *http.Client
}

type smsPayload struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

func (s *HTTPSMSSender) Send(ctx context.Context, phone, text string) error {
	body, err := json.Marshal(smsPayload{To: phone, Text: text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway responded %d", resp.StatusCode)
	}
	return nil
}

func smsText(ev Event) string {
	return fmt.Sprintf("%s: your booking on %s %s (status %s).",
		ev.Service.Name, ev.Booking.StartDateTime.UTC().Format("02 Jan 15:04"), verb(ev), ev.Booking.Status)
}
