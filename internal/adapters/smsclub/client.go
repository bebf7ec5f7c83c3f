package smsclub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"autoria-leads/internal/domain"
	"autoria-leads/internal/infra/metrics"
)

const defaultBaseURL = "https://im.smsclub.mobi/sms/send"

// Client отправляет SMS через шлюз smsclub.mobi.
type Client struct {
	client  *http.Client
	baseURL string
	token   string
	sender  string
}

var _ domain.SMSGateway = (*Client)(nil)

// NewClient создаёт клиента шлюза. sender — альфа-имя отправителя.
func NewClient(client *http.Client, token, sender string) *Client {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if sender == "" {
		sender = "AUTO"
	}
	return &Client{client: client, baseURL: defaultBaseURL, token: token, sender: sender}
}

type sendRequest struct {
	Phone   []string `json:"phone"`
	Message string   `json:"message"`
	SrcAddr string   `json:"src_addr"`
}

// SendSMS отправляет текст на список номеров.
func (c *Client) SendSMS(ctx context.Context, phones []string, text string) error {
	if len(phones) == 0 {
		return nil
	}

	payload, err := json.Marshal(sendRequest{Phone: phones, Message: text, SrcAddr: c.sender})
	if err != nil {
		return fmt.Errorf("сериализация запроса SMS: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("создание запроса SMS: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.ObserveNetworkRequest("smsclub", "send", "sms_gateway", start, err)
	if err != nil {
		return fmt.Errorf("запрос к SMS шлюзу: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("SMS шлюз вернул %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return nil
}
