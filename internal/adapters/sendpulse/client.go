package sendpulse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"autoria-leads/internal/domain"
	"autoria-leads/internal/infra/metrics"
)

const (
	defaultBaseURL = "https://api.sendpulse.com"
	tokenCacheKey  = "sendpulse:access_token"
)

// Client заводит лиды в SendPulse через запуск цепочки automation360.
// OAuth токен кэшируется: живёт около часа, перевыпускать на каждый лид незачем.
type Client struct {
	client       *http.Client
	baseURL      string
	clientID     string
	clientSecret string
	flowName     string
	tokens       domain.TokenCache
	log          zerolog.Logger
}

var _ domain.LeadCreator = (*Client)(nil)

// NewClient создаёт клиента CRM.
func NewClient(client *http.Client, clientID, clientSecret, flowName string, tokens domain.TokenCache, logger zerolog.Logger) *Client {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		client:       client,
		baseURL:      defaultBaseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		flowName:     flowName,
		tokens:       tokens,
		log:          logger,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	cached, err := c.tokens.Get(ctx, tokenCacheKey)
	if err != nil {
		c.log.Warn().Err(err).Msg("sendpulse: кэш токена недоступен")
	}
	if cached != "" {
		return cached, nil
	}

	payload, err := json.Marshal(map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
	})
	if err != nil {
		return "", fmt.Errorf("сериализация запроса токена: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/access_token", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("создание запроса токена: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.ObserveNetworkRequest("sendpulse", "oauth_token", "api.sendpulse.com", start, err)
	if err != nil {
		return "", fmt.Errorf("запрос токена: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("получение токена: статус %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("разбор ответа токена: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("пустой access_token в ответе")
	}

	// Запас в минуту, чтобы не отправить запрос с истекающим токеном.
	ttl := time.Duration(token.ExpiresIn-60) * time.Second
	if ttl > 0 {
		if err := c.tokens.Set(ctx, tokenCacheKey, token.AccessToken, ttl); err != nil {
			c.log.Warn().Err(err).Msg("sendpulse: не удалось закэшировать токен")
		}
	}
	return token.AccessToken, nil
}

type processRequest struct {
	FlowName  string            `json:"flow_name"`
	Variables map[string]string `json:"variables"`
}

// CreateLead запускает цепочку CRM с телефоном и ссылкой на объявление.
func (c *Client) CreateLead(ctx context.Context, phone, listingURL string) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return fmt.Errorf("авторизация в SendPulse: %w", err)
	}

	payload, err := json.Marshal(processRequest{
		FlowName: c.flowName,
		Variables: map[string]string{
			"phone": phone,
			"url":   listingURL,
		},
	})
	if err != nil {
		return fmt.Errorf("сериализация запроса лида: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/automations/process", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("создание запроса лида: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.ObserveNetworkRequest("sendpulse", "automation_process", "api.sendpulse.com", start, err)
	if err != nil {
		return fmt.Errorf("запрос к SendPulse: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("создание лида: статус %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return nil
}
