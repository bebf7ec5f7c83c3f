package ria

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"autoria-leads/internal/domain"
	"autoria-leads/internal/infra/metrics"
)

const maxBodyBytes = 8 << 20

// Fetcher загружает страницы источника с подменой отпечатка клиента.
type Fetcher struct {
	client    *http.Client
	profiles  domain.ProfileGenerator
	searchURL string
}

var _ domain.ListingFetcher = (*Fetcher)(nil)

// NewFetcher создаёт загрузчик. searchURL — сконфигурированная страница выдачи.
func NewFetcher(client *http.Client, profiles domain.ProfileGenerator, searchURL string, timeout time.Duration) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Fetcher{client: client, profiles: profiles, searchURL: searchURL}
}

// FetchSearchPage загружает страницу выдачи.
func (f *Fetcher) FetchSearchPage(ctx context.Context) (string, error) {
	return f.fetch(ctx, f.searchURL, "search")
}

// FetchPage загружает произвольную страницу источника.
func (f *Fetcher) FetchPage(ctx context.Context, pageURL string) (string, error) {
	return f.fetch(ctx, pageURL, "detail")
}

func (f *Fetcher) fetch(ctx context.Context, pageURL, operation string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("создание запроса: %w", err)
	}

	profile := f.profiles.Generate()
	for name, value := range profile.Headers {
		req.Header.Set(name, value)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "uk-UA,uk;q=0.9,ru;q=0.8")

	start := time.Now()
	resp, err := f.client.Do(req)
	metrics.ObserveNetworkRequest("ria", operation, "auto.ria.com", start, err)
	if err != nil {
		return "", fmt.Errorf("запрос страницы: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("источник вернул %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("чтение тела ответа: %w", err)
	}
	return string(body), nil
}
