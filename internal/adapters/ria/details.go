package ria

import (
	"context"
	"fmt"

	"autoria-leads/internal/domain"
)

// DetailSource загружает и разбирает страницу объявления.
type DetailSource struct {
	fetcher *Fetcher
	parser  *Parser
}

var _ domain.DetailFetcher = (*DetailSource)(nil)

// NewDetailSource создаёт источник деталей объявления.
func NewDetailSource(fetcher *Fetcher, parser *Parser) *DetailSource {
	return &DetailSource{fetcher: fetcher, parser: parser}
}

// FetchDetails возвращает расширенные данные объявления.
func (d *DetailSource) FetchDetails(ctx context.Context, listingURL string) (domain.ListingDetails, error) {
	html, err := d.fetcher.FetchPage(ctx, listingURL)
	if err != nil {
		return domain.ListingDetails{}, fmt.Errorf("загрузка страницы объявления: %w", err)
	}
	return d.parser.ParseDetails(html)
}
