package ria

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"autoria-leads/internal/domain"
)

// Форматы атрибута data-add-date на карточках выдачи.
var addDateLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

var (
	spacesExpr    = regexp.MustCompile(`\s+`)
	nonDigitsExpr = regexp.MustCompile(`[^\d]`)
)

// Parser разбирает HTML страниц auto.ria.
type Parser struct {
	loc *time.Location
}

var _ domain.ListingParser = (*Parser)(nil)

// NewParser создаёт парсер. loc — таймзона, в которой источник отдаёт даты.
func NewParser(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.UTC
	}
	return &Parser{loc: loc}
}

// ParseSearch извлекает объявления из страницы выдачи.
// Карточки без даты, ссылки или заголовка пропускаются.
func (p *Parser) ParseSearch(html string, now time.Time) ([]domain.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("разбор HTML выдачи: %w", err)
	}

	var listings []domain.Listing
	doc.Find("section.ticket-item").Each(func(_ int, card *goquery.Selection) {
		dateStr, _ := card.Find(".footer_ticket span[data-add-date]").Attr("data-add-date")
		link := card.Find("div.item.ticket-title a.address")
		listingURL, _ := link.Attr("href")
		title, _ := link.Attr("title")
		price := strings.TrimSpace(card.Find(`span.bold.size22.green[data-currency="USD"]`).Text())

		if dateStr == "" || listingURL == "" || title == "" {
			return
		}
		postedAt, ok := p.parseAddDate(dateStr)
		if !ok {
			return
		}
		if price == "" {
			price = "Ціна не вказана"
		}

		listings = append(listings, domain.Listing{
			URL:          listingURL,
			Title:        normalizeText(title),
			Price:        price,
			PriceAmount:  parsePriceAmount(price),
			PostedAt:     postedAt,
			DiscoveredAt: now,
		})
	})

	return listings, nil
}

// ParseDetails извлекает расширенные данные страницы объявления.
func (p *Parser) ParseDetails(html string) (domain.ListingDetails, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return domain.ListingDetails{}, fmt.Errorf("разбор HTML объявления: %w", err)
	}

	details := domain.ListingDetails{
		Title:       normalizeText(doc.Find(".auto-content_title").First().Text()),
		Price:       normalizeText(doc.Find("section.price div.price_value strong").First().Text()),
		Engine:      technicalArgument(doc, "Двигун"),
		Gearbox:     technicalArgument(doc, "Коробка передач"),
		Drivetrain:  technicalArgument(doc, "Привід"),
		Mileage:     technicalArgument(doc, "Пробіг"),
		Description: normalizeText(doc.Find(".additional-data.show-line .full-description").First().Text()),
	}

	seen := make(map[string]struct{})
	doc.Find(".megaphoto-container figure img, #photosBlock img, .photo-620x465 img").Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok || src == "" {
			return
		}
		if _, dup := seen[src]; dup {
			return
		}
		seen[src] = struct{}{}
		details.PhotoURLs = append(details.PhotoURLs, src)
	})

	return details, nil
}

// technicalArgument находит значение характеристики по её подписи
// в парах label/argument технического блока.
func technicalArgument(doc *goquery.Document, label string) string {
	var value string
	doc.Find("dd span.label").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) != label {
			return true
		}
		value = normalizeText(s.Parent().Find("span.argument").First().Text())
		return false
	})
	return value
}

func (p *Parser) parseAddDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range addDateLayouts {
		if ts, err := time.ParseInLocation(layout, raw, p.loc); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func parsePriceAmount(price string) float64 {
	digits := nonDigitsExpr.ReplaceAllString(price, "")
	if digits == "" {
		return 0
	}
	amount, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0
	}
	return amount
}

func normalizeText(text string) string {
	return strings.TrimSpace(spacesExpr.ReplaceAllString(text, " "))
}
