package telegram

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"autoria-leads/internal/domain"
	"autoria-leads/internal/infra/metrics"
)

// Публикуем ровно 10 фото: первые три плюс семь случайных из остальных.
const postPhotoCount = 10

// ErrNotEnoughPhotos возвращается, когда у объявления меньше 10 фотографий.
var ErrNotEnoughPhotos = errors.New("у объявления меньше 10 фотографий")

// Poster публикует объявление с фотографиями во вторичный канал.
// В подписи указывается контактный телефон самого канала, не продавца.
type Poster struct {
	bot          *tgbotapi.BotAPI
	channelID    int64
	contactPhone string
	details      domain.DetailFetcher
	rng          *rand.Rand
}

var _ domain.RichPoster = (*Poster)(nil)

// NewPoster создаёт постер канала.
func NewPoster(bot *tgbotapi.BotAPI, channelID int64, contactPhone string, details domain.DetailFetcher, rng *rand.Rand) *Poster {
	return &Poster{bot: bot, channelID: channelID, contactPhone: contactPhone, details: details, rng: rng}
}

// PostRich загружает страницу объявления и публикует медиагруппу с подписью.
func (p *Poster) PostRich(ctx context.Context, listingURL string) error {
	details, err := p.details.FetchDetails(ctx, listingURL)
	if err != nil {
		return fmt.Errorf("загрузка деталей объявления: %w", err)
	}
	if len(details.PhotoURLs) < postPhotoCount {
		return ErrNotEnoughPhotos
	}

	photos := p.selectPhotos(details.PhotoURLs)
	caption := BuildCaption(details, p.contactPhone)

	media := make([]interface{}, 0, len(photos))
	for i, photoURL := range photos {
		photo := tgbotapi.NewInputMediaPhoto(tgbotapi.FileURL(photoURL))
		if i == 0 {
			photo.Caption = caption
		}
		media = append(media, photo)
	}

	group := tgbotapi.NewMediaGroup(p.channelID, media)
	start := time.Now()
	_, err = p.bot.SendMediaGroup(group)
	metrics.ObserveNetworkRequest("telegram", "send_media_group", "bot_api", start, err)
	if err != nil {
		return fmt.Errorf("отправка медиагруппы: %w", err)
	}
	return nil
}

// selectPhotos берёт первые три фото и семь случайных из оставшихся.
func (p *Poster) selectPhotos(all []string) []string {
	head := all[:3]
	rest := append([]string(nil), all[3:]...)
	p.rng.Shuffle(len(rest), func(i, j int) {
		rest[i], rest[j] = rest[j], rest[i]
	})
	selected := make([]string, 0, postPhotoCount)
	selected = append(selected, head...)
	selected = append(selected, rest[:postPhotoCount-len(head)]...)
	return selected
}
