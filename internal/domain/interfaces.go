package domain

import (
	"context"
	"time"
)

// ListingFetcher загружает страницу выдачи источника.
type ListingFetcher interface {
	FetchSearchPage(ctx context.Context) (string, error)
}

// ListingParser превращает HTML выдачи в список объявлений.
type ListingParser interface {
	ParseSearch(html string, now time.Time) ([]Listing, error)
}

// DetailFetcher загружает и разбирает страницу объявления для богатого поста.
type DetailFetcher interface {
	FetchDetails(ctx context.Context, listingURL string) (ListingDetails, error)
}

// PhoneExtractor раскрывает скрытый номер на странице объявления.
// Ошибки не возвращает: исчерпание попыток отражается в результате.
type PhoneExtractor interface {
	Extract(ctx context.Context, listingURL string) ExtractionResult
}

// Messenger отправляет текстовое уведомление в основной канал.
type Messenger interface {
	SendMessage(ctx context.Context, text string) error
}

// SMSGateway отправляет SMS на список номеров.
type SMSGateway interface {
	SendSMS(ctx context.Context, phones []string, text string) error
}

// LeadCreator заводит лид во внешней CRM.
type LeadCreator interface {
	CreateLead(ctx context.Context, phone, listingURL string) error
}

// RichPoster публикует объявление с фотографиями во вторичный канал.
type RichPoster interface {
	PostRich(ctx context.Context, listingURL string) error
}

// DedupRepo — ограниченное по размеру хранилище уже отправленных объявлений.
type DedupRepo interface {
	Exists(ctx context.Context, listingURL string) (bool, error)
	// MarkSent идемпотентен: повторная вставка под уникальным ограничением
	// считается успехом. Возвращает, была ли запись создана впервые.
	MarkSent(ctx context.Context, listingURL string) (bool, error)
}

// PendingSMSRepo управляет очередью отложенных SMS.
type PendingSMSRepo interface {
	// ScheduleIfAbsent вставляет запись, если на номер ещё нет отложенной SMS.
	ScheduleIfAbsent(ctx context.Context, sms PendingSMS) (bool, error)
	FindDue(ctx context.Context, now time.Time) ([]PendingSMS, error)
	Delete(ctx context.Context, id string) error
}

// ProfileGenerator выдаёт случайный отпечаток браузера.
type ProfileGenerator interface {
	Generate() BrowserProfile
}

// TokenCache хранит короткоживущие токены внешних API.
type TokenCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// EventPublisher публикует итоги диспетчеризации для внешних потребителей.
// Отправка best-effort: ошибка публикации не влияет на пайплайн.
type EventPublisher interface {
	PublishOutcome(ctx context.Context, outcome DispatchOutcome) error
}
