package domain

import "time"

// FallbackPhone подставляется вместо номера, когда раскрытие телефона
// исчерпало все попытки. Объявление всё равно уходит в каналы.
const FallbackPhone = "Телефон доступний на сторінці оголошення"

// Listing описывает одно объявление из выдачи auto.ria.
// После парсинга не изменяется, пайплайн меняет только статус обработки.
type Listing struct {
	URL          string
	Title        string
	Price        string
	PriceAmount  float64
	PostedAt     time.Time
	DiscoveredAt time.Time
}

// ListingDetails содержит расширенные данные страницы объявления
// для публикации в канал с фотографиями.
type ListingDetails struct {
	Title       string
	Price       string
	Engine      string
	Gearbox     string
	Drivetrain  string
	Mileage     string
	Description string
	PhotoURLs   []string
}

// DedupRecord хранит факт отправки объявления.
type DedupRecord struct {
	ListingURL string
	SentAt     time.Time
}

// PendingSMS описывает отложенную SMS, ожидающую разрешённого окна отправки.
// На один номер телефона существует не более одной записи.
type PendingSMS struct {
	ID           string
	Phone        string
	ListingURL   string
	ListingTitle string
	Message      string
	ScheduledFor time.Time
	CreatedAt    time.Time
}

// ExtractionResult — результат раскрытия номера на странице объявления.
// Не сохраняется, живёт в пределах одной диспетчеризации.
type ExtractionResult struct {
	Numbers    []string
	SellerName string
	Succeeded  bool
}

// PrimaryNumber возвращает первый раскрытый номер.
// При нескольких номерах авторитетным считается первый.
func (r ExtractionResult) PrimaryNumber() string {
	if len(r.Numbers) == 0 {
		return ""
	}
	return r.Numbers[0]
}

// ChannelOutcome фиксирует попытку отправки в один канал.
type ChannelOutcome struct {
	Attempted bool   `json:"attempted"`
	Succeeded bool   `json:"succeeded"`
	Err       string `json:"err,omitempty"`
}

// Имена каналов в DispatchOutcome.PerChannel.
const (
	ChannelTelegram = "telegram"
	ChannelSMS      = "sms"
	ChannelCRM      = "crm"
	ChannelRichPost = "rich_post"
)

// DispatchOutcome — итог обработки одного объявления.
// Используется для логов, статуса и событий, в БД не пишется.
type DispatchOutcome struct {
	ListingURL string                    `json:"listing_url"`
	Skipped    bool                      `json:"skipped"`
	SkipReason string                    `json:"skip_reason,omitempty"`
	MarkedSent bool                      `json:"marked_sent"`
	PerChannel map[string]ChannelOutcome `json:"per_channel,omitempty"`
}

// BrowserProfile — случайный отпечаток клиента для запросов к источнику.
type BrowserProfile struct {
	Name              string
	Version           string
	Platform          string
	UserAgent         string
	ViewportWidth     int
	ViewportHeight    int
	IP                string
	TimezoneOffsetMin int
	Headers           map[string]string
}
