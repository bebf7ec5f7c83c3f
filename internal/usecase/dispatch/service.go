package dispatch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"autoria-leads/internal/domain"
	"autoria-leads/internal/infra/metrics"
)

// SMSHandler — шаг конечного автомата отложенных SMS для нового контакта.
type SMSHandler interface {
	HandlePhoneNumbers(ctx context.Context, phone string, listing domain.Listing) error
}

// Composer собирает текст основного уведомления.
type Composer func(listing domain.Listing, phone string) string

// Service — оркестратор доставки одного объявления по всем каналам.
// Политика отметки: объявление считается отправленным, если успешен
// основной канал; CRM и богатый пост — best-effort.
type Service struct {
	dedup     domain.DedupRepo
	extractor domain.PhoneExtractor
	sms       SMSHandler
	messenger domain.Messenger
	leads     domain.LeadCreator
	poster    domain.RichPoster
	events    domain.EventPublisher
	compose   Composer
	log       zerolog.Logger
}

// NewService создаёт оркестратор. leads, poster и events могут быть nil —
// соответствующий канал тогда не задействуется.
func NewService(dedup domain.DedupRepo, extractor domain.PhoneExtractor, sms SMSHandler, messenger domain.Messenger, leads domain.LeadCreator, poster domain.RichPoster, events domain.EventPublisher, compose Composer, logger zerolog.Logger) *Service {
	return &Service{
		dedup:     dedup,
		extractor: extractor,
		sms:       sms,
		messenger: messenger,
		leads:     leads,
		poster:    poster,
		events:    events,
		compose:   compose,
		log:       logger,
	}
}

// ProcessListing прогоняет объявление через извлечение номера и каналы.
// visited — множество объявлений текущего цикла: выдача иногда дублирует
// карточку на одной странице, персистентная дедупликация тут не поможет.
// Любой сбой логируется с URL объявления и не прерывает пакет.
func (s *Service) ProcessListing(ctx context.Context, listing domain.Listing, visited map[string]struct{}) (outcome domain.DispatchOutcome) {
	outcome = domain.DispatchOutcome{
		ListingURL: listing.URL,
		PerChannel: make(map[string]domain.ChannelOutcome),
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("listing", listing.URL).Interface("panic", r).Msg("dispatch: паника при обработке объявления")
			outcome.Skipped = false
			outcome.MarkedSent = false
			outcome.SkipReason = fmt.Sprintf("panic: %v", r)
		}
		s.publish(ctx, outcome)
	}()

	if _, seen := visited[listing.URL]; seen {
		outcome.Skipped = true
		outcome.SkipReason = "повтор в рамках цикла"
		return outcome
	}
	visited[listing.URL] = struct{}{}

	sent, err := s.dedup.Exists(ctx, listing.URL)
	if err != nil {
		// Без ответа хранилища рисковать дублем нельзя.
		s.log.Error().Err(err).Str("listing", listing.URL).Msg("dispatch: проверка дедупликации не удалась")
		outcome.Skipped = true
		outcome.SkipReason = "хранилище дедупликации недоступно"
		return outcome
	}
	if sent {
		outcome.Skipped = true
		outcome.SkipReason = "уже отправлено"
		return outcome
	}

	extraction := s.extractor.Extract(ctx, listing.URL)
	phone := extraction.PrimaryNumber()

	outcome.PerChannel[domain.ChannelSMS] = s.runChannel(domain.ChannelSMS, listing.URL, func() error {
		return s.sms.HandlePhoneNumbers(ctx, phone, listing)
	})

	primary := s.runChannel(domain.ChannelTelegram, listing.URL, func() error {
		return s.messenger.SendMessage(ctx, s.compose(listing, phone))
	})
	outcome.PerChannel[domain.ChannelTelegram] = primary

	if s.leads != nil && extraction.Succeeded {
		outcome.PerChannel[domain.ChannelCRM] = s.runChannel(domain.ChannelCRM, listing.URL, func() error {
			return s.leads.CreateLead(ctx, phone, listing.URL)
		})
	}

	if s.poster != nil {
		outcome.PerChannel[domain.ChannelRichPost] = s.runChannel(domain.ChannelRichPost, listing.URL, func() error {
			return s.poster.PostRich(ctx, listing.URL)
		})
	}

	if primary.Succeeded {
		if _, err := s.dedup.MarkSent(ctx, listing.URL); err != nil {
			s.log.Error().Err(err).Str("listing", listing.URL).Msg("dispatch: не удалось отметить объявление отправленным")
		} else {
			outcome.MarkedSent = true
		}
	}

	return outcome
}

func (s *Service) runChannel(channel, listingURL string, send func() error) domain.ChannelOutcome {
	err := send()
	if err != nil {
		metrics.ChannelSendErrors.WithLabelValues(channel).Inc()
		s.log.Warn().Err(err).Str("listing", listingURL).Str("channel", channel).Msg("dispatch: канал вернул ошибку")
		return domain.ChannelOutcome{Attempted: true, Err: err.Error()}
	}
	return domain.ChannelOutcome{Attempted: true, Succeeded: true}
}

func (s *Service) publish(ctx context.Context, outcome domain.DispatchOutcome) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOutcome(ctx, outcome); err != nil {
		s.log.Warn().Err(err).Str("listing", outcome.ListingURL).Msg("dispatch: публикация события не удалась")
	}
}
