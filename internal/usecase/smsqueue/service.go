package smsqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"autoria-leads/internal/domain"
	"autoria-leads/internal/infra/metrics"
)

// Config задаёт разрешённое окно отправки [StartHour, EndHour) и паузу
// между SMS в одном проходе.
type Config struct {
	StartHour int
	EndHour   int
	SendDelay time.Duration
}

// Service реализует конечный автомат отложенных SMS.
// Состояния номера: нет действия → отложено → отправлено.
type Service struct {
	repo    domain.PendingSMSRepo
	gateway domain.SMSGateway
	log     zerolog.Logger
	loc     *time.Location
	cfg     Config

	now func() time.Time
}

// NewService создаёт сервис. loc — таймзона, в которой считается окно.
func NewService(repo domain.PendingSMSRepo, gateway domain.SMSGateway, logger zerolog.Logger, loc *time.Location, cfg Config) *Service {
	if loc == nil {
		loc = time.UTC
	}
	// Нулевой час — валидное начало окна (полночь), дефолт только для
	// отрицательных значений.
	if cfg.StartHour < 0 {
		cfg.StartHour = 9
	}
	if cfg.EndHour <= 0 {
		cfg.EndHour = 18
	}
	return &Service{repo: repo, gateway: gateway, log: logger, loc: loc, cfg: cfg, now: time.Now}
}

// HandlePhoneNumbers обрабатывает новый контакт: внутри окна SMS уходит
// сразу, вне окна ставится в очередь на ближайшее открытие окна.
// Провал немедленной отправки не создаёт записи: номер попадётся снова
// со следующим объявлением того же продавца.
func (s *Service) HandlePhoneNumbers(ctx context.Context, phone string, listing domain.Listing) error {
	if phone == "" || phone == domain.FallbackPhone {
		return nil
	}

	now := s.now().In(s.loc)
	message := BuildSMSText(listing)

	if s.inWindow(now) {
		if err := s.gateway.SendSMS(ctx, []string{phone}, message); err != nil {
			return fmt.Errorf("немедленная отправка SMS: %w", err)
		}
		return nil
	}

	sms := domain.PendingSMS{
		ID:           uuid.NewString(),
		Phone:        phone,
		ListingURL:   listing.URL,
		ListingTitle: listing.Title,
		Message:      message,
		ScheduledFor: s.NextWindowStart(now),
		CreatedAt:    now.UTC(),
	}
	inserted, err := s.repo.ScheduleIfAbsent(ctx, sms)
	if err != nil {
		return fmt.Errorf("постановка SMS в очередь: %w", err)
	}
	if !inserted {
		s.log.Debug().Str("phone", phone).Msg("smsqueue: на номер уже есть отложенная SMS")
	}
	return nil
}

// Sweep отправляет все отложенные SMS, срок которых наступил.
// Неудачные остаются в очереди до следующего прохода; лимита повторов нет,
// при стабильно лежащем шлюзе очередь будет накапливаться.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	now := s.now().In(s.loc)
	due, err := s.repo.FindDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("выборка отложенных SMS: %w", err)
	}
	metrics.PendingSMSDue.Set(float64(len(due)))
	if len(due) == 0 {
		return 0, nil
	}

	sent := 0
	for i, sms := range due {
		// Пауза между обращениями к шлюзу, чтобы не упереться в его лимит.
		// Действует и после неудачной попытки.
		if i > 0 && s.cfg.SendDelay > 0 {
			select {
			case <-ctx.Done():
				return sent, ctx.Err()
			case <-time.After(s.cfg.SendDelay):
			}
		}

		if err := s.gateway.SendSMS(ctx, []string{sms.Phone}, sms.Message); err != nil {
			metrics.ChannelSendErrors.WithLabelValues(domain.ChannelSMS).Inc()
			s.log.Warn().Err(err).Str("phone", sms.Phone).Msg("smsqueue: отправка не удалась, запись остаётся")
			continue
		}
		if err := s.repo.Delete(ctx, sms.ID); err != nil {
			s.log.Error().Err(err).Str("id", sms.ID).Msg("smsqueue: не удалось удалить отправленную SMS")
		}
		sent++
	}
	return sent, nil
}

func (s *Service) inWindow(now time.Time) bool {
	hour := now.Hour()
	return hour >= s.cfg.StartHour && hour < s.cfg.EndHour
}

// NextWindowStart возвращает ближайшее открытие окна отправки:
// после конца окна — завтра в StartHour, до начала — сегодня в StartHour.
func (s *Service) NextWindowStart(now time.Time) time.Time {
	day := now
	if now.Hour() >= s.cfg.EndHour {
		day = now.AddDate(0, 0, 1)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), s.cfg.StartHour, 0, 0, 0, s.loc)
}

// BuildSMSText собирает текст SMS продавцу.
func BuildSMSText(listing domain.Listing) string {
	return fmt.Sprintf("Доброго дня! Бачили ваше оголошення \"%s\" на AUTO.RIA. Готові викупити авто, зателефонуйте нам, будь ласка.", listing.Title)
}
