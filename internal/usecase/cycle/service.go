package cycle

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"autoria-leads/internal/domain"
	"autoria-leads/internal/infra/metrics"
)

// Dispatcher обрабатывает одно объявление.
type Dispatcher interface {
	ProcessListing(ctx context.Context, listing domain.Listing, visited map[string]struct{}) domain.DispatchOutcome
}

// Sweeper отправляет накопившиеся отложенные SMS.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Config задаёт параметры цикла.
type Config struct {
	Interval    time.Duration
	FreshWindow time.Duration
	MaxPerCycle int
	ItemDelay   time.Duration
}

// Status — снимок последнего цикла для диагностического эндпоинта.
type Status struct {
	Running       bool      `json:"running"`
	LastRunAt     time.Time `json:"last_run_at"`
	LastFound     int       `json:"last_found"`
	LastFresh     int       `json:"last_fresh"`
	LastProcessed int       `json:"last_processed"`
	LastDeferred  int       `json:"last_deferred"`
	LastSMSSent   int       `json:"last_sms_sent"`
	LastError     string    `json:"last_error,omitempty"`
}

// Service — верхний уровень пайплайна: таймер, свежесть, порядок, лимит.
// Одновременно выполняется не более одного цикла; пересёкшийся триггер
// отбрасывается без очереди.
type Service struct {
	fetcher    domain.ListingFetcher
	parser     domain.ListingParser
	dispatcher Dispatcher
	sweeper    Sweeper
	log        zerolog.Logger
	cfg        Config

	runGuard sync.Mutex

	statusMu sync.RWMutex
	status   Status

	now func() time.Time
}

// NewService создаёт планировщик циклов.
func NewService(fetcher domain.ListingFetcher, parser domain.ListingParser, dispatcher Dispatcher, sweeper Sweeper, logger zerolog.Logger, cfg Config) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.FreshWindow <= 0 {
		cfg.FreshWindow = 45 * time.Minute
	}
	if cfg.MaxPerCycle <= 0 {
		cfg.MaxPerCycle = 10
	}
	return &Service{
		fetcher:    fetcher,
		parser:     parser,
		dispatcher: dispatcher,
		sweeper:    sweeper,
		log:        logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Run запускает первый цикл сразу и дальше по таймеру до отмены контекста.
func (s *Service) Run(ctx context.Context) {
	s.TryRunCycle(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("cycle: остановка по сигналу")
			return
		case <-ticker.C:
			s.TryRunCycle(ctx)
		}
	}
}

// TryRunCycle выполняет один цикл. Если предыдущий ещё идёт, триггер
// отбрасывается: возвращается (0, false), новых сессий не открывается.
func (s *Service) TryRunCycle(ctx context.Context) (int, bool) {
	if !s.runGuard.TryLock() {
		metrics.CyclesSkipped.Inc()
		s.log.Warn().Msg("cycle: предыдущий цикл ещё выполняется, триггер отброшен")
		return 0, false
	}
	defer s.runGuard.Unlock()

	metrics.CyclesTotal.Inc()
	started := s.now()
	s.setRunning(true)
	defer func() {
		metrics.CycleDuration.Observe(time.Since(started).Seconds())
		s.setRunning(false)
	}()

	status := Status{LastRunAt: started}

	// Сначала добираем долги по отложенным SMS, потом свежие объявления.
	smsSent, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("cycle: проход по отложенным SMS не удался")
	}
	status.LastSMSSent = smsSent

	html, err := s.fetcher.FetchSearchPage(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("cycle: не удалось загрузить выдачу, цикл завершён")
		status.LastError = err.Error()
		s.saveStatus(status)
		return 0, true
	}

	now := s.now()
	listings, err := s.parser.ParseSearch(html, now)
	if err != nil {
		s.log.Error().Err(err).Msg("cycle: не удалось разобрать выдачу, цикл завершён")
		status.LastError = err.Error()
		s.saveStatus(status)
		return 0, true
	}
	status.LastFound = len(listings)

	fresh := s.filterFresh(listings, now)
	status.LastFresh = len(fresh)
	metrics.FreshListings.Set(float64(len(fresh)))
	s.log.Info().Int("found", len(listings)).Int("fresh", len(fresh)).Msg("cycle: выдача разобрана")

	// Старые вперёд: при лимите на цикл свежая волна не должна
	// бесконечно оттеснять давно ожидающие объявления.
	sort.SliceStable(fresh, func(i, j int) bool { return fresh[i].PostedAt.Before(fresh[j].PostedAt) })

	if len(fresh) > s.cfg.MaxPerCycle {
		deferred := len(fresh) - s.cfg.MaxPerCycle
		status.LastDeferred = deferred
		metrics.ListingsDeferred.Add(float64(deferred))
		s.log.Info().Int("deferred", deferred).Int("cap", s.cfg.MaxPerCycle).Msg("cycle: часть объявлений отложена до следующего цикла")
		fresh = fresh[:s.cfg.MaxPerCycle]
	}

	visited := make(map[string]struct{}, len(fresh))
	processed := 0
	for i, listing := range fresh {
		outcome := s.dispatcher.ProcessListing(ctx, listing, visited)
		if !outcome.Skipped {
			processed++
		}

		if i < len(fresh)-1 && s.cfg.ItemDelay > 0 {
			select {
			case <-ctx.Done():
				status.LastProcessed = processed
				s.saveStatus(status)
				return processed, true
			case <-time.After(s.cfg.ItemDelay):
			}
		}
	}

	status.LastProcessed = processed
	s.saveStatus(status)
	return processed, true
}

func (s *Service) filterFresh(listings []domain.Listing, now time.Time) []domain.Listing {
	threshold := now.Add(-s.cfg.FreshWindow)
	fresh := make([]domain.Listing, 0, len(listings))
	for _, listing := range listings {
		if listing.PostedAt.After(threshold) {
			fresh = append(fresh, listing)
		}
	}
	return fresh
}

func (s *Service) setRunning(running bool) {
	s.statusMu.Lock()
	s.status.Running = running
	s.statusMu.Unlock()
}

func (s *Service) saveStatus(status Status) {
	s.statusMu.Lock()
	running := s.status.Running
	s.status = status
	s.status.Running = running
	s.statusMu.Unlock()
}

// Snapshot возвращает состояние для /status.
func (s *Service) Snapshot() any {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}
