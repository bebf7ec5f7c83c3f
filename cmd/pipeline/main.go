package main

import (
	"context"
	"fmt"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"autoria-leads/internal/adapters/events"
	"autoria-leads/internal/adapters/repo"
	"autoria-leads/internal/adapters/reveal"
	"autoria-leads/internal/adapters/ria"
	"autoria-leads/internal/adapters/sendpulse"
	"autoria-leads/internal/adapters/smsclub"
	"autoria-leads/internal/adapters/telegram"
	"autoria-leads/internal/domain"
	"autoria-leads/internal/infra/cache"
	"autoria-leads/internal/infra/config"
	"autoria-leads/internal/infra/db"
	httpinfra "autoria-leads/internal/infra/http"
	"autoria-leads/internal/infra/log"
	"autoria-leads/internal/infra/metrics"
	"autoria-leads/internal/usecase/cycle"
	"autoria-leads/internal/usecase/dispatch"
	"autoria-leads/internal/usecase/smsqueue"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Без БД дедупликация не работает, стартовать нельзя.
	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("pipeline: нет подключения к БД")
	}
	defer pool.Close()

	loc := cfg.Location()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	repoAdapter := repo.NewPostgres(pool, logger.With().Str("component", "repo").Logger(), cfg.Pipeline.DedupCapacity)

	var tokenCache domain.TokenCache
	if cfg.RedisAddr != "" {
		tokenCache = cache.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	} else {
		logger.Warn().Msg("pipeline: Redis не настроен, токены живут в памяти процесса")
		tokenCache = cache.NewMemory()
	}

	profiles := ria.NewGenerator(rng)
	parser := ria.NewParser(loc)
	fetcher := ria.NewFetcher(nil, profiles, cfg.Ria.SearchURL, cfg.Pipeline.FetchTimeout)
	detailSource := ria.NewDetailSource(fetcher, parser)

	extractor := reveal.NewExtractor(reveal.Config{
		Attempts:    cfg.Reveal.Attempts,
		Backoff:     cfg.Reveal.Backoff,
		NavTimeout:  cfg.Reveal.NavTimeout,
		WaitTimeout: cfg.Reveal.WaitTimeout,
		SettleDelay: cfg.Reveal.SettleDelay,
		Headless:    cfg.Reveal.Headless,
		ChromePath:  cfg.Reveal.ChromePath,
	}, profiles, reveal.NewRandomHumanizer(rng), logger.With().Str("component", "reveal").Logger())

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("pipeline: не удалось создать Telegram бота")
	}

	notifier := telegram.NewNotifier(botAPI, cfg.Telegram.ChatID)

	var poster domain.RichPoster
	if cfg.Telegram.ChannelID != 0 {
		poster = telegram.NewPoster(botAPI, cfg.Telegram.ChannelID, cfg.Telegram.ChannelPhone, detailSource, rng)
	}

	var leads domain.LeadCreator
	if cfg.SendPulse.ClientID != "" {
		leads = sendpulse.NewClient(nil, cfg.SendPulse.ClientID, cfg.SendPulse.ClientSecret, cfg.SendPulse.FlowName, tokenCache, logger.With().Str("component", "sendpulse").Logger())
	}

	smsGateway := smsclub.NewClient(nil, cfg.SMS.Token, cfg.SMS.Sender)
	smsService := smsqueue.NewService(repoAdapter, smsGateway, logger.With().Str("component", "smsqueue").Logger(), loc, smsqueue.Config{
		StartHour: cfg.SMS.WindowStart,
		EndHour:   cfg.SMS.WindowEnd,
		SendDelay: cfg.SMS.SendDelay,
	})

	var publisher domain.EventPublisher
	if cfg.AMQP.URL != "" {
		rabbit := events.NewRabbitPublisher(cfg.AMQP.URL, cfg.AMQP.Queue, logger.With().Str("component", "events").Logger())
		defer rabbit.Close()
		publisher = rabbit
	}

	dispatcher := dispatch.NewService(repoAdapter, extractor, smsService, notifier, leads, poster, publisher, telegram.BuildListingMessage, logger.With().Str("component", "dispatch").Logger())

	cycleService := cycle.NewService(fetcher, parser, dispatcher, smsService, logger.With().Str("component", "cycle").Logger(), cycle.Config{
		Interval:    cfg.Pipeline.CycleInterval,
		FreshWindow: cfg.Pipeline.FreshWindow,
		MaxPerCycle: cfg.Pipeline.MaxPerCycle,
		ItemDelay:   cfg.Pipeline.ItemDelay,
	})

	server := httpinfra.NewServer(logger.With().Str("component", "http").Logger(), cycleService)
	go func() {
		if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("pipeline: HTTP сервер остановлен")
		}
	}()

	logger.Info().
		Dur("interval", cfg.Pipeline.CycleInterval).
		Dur("fresh_window", cfg.Pipeline.FreshWindow).
		Int("max_per_cycle", cfg.Pipeline.MaxPerCycle).
		Msg("pipeline: запуск")

	cycleService.Run(ctx)
}
