package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию пайплайна.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Europe/Kyiv"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Telegram struct {
		Token        string `envconfig:"TG_BOT_TOKEN"`
		ChatID       int64  `envconfig:"TG_CHAT_ID"`
		ChannelID    int64  `envconfig:"TG_CHANNEL_ID"`
		ChannelPhone string `envconfig:"TG_CHANNEL_PHONE" default:"+380988210707"`
	} `envconfig:""`

	Ria struct {
		SearchURL string `envconfig:"RIA_SEARCH_URL" default:"https://auto.ria.com/uk/search/?indexName=auto,order_auto,newauto_search&region.id[0]=4&price.currency=1&sort[0].order=dates.created.desc&abroad.not=0&custom.not=1&page=0&size=100"`
	} `envconfig:""`

	Pipeline struct {
		CycleInterval time.Duration `envconfig:"CYCLE_INTERVAL" default:"5m"`
		FreshWindow   time.Duration `envconfig:"FRESH_WINDOW" default:"45m"`
		MaxPerCycle   int           `envconfig:"MAX_ITEMS_PER_CYCLE" default:"10"`
		ItemDelay     time.Duration `envconfig:"ITEM_DELAY" default:"1s"`
		DedupCapacity int           `envconfig:"DEDUP_CAPACITY" default:"50"`
		FetchTimeout  time.Duration `envconfig:"FETCH_TIMEOUT" default:"20s"`
	} `envconfig:""`

	Reveal struct {
		Attempts    int           `envconfig:"REVEAL_ATTEMPTS" default:"3"`
		Backoff     time.Duration `envconfig:"REVEAL_BACKOFF" default:"5s"`
		NavTimeout  time.Duration `envconfig:"REVEAL_NAV_TIMEOUT" default:"30s"`
		WaitTimeout time.Duration `envconfig:"REVEAL_WAIT_TIMEOUT" default:"15s"`
		SettleDelay time.Duration `envconfig:"REVEAL_SETTLE_DELAY" default:"3s"`
		Headless    bool          `envconfig:"REVEAL_HEADLESS" default:"true"`
		ChromePath  string        `envconfig:"CHROME_PATH"`
	} `envconfig:""`

	SMS struct {
		Token       string        `envconfig:"SMSCLUB_TOKEN"`
		Sender      string        `envconfig:"SMSCLUB_SENDER" default:"AUTO"`
		WindowStart int           `envconfig:"SMS_WINDOW_START" default:"9"`
		WindowEnd   int           `envconfig:"SMS_WINDOW_END" default:"18"`
		SendDelay   time.Duration `envconfig:"SMS_SEND_DELAY" default:"2s"`
	} `envconfig:""`

	SendPulse struct {
		ClientID     string `envconfig:"SENDPULSE_CLIENT_ID"`
		ClientSecret string `envconfig:"SENDPULSE_CLIENT_SECRET"`
		FlowName     string `envconfig:"SENDPULSE_FLOW" default:"АВТОРІА"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	AMQP struct {
		URL   string `envconfig:"AMQP_URL"`
		Queue string `envconfig:"AMQP_OUTCOME_QUEUE" default:"lead_outcomes"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Location возвращает локальную таймзону источника; SMS-окно считается в ней.
func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TZ)
	if err != nil {
		return time.UTC
	}
	return loc
}
