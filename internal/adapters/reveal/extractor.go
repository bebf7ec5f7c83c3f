package reveal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"autoria-leads/internal/domain"
	"autoria-leads/internal/infra/metrics"
)

// Токен источника на нераскрытом номере. Если он остался в тексте,
// значит раскрытие не сработало и попытка провалена.
const placeholderToken = "показати"

const revealSelector = `a.phone_show_link, span.phone_show_link, .phones_item .show-phone`

// jsClickReveal — запасной путь раскрытия, когда обычный клик падает.
const jsClickReveal = `(function() {
    const el = document.querySelector('a.phone_show_link')
        || document.querySelector('span.phone_show_link')
        || document.querySelector('.phones_item .show-phone');
    if (!el) { return false; }
    el.click();
    return true;
})()`

const jsCollectPhones = `(function() {
    const out = [];
    const seen = new Set();
    const nodes = document.querySelectorAll('[data-phone-number], span.phone.bold, .phones_item .phone');
    for (const node of nodes) {
        const text = (node.getAttribute('data-phone-number') || node.textContent || '').trim();
        if (!text || seen.has(text)) { continue; }
        seen.add(text);
        out.push(text);
    }
    return out;
})()`

const jsSellerName = `(function() {
    const el = document.querySelector('.seller_info_name') || document.querySelector('#userInfoBlock .sellerPro');
    return el ? el.textContent.trim() : '';
})()`

var errRevealNotApplied = errors.New("раскрытие номера не сработало")

// Config задаёт тайминги и пределы извлечения.
type Config struct {
	Attempts    int
	Backoff     time.Duration
	NavTimeout  time.Duration
	WaitTimeout time.Duration
	SettleDelay time.Duration
	Headless    bool
	ChromePath  string
}

// Extractor раскрывает скрытый телефон через изолированную браузерную сессию.
// В системе одновременно открыта не более одной сессии.
type Extractor struct {
	cfg      Config
	profiles domain.ProfileGenerator
	human    Humanizer
	log      zerolog.Logger

	mu sync.Mutex
}

var _ domain.PhoneExtractor = (*Extractor)(nil)

// NewExtractor создаёт экстрактор.
func NewExtractor(cfg Config, profiles domain.ProfileGenerator, human Humanizer, logger zerolog.Logger) *Extractor {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 5 * time.Second
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 15 * time.Second
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 3 * time.Second
	}
	return &Extractor{cfg: cfg, profiles: profiles, human: human, log: logger}
}

// Extract выполняет до cfg.Attempts попыток, пересоздавая сессию на каждой:
// проваленное раскрытие часто означает, что сессия засвечена.
// После исчерпания попыток возвращается fallback-номер, пайплайн продолжает.
func (e *Extractor) Extract(ctx context.Context, listingURL string) domain.ExtractionResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	for attempt := 1; attempt <= e.cfg.Attempts; attempt++ {
		result, err := e.runAttempt(ctx, listingURL)
		if err == nil {
			metrics.RevealAttempts.WithLabelValues("success").Inc()
			return result
		}
		metrics.RevealAttempts.WithLabelValues("error").Inc()
		e.log.Warn().Err(err).Str("listing", listingURL).Int("attempt", attempt).Msg("reveal: попытка не удалась")

		if attempt < e.cfg.Attempts {
			select {
			case <-ctx.Done():
				metrics.RevealFallbacks.Inc()
				return domain.ExtractionResult{Numbers: []string{domain.FallbackPhone}, Succeeded: false}
			case <-time.After(e.cfg.Backoff):
			}
		}
	}

	metrics.RevealFallbacks.Inc()
	return domain.ExtractionResult{Numbers: []string{domain.FallbackPhone}, Succeeded: false}
}

// runAttempt — одна попытка от открытия сессии до чтения номеров.
// Оба контекста закрываются на любом пути выхода: утечка сессии —
// главный ресурсный риск этой подсистемы.
func (e *Extractor) runAttempt(ctx context.Context, listingURL string) (domain.ExtractionResult, error) {
	profile := e.profiles.Generate()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", e.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.UserAgent(profile.UserAgent),
		chromedp.WindowSize(profile.ViewportWidth, profile.ViewportHeight),
	)
	if e.cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(e.cfg.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	defer tabCancel()

	start := time.Now()
	err := e.navigate(tabCtx, listingURL)
	metrics.ObserveNetworkRequest("reveal", "navigate", "auto.ria.com", start, err)
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("навигация: %w", err)
	}

	if err := e.human.Simulate(tabCtx, profile.ViewportWidth, profile.ViewportHeight); err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("имитация поведения: %w", err)
	}

	if err := e.reveal(tabCtx); err != nil {
		return domain.ExtractionResult{}, err
	}

	return e.readNumbers(tabCtx)
}

func (e *Extractor) navigate(tabCtx context.Context, listingURL string) error {
	navCtx, cancel := context.WithTimeout(tabCtx, e.cfg.NavTimeout)
	defer cancel()

	return chromedp.Run(navCtx,
		network.Enable(),
		// Шрифты и стили не нужны для чтения номера, сессия дешевле без них.
		network.SetBlockedURLs([]string{"*.woff", "*.woff2", "*.ttf", "*.css", "*.svg"}),
		chromedp.Navigate(listingURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (e *Extractor) reveal(tabCtx context.Context) error {
	waitCtx, cancel := context.WithTimeout(tabCtx, e.cfg.WaitTimeout)
	defer cancel()

	if err := chromedp.Run(waitCtx, chromedp.WaitVisible(revealSelector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("кнопка раскрытия не появилась: %w", err)
	}

	err := chromedp.Run(waitCtx, chromedp.Click(revealSelector, chromedp.ByQuery, chromedp.NodeVisible))
	if err != nil {
		var clicked bool
		if jsErr := chromedp.Run(waitCtx, chromedp.Evaluate(jsClickReveal, &clicked)); jsErr != nil || !clicked {
			return fmt.Errorf("клик по кнопке раскрытия: %w", err)
		}
	}

	return chromedp.Run(tabCtx, chromedp.Sleep(e.cfg.SettleDelay))
}

func (e *Extractor) readNumbers(tabCtx context.Context) (domain.ExtractionResult, error) {
	var rawNumbers []string
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(jsCollectPhones, &rawNumbers)); err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("чтение номеров: %w", err)
	}

	numbers, err := CleanNumbers(rawNumbers)
	if err != nil {
		return domain.ExtractionResult{}, err
	}

	var seller string
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(jsSellerName, &seller)); err != nil {
		// Имя продавца опционально, его отсутствие попытку не валит.
		seller = ""
	}

	return domain.ExtractionResult{Numbers: numbers, SellerName: seller, Succeeded: true}, nil
}

// CleanNumbers нормализует раскрытые номера. Возвращает ошибку, если
// раскрытие не сработало: остался токен источника или номеров нет вовсе.
func CleanNumbers(raw []string) ([]string, error) {
	var numbers []string
	for _, text := range raw {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if strings.Contains(strings.ToLower(text), placeholderToken) {
			return nil, errRevealNotApplied
		}
		numbers = append(numbers, text)
	}
	if len(numbers) == 0 {
		return nil, errRevealNotApplied
	}
	return numbers, nil
}
