package reveal

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
)

// Humanizer имитирует поведение живого посетителя внутри открытой сессии.
// Функционального результата не имеет, нужен только для снижения
// сигнатур автоматизации. Тесты подставляют Noop.
type Humanizer interface {
	Simulate(ctx context.Context, viewportWidth, viewportHeight int) error
}

// RandomHumanizer двигает указатель по интерполированной траектории
// и прокручивает страницу со случайными шагами и паузами.
type RandomHumanizer struct {
	rng *rand.Rand
}

var _ Humanizer = (*RandomHumanizer)(nil)

// NewRandomHumanizer создаёт стратегию со своим источником случайности.
func NewRandomHumanizer(rng *rand.Rand) *RandomHumanizer {
	return &RandomHumanizer{rng: rng}
}

// Simulate выполняет паузу, движения мыши и прокрутки.
func (h *RandomHumanizer) Simulate(ctx context.Context, viewportWidth, viewportHeight int) error {
	if viewportWidth <= 0 {
		viewportWidth = 1366
	}
	if viewportHeight <= 0 {
		viewportHeight = 768
	}

	idle := time.Duration(500+h.rng.Intn(1500)) * time.Millisecond
	if err := chromedp.Run(ctx, chromedp.Sleep(idle)); err != nil {
		return err
	}

	if err := h.movePointer(ctx, viewportWidth, viewportHeight); err != nil {
		return err
	}
	return h.scroll(ctx)
}

func (h *RandomHumanizer) movePointer(ctx context.Context, width, height int) error {
	fromX := float64(50 + h.rng.Intn(width/2))
	fromY := float64(50 + h.rng.Intn(height/2))
	toX := fromX + float64(h.rng.Intn(width/3)-width/6)
	toY := fromY + float64(h.rng.Intn(height/3)-height/6)

	steps := 6 + h.rng.Intn(6)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := fromX + (toX-fromX)*t
		y := fromY + (toY-fromY)*t
		move := input.DispatchMouseEvent(input.MouseMoved, x, y)
		err := chromedp.Run(ctx,
			chromedp.ActionFunc(func(c context.Context) error { return move.Do(c) }),
			chromedp.Sleep(time.Duration(15+h.rng.Intn(45))*time.Millisecond),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (h *RandomHumanizer) scroll(ctx context.Context) error {
	scrolls := 2 + h.rng.Intn(3)
	for i := 0; i < scrolls; i++ {
		delta := 120 + h.rng.Intn(320)
		err := chromedp.Run(ctx,
			chromedp.Evaluate(jsScrollBy(delta), nil),
			chromedp.Sleep(time.Duration(200+h.rng.Intn(500))*time.Millisecond),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func jsScrollBy(delta int) string {
	return fmt.Sprintf("window.scrollBy({top: %d, behavior: 'smooth'}); undefined", delta)
}

// NoopHumanizer ничего не делает; используется в тестах,
// чтобы исключить случайные задержки.
type NoopHumanizer struct{}

var _ Humanizer = NoopHumanizer{}

// Simulate не выполняет никаких действий.
func (NoopHumanizer) Simulate(context.Context, int, int) error { return nil }
