package cycle

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"autoria-leads/internal/domain"
)

type stubFetcher struct {
	html string
	err  error
}

func (f *stubFetcher) FetchSearchPage(context.Context) (string, error) {
	return f.html, f.err
}

type stubParser struct {
	listings []domain.Listing
	err      error
}

func (p *stubParser) ParseSearch(string, time.Time) ([]domain.Listing, error) {
	return p.listings, p.err
}

type stubDispatcher struct {
	processed []domain.Listing
	block     chan struct{}
	started   chan struct{}
}

func (d *stubDispatcher) ProcessListing(_ context.Context, listing domain.Listing, visited map[string]struct{}) domain.DispatchOutcome {
	if d.started != nil {
		close(d.started)
		d.started = nil
	}
	if d.block != nil {
		<-d.block
	}
	d.processed = append(d.processed, listing)
	visited[listing.URL] = struct{}{}
	return domain.DispatchOutcome{ListingURL: listing.URL, MarkedSent: true}
}

type stubSweeper struct {
	sent int
}

func (s *stubSweeper) Sweep(context.Context) (int, error) {
	return s.sent, nil
}

func newService(fetcher *stubFetcher, parser *stubParser, dispatcher *stubDispatcher, now time.Time) *Service {
	svc := NewService(fetcher, parser, dispatcher, &stubSweeper{}, zerolog.Nop(), Config{
		Interval:    5 * time.Minute,
		FreshWindow: 45 * time.Minute,
		MaxPerCycle: 10,
	})
	svc.now = func() time.Time { return now }
	return svc
}

func makeListings(n int, now time.Time) []domain.Listing {
	listings := make([]domain.Listing, 0, n)
	for i := 0; i < n; i++ {
		listings = append(listings, domain.Listing{
			URL:      fmt.Sprintf("https://auto.ria.com/auto_%d.html", i),
			Title:    fmt.Sprintf("Лот %d", i),
			PostedAt: now.Add(-time.Duration(i) * time.Minute),
		})
	}
	return listings
}

func TestStaleListingsExcluded(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	parser := &stubParser{listings: []domain.Listing{
		{URL: "https://auto.ria.com/auto_fresh.html", PostedAt: now.Add(-10 * time.Minute)},
		{URL: "https://auto.ria.com/auto_edge.html", PostedAt: now.Add(-45 * time.Minute)},
		{URL: "https://auto.ria.com/auto_stale.html", PostedAt: now.Add(-2 * time.Hour)},
	}}
	dispatcher := &stubDispatcher{}
	svc := newService(&stubFetcher{html: "<html/>"}, parser, dispatcher, now)

	processed, ran := svc.TryRunCycle(context.Background())
	if !ran {
		t.Fatalf("цикл должен был выполниться")
	}
	if processed != 1 {
		t.Fatalf("ожидали одно обработанное объявление, получили %d", processed)
	}
	if dispatcher.processed[0].URL != "https://auto.ria.com/auto_fresh.html" {
		t.Fatalf("устаревшие объявления не должны попадать в обработку")
	}
}

func TestCapTakesOldestFirst(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	dispatcher := &stubDispatcher{}
	svc := newService(&stubFetcher{html: "<html/>"}, &stubParser{listings: makeListings(15, now)}, dispatcher, now)

	processed, _ := svc.TryRunCycle(context.Background())
	if processed != 10 {
		t.Fatalf("ожидали обработку %d объявлений, получили %d", 10, processed)
	}
	// makeListings нумерует от свежих к старым: под лимит должны попасть
	// самые старые из свежих, в порядке возрастания даты публикации.
	if dispatcher.processed[0].URL != "https://auto.ria.com/auto_14.html" {
		t.Fatalf("первым должен идти самый старый лот, получили %s", dispatcher.processed[0].URL)
	}
	for i := 1; i < len(dispatcher.processed); i++ {
		if dispatcher.processed[i].PostedAt.Before(dispatcher.processed[i-1].PostedAt) {
			t.Fatalf("объявления должны обрабатываться от старых к новым")
		}
	}

	status, ok := svc.Snapshot().(Status)
	if !ok {
		t.Fatalf("Snapshot должен возвращать Status")
	}
	if status.LastDeferred != 5 {
		t.Fatalf("ожидали 5 отложенных, получили %d", status.LastDeferred)
	}
}

func TestOverlapTriggerDropped(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	dispatcher := &stubDispatcher{
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	started := dispatcher.started
	svc := newService(&stubFetcher{html: "<html/>"}, &stubParser{listings: makeListings(1, now)}, dispatcher, now)

	done := make(chan struct{})
	go func() {
		svc.TryRunCycle(context.Background())
		close(done)
	}()
	<-started

	processed, ran := svc.TryRunCycle(context.Background())
	if ran {
		t.Fatalf("повторный триггер во время цикла должен отбрасываться")
	}
	if processed != 0 {
		t.Fatalf("отброшенный триггер не должен ничего обрабатывать")
	}

	close(dispatcher.block)
	<-done
}

func TestFetchFailureEndsCycle(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	dispatcher := &stubDispatcher{}
	svc := newService(&stubFetcher{err: errors.New("таймаут выдачи")}, &stubParser{}, dispatcher, now)

	processed, ran := svc.TryRunCycle(context.Background())
	if !ran {
		t.Fatalf("сбой загрузки не отменяет сам факт цикла")
	}
	if processed != 0 || len(dispatcher.processed) != 0 {
		t.Fatalf("после сбоя загрузки обработка запускаться не должна")
	}
	if svc.Snapshot().(Status).LastError == "" {
		t.Fatalf("ошибка загрузки должна попадать в статус")
	}
}

func TestSweepCountReported(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := NewService(&stubFetcher{html: "<html/>"}, &stubParser{}, &stubDispatcher{}, &stubSweeper{sent: 3}, zerolog.Nop(), Config{
		Interval:    5 * time.Minute,
		FreshWindow: 45 * time.Minute,
		MaxPerCycle: 10,
	})
	svc.now = func() time.Time { return now }

	svc.TryRunCycle(context.Background())
	if got := svc.Snapshot().(Status).LastSMSSent; got != 3 {
		t.Fatalf("статус должен отражать отправленные SMS, получили %d", got)
	}
}
