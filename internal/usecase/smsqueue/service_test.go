package smsqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"autoria-leads/internal/domain"
)

type stubRepo struct {
	byPhone map[string]domain.PendingSMS
	due     []domain.PendingSMS
	deleted []string
}

func newStubRepo() *stubRepo {
	return &stubRepo{byPhone: make(map[string]domain.PendingSMS)}
}

func (s *stubRepo) ScheduleIfAbsent(_ context.Context, sms domain.PendingSMS) (bool, error) {
	if _, ok := s.byPhone[sms.Phone]; ok {
		return false, nil
	}
	s.byPhone[sms.Phone] = sms
	return true, nil
}

func (s *stubRepo) FindDue(context.Context, time.Time) ([]domain.PendingSMS, error) {
	return s.due, nil
}

func (s *stubRepo) Delete(_ context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type stubGateway struct {
	sent    [][]string
	calls   []time.Time
	failFor map[string]error
}

func (g *stubGateway) SendSMS(_ context.Context, phones []string, _ string) error {
	g.calls = append(g.calls, time.Now())
	if g.failFor != nil {
		for _, phone := range phones {
			if err, ok := g.failFor[phone]; ok {
				return err
			}
		}
	}
	g.sent = append(g.sent, phones)
	return nil
}

func newService(repo *stubRepo, gateway *stubGateway, now time.Time) *Service {
	svc := NewService(repo, gateway, zerolog.Nop(), time.UTC, Config{StartHour: 9, EndHour: 18})
	svc.now = func() time.Time { return now }
	return svc
}

func listing() domain.Listing {
	return domain.Listing{URL: "https://auto.ria.com/auto_test_1.html", Title: "Audi A6 2015"}
}

func TestImmediateSendInsideWindow(t *testing.T) {
	repo := newStubRepo()
	gateway := &stubGateway{}
	svc := newService(repo, gateway, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))

	if err := svc.HandlePhoneNumbers(context.Background(), "+380501112233", listing()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(gateway.sent) != 1 {
		t.Fatalf("ожидали одну немедленную отправку, получили %d", len(gateway.sent))
	}
	if len(repo.byPhone) != 0 {
		t.Fatalf("внутри окна не должно быть отложенных записей")
	}
}

func TestSchedulesAfterWindowEnd(t *testing.T) {
	repo := newStubRepo()
	gateway := &stubGateway{}
	svc := newService(repo, gateway, time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC))

	if err := svc.HandlePhoneNumbers(context.Background(), "+380501112233", listing()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(gateway.sent) != 0 {
		t.Fatalf("вне окна немедленной отправки быть не должно")
	}
	sms, ok := repo.byPhone["+380501112233"]
	if !ok {
		t.Fatalf("ожидали отложенную запись")
	}
	want := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)
	if !sms.ScheduledFor.Equal(want) {
		t.Fatalf("ожидали %v, получили %v", want, sms.ScheduledFor)
	}
}

func TestSchedulesBeforeWindowStart(t *testing.T) {
	repo := newStubRepo()
	svc := newService(repo, &stubGateway{}, time.Date(2025, 3, 10, 7, 30, 0, 0, time.UTC))

	if err := svc.HandlePhoneNumbers(context.Background(), "+380501112233", listing()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	sms := repo.byPhone["+380501112233"]
	want := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	if !sms.ScheduledFor.Equal(want) {
		t.Fatalf("ожидали сегодняшние 09:00 (%v), получили %v", want, sms.ScheduledFor)
	}
}

func TestScheduleIfAbsentIsNoOp(t *testing.T) {
	repo := newStubRepo()
	svc := newService(repo, &stubGateway{}, time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC))

	first := domain.Listing{URL: "https://auto.ria.com/auto_1.html", Title: "BMW 520"}
	second := domain.Listing{URL: "https://auto.ria.com/auto_2.html", Title: "BMW 530"}
	if err := svc.HandlePhoneNumbers(context.Background(), "+380501112233", first); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := svc.HandlePhoneNumbers(context.Background(), "+380501112233", second); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(repo.byPhone) != 1 {
		t.Fatalf("на номер должна существовать одна запись, получили %d", len(repo.byPhone))
	}
	if repo.byPhone["+380501112233"].ListingURL != first.URL {
		t.Fatalf("вторая постановка не должна перезаписывать первую")
	}
}

func TestFallbackPhoneIgnored(t *testing.T) {
	repo := newStubRepo()
	gateway := &stubGateway{}
	svc := newService(repo, gateway, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))

	if err := svc.HandlePhoneNumbers(context.Background(), domain.FallbackPhone, listing()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(gateway.sent) != 0 || len(repo.byPhone) != 0 {
		t.Fatalf("fallback-номер не должен порождать ни отправок, ни записей")
	}
}

func TestSweepDeletesSentAndKeepsFailed(t *testing.T) {
	repo := newStubRepo()
	repo.due = []domain.PendingSMS{
		{ID: "a", Phone: "+380501110001", Message: "перша"},
		{ID: "b", Phone: "+380501110002", Message: "друга"},
	}
	gateway := &stubGateway{failFor: map[string]error{"+380501110002": errors.New("шлюз лежит")}}
	svc := newService(repo, gateway, time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC))

	sent, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if sent != 1 {
		t.Fatalf("ожидали одну отправленную SMS, получили %d", sent)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != "a" {
		t.Fatalf("удалена должна быть только отправленная запись, получили %v", repo.deleted)
	}
}

func TestSweepDelaysAfterFailedSend(t *testing.T) {
	repo := newStubRepo()
	repo.due = []domain.PendingSMS{
		{ID: "a", Phone: "+380501110001", Message: "перша"},
		{ID: "b", Phone: "+380501110002", Message: "друга"},
	}
	gateway := &stubGateway{failFor: map[string]error{"+380501110001": errors.New("шлюз лежит")}}

	delay := 30 * time.Millisecond
	svc := NewService(repo, gateway, zerolog.Nop(), time.UTC, Config{StartHour: 9, EndHour: 18, SendDelay: delay})
	svc.now = func() time.Time { return time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC) }

	if _, err := svc.Sweep(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(gateway.calls) != 2 {
		t.Fatalf("ожидали два обращения к шлюзу, получили %d", len(gateway.calls))
	}
	if gap := gateway.calls[1].Sub(gateway.calls[0]); gap < delay {
		t.Fatalf("пауза между обращениями должна соблюдаться и после неудачи, интервал %v", gap)
	}
}

func TestMidnightWindowStart(t *testing.T) {
	repo := newStubRepo()
	gateway := &stubGateway{}
	svc := NewService(repo, gateway, zerolog.Nop(), time.UTC, Config{StartHour: 0, EndHour: 18})
	svc.now = func() time.Time { return time.Date(2025, 3, 10, 0, 30, 0, 0, time.UTC) }

	if err := svc.HandlePhoneNumbers(context.Background(), "+380501112233", listing()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(gateway.sent) != 1 {
		t.Fatalf("окно с началом в полночь должно допускать немедленную отправку в 00:30")
	}
	if len(repo.byPhone) != 0 {
		t.Fatalf("внутри окна отложенных записей быть не должно")
	}
}
