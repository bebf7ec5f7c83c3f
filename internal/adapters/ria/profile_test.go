package ria

import (
	"math/rand"
	"net"
	"strings"
	"testing"
)

func TestGenerateProfile(t *testing.T) {
	gen := NewGenerator(rand.New(rand.NewSource(42)))

	for i := 0; i < 100; i++ {
		profile := gen.Generate()

		if profile.Name == "" || profile.Version == "" || profile.UserAgent == "" {
			t.Fatalf("отпечаток должен быть полностью заполнен: %+v", profile)
		}
		if !strings.Contains(profile.UserAgent, profile.Version) {
			t.Fatalf("User-Agent должен содержать версию: %q", profile.UserAgent)
		}
		if profile.ViewportWidth <= 0 || profile.ViewportHeight <= 0 {
			t.Fatalf("viewport должен быть положительным: %dx%d", profile.ViewportWidth, profile.ViewportHeight)
		}
		if net.ParseIP(profile.IP) == nil {
			t.Fatalf("невалидный IP в отпечатке: %q", profile.IP)
		}
		if profile.TimezoneOffsetMin != -120 && profile.TimezoneOffsetMin != -180 {
			t.Fatalf("неожиданный сдвиг таймзоны: %d", profile.TimezoneOffsetMin)
		}
		if profile.Headers["User-Agent"] != profile.UserAgent {
			t.Fatalf("заголовок User-Agent должен совпадать с полем отпечатка")
		}
		if profile.Headers["X-Forwarded-For"] != profile.IP || profile.Headers["X-Real-IP"] != profile.IP {
			t.Fatalf("IP-заголовки должны совпадать с адресом отпечатка")
		}
	}
}

func TestGenerateCoversAllFamilies(t *testing.T) {
	gen := NewGenerator(rand.New(rand.NewSource(3)))

	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		seen[gen.Generate().Name] = true
	}
	for _, want := range []string{"Chrome", "Firefox", "Edge", "Opera", "Safari"} {
		if !seen[want] {
			t.Fatalf("семейство %s не выпало за 500 генераций", want)
		}
	}
}

func TestGenerateIPWithinRanges(t *testing.T) {
	gen := NewGenerator(rand.New(rand.NewSource(7)))

	for i := 0; i < 100; i++ {
		ip := net.ParseIP(gen.Generate().IP).To4()
		if ip == nil {
			t.Fatalf("ожидали IPv4-адрес")
		}
		inRange := false
		for _, r := range ipRanges {
			start := net.ParseIP(r[0]).To4()
			end := net.ParseIP(r[1]).To4()
			if !ipLess(ip, start) && !ipLess(end, ip) {
				inRange = true
				break
			}
		}
		if !inRange {
			t.Fatalf("адрес %s вне заданных диапазонов", ip)
		}
	}
}

func ipLess(a, b net.IP) bool {
	for i := 0; i < 4; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
