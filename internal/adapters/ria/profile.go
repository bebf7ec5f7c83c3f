package ria

import (
	"fmt"
	"math/rand"
	"strings"

	"autoria-leads/internal/domain"
)

// browserFamily описывает семейство браузеров для генерации отпечатка.
type browserFamily struct {
	name      string
	versions  []string
	platforms []string
	uaFormat  func(version, platform string) string
}

var families = []browserFamily{
	{
		name:      "Chrome",
		versions:  []string{"120.0.0.0", "119.0.0.0", "118.0.0.0"},
		platforms: []string{"Windows NT 10.0", "Windows NT 11.0", "Macintosh; Intel Mac OS X 10_15_7"},
		uaFormat: func(version, platform string) string {
			return fmt.Sprintf("Mozilla/5.0 (%s; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", platform, version)
		},
	},
	{
		name:      "Firefox",
		versions:  []string{"121.0", "120.0", "119.0"},
		platforms: []string{"Windows NT 10.0", "Windows NT 11.0", "X11; Ubuntu; Linux x86_64"},
		uaFormat: func(version, platform string) string {
			return fmt.Sprintf("Mozilla/5.0 (%s; rv:%s) Gecko/20100101 Firefox/%s", platform, version, version)
		},
	},
	{
		name:      "Edge",
		versions:  []string{"120.0.0.0", "119.0.0.0", "118.0.0.0"},
		platforms: []string{"Windows NT 10.0", "Windows NT 11.0"},
		uaFormat: func(version, platform string) string {
			return fmt.Sprintf("Mozilla/5.0 (%s; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36 Edg/%s", platform, version, version)
		},
	},
	{
		name:      "Opera",
		versions:  []string{"103.0.0.0", "102.0.0.0", "101.0.0.0"},
		platforms: []string{"Windows NT 10.0", "X11; Linux x86_64"},
		uaFormat: func(version, platform string) string {
			return fmt.Sprintf("Mozilla/5.0 (%s; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36 OPR/%s", platform, version, version)
		},
	},
	{
		name:      "Safari",
		versions:  []string{"17.1", "17.0", "16.6"},
		platforms: []string{"Macintosh; Intel Mac OS X 10_15_7", "Macintosh; Intel Mac OS X 13_6"},
		uaFormat: func(version, platform string) string {
			return fmt.Sprintf("Mozilla/5.0 (%s) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/%s Safari/605.1.15", platform, version)
		},
	},
}

// Диапазоны адресов украинских мобильных операторов для X-Forwarded-For.
var ipRanges = [][2]string{
	{"176.36.0.0", "176.37.255.255"},
	{"176.38.0.0", "176.39.255.255"},
	{"188.163.0.0", "188.163.255.255"},
	{"178.92.0.0", "178.93.255.255"},
	{"93.74.0.0", "93.75.255.255"},
}

var viewports = [][2]int{
	{1920, 1080},
	{1366, 768},
	{1536, 864},
	{1440, 900},
	{1280, 720},
}

// Generator реализует domain.ProfileGenerator.
type Generator struct {
	rng *rand.Rand
}

var _ domain.ProfileGenerator = (*Generator)(nil)

// NewGenerator создаёт генератор отпечатков.
func NewGenerator(rng *rand.Rand) *Generator {
	return &Generator{rng: rng}
}

// Generate выдаёт случайный отпечаток браузера.
func (g *Generator) Generate() domain.BrowserProfile {
	family := families[g.rng.Intn(len(families))]
	version := family.versions[g.rng.Intn(len(family.versions))]
	platform := family.platforms[g.rng.Intn(len(family.platforms))]
	viewport := viewports[g.rng.Intn(len(viewports))]
	ip := g.randomIP()
	userAgent := family.uaFormat(version, platform)

	// UTC+2 либо UTC+3 в летнее время.
	offset := -120
	if g.rng.Intn(2) == 1 {
		offset = -180
	}

	headers := map[string]string{
		"User-Agent":         userAgent,
		"Sec-Ch-Ua":          fmt.Sprintf("%q;v=%q, \"Not=A?Brand\";v=\"99\"", family.name, version),
		"Sec-Ch-Ua-Mobile":   "?0",
		"Sec-Ch-Ua-Platform": strings.TrimSpace(strings.Split(platform, ";")[0]),
		"X-Forwarded-For":    ip,
		"X-Real-IP":          ip,
	}

	return domain.BrowserProfile{
		Name:              family.name,
		Version:           version,
		Platform:          platform,
		UserAgent:         userAgent,
		ViewportWidth:     viewport[0],
		ViewportHeight:    viewport[1],
		IP:                ip,
		TimezoneOffsetMin: offset,
		Headers:           headers,
	}
}

func (g *Generator) randomIP() string {
	r := ipRanges[g.rng.Intn(len(ipRanges))]
	start := splitIP(r[0])
	end := splitIP(r[1])
	octets := make([]string, 4)
	for i := 0; i < 4; i++ {
		octets[i] = fmt.Sprintf("%d", start[i]+g.rng.Intn(end[i]-start[i]+1))
	}
	return strings.Join(octets, ".")
}

func splitIP(ip string) [4]int {
	var out [4]int
	parts := strings.Split(ip, ".")
	for i := 0; i < 4 && i < len(parts); i++ {
		fmt.Sscanf(parts[i], "%d", &out[i])
	}
	return out
}
