package geo

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/calbot/internal/models"
)

// DefaultTimezone is used when neither the providers nor the coordinates
// yield a loadable zone.
const DefaultTimezone = "America/Los_Angeles"

// Config controls how the bot's own location is resolved.
type Config struct {
	// Static is an operator-supplied "City, Region, Country" fallback used
	// when every provider is unreachable.
	Static string
	// DefaultTimezone overrides DefaultTimezone when set.
	DefaultTimezone string
	Timeout         time.Duration
}

// State holds the current best-known location of the bot's user plus the
// timezone derived from it. It is refreshed from IP geolocation providers
// and degrades to configured fallbacks, so reads always succeed.
type State struct {
	mu      sync.RWMutex
	current models.Location
	tz      *time.Location

	providers  []provider
	static     string
	defaultTZ  string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewState(cfg Config, logger *zap.Logger) *State {
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = DefaultTimezone
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	s := &State{
		providers: []provider{
			ipAPIProvider{url: "http://ip-api.com/json/"},
			ipapiCoProvider{url: "https://ipapi.co/json/"},
			ipinfoProvider{url: "https://ipinfo.io/json"},
		},
		static:     cfg.Static,
		defaultTZ:  cfg.DefaultTimezone,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
	s.set(s.fallbackLocation())
	return s
}

// Refresh walks the provider chain and stores the first successful answer.
// When every provider fails the previously known location is kept, or the
// static fallback if nothing was ever resolved.
func (s *State) Refresh(ctx context.Context) {
	for _, p := range s.providers {
		loc, err := p.lookup(ctx, s.httpClient)
		if err != nil {
			s.logger.Warn("Location provider failed",
				zap.String("provider", p.name()),
				zap.Error(err))
			continue
		}
		s.set(loc)
		s.logger.Info("Location resolved",
			zap.String("provider", p.name()),
			zap.String("location", loc.Label()),
			zap.String("timezone", s.Timezone().String()))
		return
	}
	s.logger.Warn("All location providers failed, keeping fallback",
		zap.String("location", s.Current().Label()))
}

// Current returns the best-known location.
func (s *State) Current() models.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Timezone returns the loaded zone for the current location. Never nil.
func (s *State) Timezone() *time.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tz
}

// Details performs a fresh primary-provider lookup and renders the full
// location card. On failure it degrades to a single line with the last
// known label.
func (s *State) Details(ctx context.Context) string {
	loc, err := s.providers[0].lookup(ctx, s.httpClient)
	if err != nil {
		s.logger.Warn("Location details lookup failed", zap.Error(err))
		return "📍 Location: " + s.Current().Label()
	}

	tzName := loc.Timezone
	if tzName == "" {
		tzName = s.Timezone().String()
	}
	return fmt.Sprintf("📍 Location: %s\n🌐 Coordinates: %.4f°N, %.4f°W\n🕒 Timezone: %s\n🏢 ISP: %s",
		loc.Label(), loc.Lat, loc.Lon, tzName, loc.ISP)
}

func (s *State) set(loc models.Location) {
	tzName := loc.Timezone
	if tzName == "" {
		tzName = timezoneForCoordinates(loc.Lat, loc.Lon)
	}
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		tz, err = time.LoadLocation(s.defaultTZ)
		if err != nil {
			tz = time.UTC
		}
	}
	loc.Timezone = tz.String()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = loc
	s.tz = tz
}

func (s *State) fallbackLocation() models.Location {
	loc := models.Location{Timezone: s.defaultTZ}
	parts := strings.Split(s.static, ",")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		switch {
		case i == 0:
			loc.City = part
		case i == 1:
			loc.Region = part
		case i == 2:
			loc.Country = part
		}
	}
	return loc
}

// timezoneForCoordinates derives a fixed-offset zone from the longitude,
// for providers that report coordinates without a zone name. Etc/GMT zone
// names carry the opposite sign of their UTC offset.
func timezoneForCoordinates(_, lon float64) string {
	offset := int(math.Round(lon / 15))
	if offset == 0 {
		return "Etc/GMT"
	}
	return fmt.Sprintf("Etc/GMT%+d", -offset)
}
