package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5"

// Observation is the current-conditions snapshot used in chat context.
type Observation struct {
	Description string
	TempC       float64
}

// TempF converts the Celsius reading.
func (o Observation) TempF() float64 {
	return o.TempC*9/5 + 32
}

// Config carries OpenWeatherMap settings. An empty APIKey means the
// weather collaborator is not constructed at all.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client fetches current conditions by city name. Observations are cached
// for ten minutes so repeated chat turns do not hammer the API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cache      *cache.Cache
	logger     *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cache.New(10*time.Minute, 5*time.Minute),
		logger:     logger,
	}
}

// Current returns the present conditions for the city.
func (c *Client) Current(ctx context.Context, city string) (Observation, error) {
	key := strings.ToLower(strings.TrimSpace(city))
	if cached, found := c.cache.Get(key); found {
		return cached.(Observation), nil
	}

	query := url.Values{
		"q":     {city},
		"appid": {c.apiKey},
		"units": {"metric"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/weather?%s", c.baseURL, query.Encode()), nil)
	if err != nil {
		return Observation{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Observation{}, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var failure struct {
			Message string `json:"message"`
		}
		json.NewDecoder(resp.Body).Decode(&failure)
		return Observation{}, fmt.Errorf("weather api: status %d %s", resp.StatusCode, failure.Message)
	}

	var data struct {
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return Observation{}, fmt.Errorf("decode weather response: %w", err)
	}
	if len(data.Weather) == 0 {
		return Observation{}, fmt.Errorf("weather api returned no conditions")
	}

	obs := Observation{
		Description: data.Weather[0].Description,
		TempC:       data.Main.Temp,
	}
	c.cache.Set(key, obs, cache.DefaultExpiration)
	c.logger.Debug("Weather fetched",
		zap.String("city", city),
		zap.Float64("temp_c", obs.TempC))
	return obs, nil
}
