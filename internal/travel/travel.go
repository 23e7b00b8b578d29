package travel

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

const defaultBaseURL = "https://maps.googleapis.com/maps/api/distancematrix/json"

// Leg is one mode's answer from the distance matrix.
type Leg struct {
	Distance string
	Duration string
}

// Estimate combines the driving and walking answers for one origin and
// destination pair.
type Estimate struct {
	Distance string
	Driving  string
	Walking  string
}

func (e Estimate) String() string {
	return fmt.Sprintf("Distance: %s\nDriving time: %s\nWalking time: %s",
		e.Distance, e.Driving, e.Walking)
}

// Config carries Distance Matrix settings. An empty APIKey means the travel
// collaborator is not constructed at all.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client estimates travel between free-form place strings. Estimates are
// cached briefly: traffic moves, but not within a chat exchange.
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
		cache:      cache.New(5*time.Minute, 5*time.Minute),
		logger:     logger,
	}
}

// Estimate queries the driving and walking legs and combines them. The
// distance reported is the driving one.
func (c *Client) Estimate(ctx context.Context, origin, destination string) (Estimate, error) {
	key := strings.ToLower(origin + "|" + destination)
	if cached, found := c.cache.Get(key); found {
		return cached.(Estimate), nil
	}

	driving, err := c.DistanceMatrix(ctx, origin, destination, "driving")
	if err != nil {
		return Estimate{}, err
	}
	walking, err := c.DistanceMatrix(ctx, origin, destination, "walking")
	if err != nil {
		return Estimate{}, err
	}

	estimate := Estimate{
		Distance: driving.Distance,
		Driving:  driving.Duration,
		Walking:  walking.Duration,
	}
	c.cache.Set(key, estimate, cache.DefaultExpiration)
	return estimate, nil
}

// DistanceMatrix runs a single-origin, single-destination matrix query for
// one travel mode.
func (c *Client) DistanceMatrix(ctx context.Context, origin, destination, mode string) (Leg, error) {
	query := url.Values{
		"origins":      {origin},
		"destinations": {destination},
		"mode":         {mode},
		"key":          {c.apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return Leg{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Leg{}, fmt.Errorf("distance matrix request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Leg{}, fmt.Errorf("distance matrix: status %d", resp.StatusCode)
	}

	var data struct {
		Status string `json:"status"`
		Rows   []struct {
			Elements []struct {
				Status   string `json:"status"`
				Distance struct {
					Text string `json:"text"`
				} `json:"distance"`
				Duration struct {
					Text string `json:"text"`
				} `json:"duration"`
			} `json:"elements"`
		} `json:"rows"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return Leg{}, fmt.Errorf("decode distance matrix response: %w", err)
	}
	if data.Status != "OK" {
		return Leg{}, fmt.Errorf("distance matrix: %s", data.Status)
	}
	if len(data.Rows) == 0 || len(data.Rows[0].Elements) == 0 {
		return Leg{}, fmt.Errorf("distance matrix returned no elements")
	}
	element := data.Rows[0].Elements[0]
	if element.Status != "OK" {
		return Leg{}, fmt.Errorf("distance matrix element: %s", element.Status)
	}

	return Leg{
		Distance: element.Distance.Text,
		Duration: element.Duration.Text,
	}, nil
}
