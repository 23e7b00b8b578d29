package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/xaenox/calbot/internal/models"
)

// provider resolves the machine's public-IP location against one service.
type provider interface {
	name() string
	lookup(ctx context.Context, client *http.Client) (models.Location, error)
}

func fetchJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type ipAPIProvider struct {
	url string
}

func (p ipAPIProvider) name() string { return "ip-api.com" }

func (p ipAPIProvider) lookup(ctx context.Context, client *http.Client) (models.Location, error) {
	var data struct {
		Status     string  `json:"status"`
		Message    string  `json:"message"`
		City       string  `json:"city"`
		RegionName string  `json:"regionName"`
		Country    string  `json:"country"`
		Lat        float64 `json:"lat"`
		Lon        float64 `json:"lon"`
		ISP        string  `json:"isp"`
		Timezone   string  `json:"timezone"`
	}
	if err := fetchJSON(ctx, client, p.url, &data); err != nil {
		return models.Location{}, err
	}
	if data.Status != "success" {
		return models.Location{}, fmt.Errorf("lookup failed: %s", data.Message)
	}
	return models.Location{
		City:     data.City,
		Region:   data.RegionName,
		Country:  data.Country,
		Lat:      data.Lat,
		Lon:      data.Lon,
		ISP:      data.ISP,
		Timezone: data.Timezone,
	}, nil
}

type ipapiCoProvider struct {
	url string
}

func (p ipapiCoProvider) name() string { return "ipapi.co" }

func (p ipapiCoProvider) lookup(ctx context.Context, client *http.Client) (models.Location, error) {
	var data struct {
		City        string  `json:"city"`
		Region      string  `json:"region"`
		CountryName string  `json:"country_name"`
		Latitude    float64 `json:"latitude"`
		Longitude   float64 `json:"longitude"`
		Org         string  `json:"org"`
		Timezone    string  `json:"timezone"`
	}
	if err := fetchJSON(ctx, client, p.url, &data); err != nil {
		return models.Location{}, err
	}
	if data.City == "" {
		return models.Location{}, fmt.Errorf("lookup returned no city")
	}
	return models.Location{
		City:     data.City,
		Region:   data.Region,
		Country:  data.CountryName,
		Lat:      data.Latitude,
		Lon:      data.Longitude,
		ISP:      data.Org,
		Timezone: data.Timezone,
	}, nil
}

type ipinfoProvider struct {
	url string
}

func (p ipinfoProvider) name() string { return "ipinfo.io" }

func (p ipinfoProvider) lookup(ctx context.Context, client *http.Client) (models.Location, error) {
	var data struct {
		City     string `json:"city"`
		Region   string `json:"region"`
		Country  string `json:"country"`
		Loc      string `json:"loc"`
		Org      string `json:"org"`
		Timezone string `json:"timezone"`
	}
	if err := fetchJSON(ctx, client, p.url, &data); err != nil {
		return models.Location{}, err
	}
	if data.City == "" {
		return models.Location{}, fmt.Errorf("lookup returned no city")
	}

	loc := models.Location{
		City:     data.City,
		Region:   data.Region,
		Country:  data.Country,
		ISP:      data.Org,
		Timezone: data.Timezone,
	}
	if lat, lon, ok := splitLatLon(data.Loc); ok {
		loc.Lat, loc.Lon = lat, lon
	}
	return loc, nil
}

func splitLatLon(raw string) (float64, float64, bool) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLat != nil || errLon != nil {
		return 0, 0, false
	}
	return lat, lon, true
}
