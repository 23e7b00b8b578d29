package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"golang.org/x/oauth2"
)

// googleEndpoint is inlined so only the core oauth2 module is needed.
var googleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

const calendarScope = "https://www.googleapis.com/auth/calendar"

// FileTokenSource builds a token source from a Google OAuth client
// credentials file and a previously provisioned token file. Refreshed
// access tokens are written back to the token file so they survive
// restarts. Interactive consent is out of scope: a missing token file is
// an error for the operator, not something the bot can recover from.
func FileTokenSource(ctx context.Context, credentialsPath, tokenPath string) (oauth2.TokenSource, error) {
	conf, err := loadOAuthConfig(credentialsPath)
	if err != nil {
		return nil, err
	}

	token, err := readTokenFile(tokenPath)
	if err != nil {
		return nil, err
	}

	return &persistingTokenSource{
		source: conf.TokenSource(ctx, token),
		path:   tokenPath,
		last:   token.AccessToken,
	}, nil
}

func loadOAuthConfig(path string) (*oauth2.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	var file struct {
		Installed *clientCredentials `json:"installed"`
		Web       *clientCredentials `json:"web"`
	}
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse credentials file %s: %w", path, err)
	}

	creds := file.Installed
	if creds == nil {
		creds = file.Web
	}
	if creds == nil || creds.ClientID == "" {
		return nil, fmt.Errorf("credentials file %s has no installed or web client", path)
	}

	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     googleEndpoint,
		Scopes:       []string{calendarScope},
	}, nil
}

type clientCredentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

func readTokenFile(path string) (*oauth2.Token, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token file (provision it first): %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("parse token file %s: %w", path, err)
	}
	if token.RefreshToken == "" && token.AccessToken == "" {
		return nil, fmt.Errorf("token file %s holds no usable token", path)
	}
	return &token, nil
}

// persistingTokenSource writes tokens back to disk whenever the underlying
// source hands out a new access token.
type persistingTokenSource struct {
	mu     sync.Mutex
	source oauth2.TokenSource
	path   string
	last   string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	token, err := p.source.Token()
	if err != nil {
		return nil, err
	}
	if token.AccessToken != p.last {
		if err := writeTokenFile(p.path, token); err != nil {
			return nil, err
		}
		p.last = token.AccessToken
	}
	return token, nil
}

func writeTokenFile(path string, token *oauth2.Token) error {
	encoded, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o600); err != nil {
		return fmt.Errorf("persist token file: %w", err)
	}
	return nil
}
