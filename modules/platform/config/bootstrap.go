package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"fred-chat/modules"
)

const (
	frontendConfigPath   = "/config.json"
	frontendSettingsPath = "/fred/config/frontend_settings"
	bootstrapTimeout     = 15 * time.Second
)

// ErrBootstrap wraps every startup configuration failure
var ErrBootstrap = errors.New("bootstrap failed")

// FrontendConfig is the content of config.json
type FrontendConfig struct {
	BackendURLAPI       string `json:"backend_url_api"`
	BackendURLKnowledge string `json:"backend_url_knowledge,omitempty"`
	WebSocketURL        string `json:"websocket_url,omitempty"`
}

// FrontendSettings is served by the backend to configure its clients
type FrontendSettings struct {
	FeatureFlags map[string]bool        `json:"feature_flags"`
	Properties   map[string]interface{} `json:"properties"`
}

// Enabled returns true if a feature flag is set
func (s *FrontendSettings) Enabled(flag string) bool {
	if s == nil {
		return false
	}
	return s.FeatureFlags[flag]
}

// Property returns a string property, empty if absent
func (s *FrontendSettings) Property(key string) string {
	if s == nil {
		return ""
	}
	v, _ := s.Properties[key].(string)
	return v
}

// Runtime is the configuration resolved at startup
type Runtime struct {
	Frontend FrontendConfig
	Settings FrontendSettings
	APIURL   string
}

// WebSocketURL returns the socket base announced by config.json, empty if
// it has to be derived from the API URL
func (r *Runtime) WebSocketURL() string {
	return strings.TrimRight(r.Frontend.WebSocketURL, "/")
}

// Bootstrap loads config.json then the frontend settings.
// Both must succeed before anything is rendered.
func Bootstrap(ctx context.Context, backend *Backend, token string, client *http.Client) (*Runtime, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: no backend section", ErrBootstrap)
	}
	if client == nil {
		client = &http.Client{Timeout: bootstrapTimeout}
	}

	rt := &Runtime{}
	switch {
	case backend.ConfigJSON != "":
		data, err := os.ReadFile(backend.ConfigJSON)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read %s: %v", ErrBootstrap, backend.ConfigJSON, err)
		}
		if err := json.Unmarshal(data, &rt.Frontend); err != nil {
			return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrBootstrap, backend.ConfigJSON, err)
		}
	case backend.FrontendURL != "":
		u := strings.TrimRight(backend.FrontendURL, "/") + frontendConfigPath
		if err := getJSON(ctx, client, u, "", &rt.Frontend); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBootstrap, err)
		}
	}

	rt.APIURL = strings.TrimRight(rt.Frontend.BackendURLAPI, "/")
	if backend.APIURL != "" {
		rt.APIURL = strings.TrimRight(backend.APIURL, "/")
	}
	if rt.APIURL == "" {
		return nil, fmt.Errorf("%w: backend_url_api is not configured", ErrBootstrap)
	}

	if err := getJSON(ctx, client, rt.APIURL+frontendSettingsPath, token, &rt.Settings); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBootstrap, err)
	}
	return rt, nil
}

func getJSON(ctx context.Context, client *http.Client, url, token string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", modules.UserAgent())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("GET %s: status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: failed to parse response: %w", url, err)
	}
	return nil
}
