package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
)

type cliConfig struct {
	Transport string `json:"transport"`
	Server    string `json:"server"`
	Socket    string `json:"socket"`
}

type apiClient struct {
	httpClient *http.Client
	server     string
}

func newAPIClient(server string) *apiClient {
	return &apiClient{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		server:     strings.TrimRight(server, "/"),
	}
}

func (c *apiClient) request(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return err
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.server+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		payload, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(payload, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("api error (%d %s): %s", resp.StatusCode, apiErr.Code, apiErr.Error)
		}
		return fmt.Errorf("api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".dozer", "cli.json"), nil
}

// loadConfig reads the client settings file; a missing file yields defaults.
func loadConfig() (cliConfig, error) {
	cfg := cliConfig{Transport: "uds", Server: "http://127.0.0.1:8080", Socket: "/tmp/dozer.sock"}
	path, err := configPath()
	if err != nil {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cliConfig{}, err
	}
	var stored cliConfig
	if err := json.Unmarshal(data, &stored); err != nil {
		return cliConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if stored.Transport != "" {
		cfg.Transport = stored.Transport
	}
	if stored.Server != "" {
		cfg.Server = stored.Server
	}
	if stored.Socket != "" {
		cfg.Socket = stored.Socket
	}
	return cfg, nil
}

// clientConfig layers command flags over the settings file.
func clientConfig(c *cli.Command) (cliConfig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cliConfig{}, err
	}
	if c.IsSet("transport") {
		cfg.Transport = c.String("transport")
	}
	if c.IsSet("server") {
		cfg.Server = c.String("server")
	}
	if c.IsSet("socket") {
		cfg.Socket = c.String("socket")
	}
	switch cfg.Transport {
	case "uds", "http":
		return cfg, nil
	default:
		return cliConfig{}, fmt.Errorf("transport must be uds or http, got %q", cfg.Transport)
	}
}
