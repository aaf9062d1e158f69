package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"gopkg.in/yaml.v3"
)

const defaultConfigFile = "pushctl.yaml"

var (
	configFile string
	apiURLFlag string
)

type cliConfig struct {
	APIURL         string `yaml:"api_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func loadCLIConfig() (*cliConfig, error) {
	cfg := &cliConfig{
		APIURL:         "http://localhost:8080",
		TimeoutSeconds: 30,
	}

	path := configFile
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if apiURLFlag != "" {
		cfg.APIURL = apiURLFlag
	}
	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("api url is required")
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 30
	}

	return cfg, nil
}

func newAPIClient() (*resty.Client, error) {
	cfg, err := loadCLIConfig()
	if err != nil {
		return nil, err
	}

	client := resty.New().
		SetBaseURL(cfg.APIURL).
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second).
		SetHeader("Content-Type", "application/json")

	return client, nil
}

type apiErrorBody struct {
	Error string `json:"error"`
}

func apiError(resp *resty.Response) error {
	var body apiErrorBody
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Error != "" {
		return fmt.Errorf("%s: %s", resp.Status(), body.Error)
	}
	return fmt.Errorf("%s", resp.Status())
}
