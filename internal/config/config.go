package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	BackendHTTPURL string
	BackendWSURL   string
	Transport      string

	// Page source: a DevTools endpoint, a URL to open in a local browser,
	// or an HTML file that is polled for changes.
	ChromeWSURL string
	PageURL     string
	PageFile    string
	PageKey     string

	Debounce       time.Duration
	RetryDelay     time.Duration
	ReconnectDelay time.Duration
	FilePoll       time.Duration
	FallbackRPS    float64
	SessionIdle    time.Duration

	RedisURL    string
	DatabaseURL string

	LayoutsFile string
	OverlayPNG  string
	OverlayDOM  bool
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		BackendHTTPURL: "http://127.0.0.1:3030",
		BackendWSURL:   "ws://127.0.0.1:3030/ws",
		Transport:      "auto",
		PageKey:        "default",
		Debounce:       300 * time.Millisecond,
		RetryDelay:     time.Second,
		ReconnectDelay: 3 * time.Second,
		FilePoll:       250 * time.Millisecond,
		FallbackRPS:    5,
		SessionIdle:    30 * time.Minute,
		OverlayDOM:     true,
	}

	if v := strings.TrimSpace(os.Getenv("BACKEND_HTTP_URL")); v != "" {
		cfg.BackendHTTPURL = strings.TrimRight(v, "/")
	}
	if v, ok := os.LookupEnv("BACKEND_WS_URL"); ok {
		// An explicitly empty value disables the streaming channel.
		cfg.BackendWSURL = strings.TrimSpace(v)
	}
	if v := strings.TrimSpace(os.Getenv("TRANSPORT")); v != "" {
		cfg.Transport = strings.ToLower(v)
	}

	cfg.ChromeWSURL = strings.TrimSpace(os.Getenv("CHROME_WS_URL"))
	cfg.PageURL = strings.TrimSpace(os.Getenv("PAGE_URL"))
	cfg.PageFile = strings.TrimSpace(os.Getenv("PAGE_FILE"))
	if v := strings.TrimSpace(os.Getenv("PAGE_KEY")); v != "" {
		cfg.PageKey = v
	}

	if d, ok := millis("DEBOUNCE_MS"); ok {
		cfg.Debounce = d
	}
	if d, ok := millis("RETRY_MS"); ok {
		cfg.RetryDelay = d
	}
	if d, ok := millis("RECONNECT_MS"); ok {
		cfg.ReconnectDelay = d
	}
	if d, ok := millis("FILE_POLL_MS"); ok {
		cfg.FilePoll = d
	}
	if v := strings.TrimSpace(os.Getenv("FALLBACK_RPS")); v != "" {
		// 0 disables the limiter.
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.FallbackRPS = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_IDLE_MIN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionIdle = time.Duration(n) * time.Minute
		}
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.LayoutsFile = strings.TrimSpace(os.Getenv("LAYOUTS_FILE"))
	cfg.OverlayPNG = strings.TrimSpace(os.Getenv("OVERLAY_PNG"))
	if v := strings.TrimSpace(os.Getenv("OVERLAY_DOM")); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			cfg.OverlayDOM = b
		}
	}

	switch cfg.Transport {
	case "auto", "ws", "http":
	default:
		return nil, fmt.Errorf("TRANSPORT must be auto, ws or http (got %q)", cfg.Transport)
	}
	if cfg.Transport == "ws" && cfg.BackendWSURL == "" {
		return nil, errors.New("BACKEND_WS_URL is required when TRANSPORT=ws")
	}
	if cfg.BackendHTTPURL == "" && cfg.BackendWSURL == "" {
		return nil, errors.New("BACKEND_HTTP_URL or BACKEND_WS_URL is required")
	}
	if cfg.ChromeWSURL == "" && cfg.PageURL == "" && cfg.PageFile == "" {
		return nil, errors.New("one of CHROME_WS_URL, PAGE_URL or PAGE_FILE is required")
	}

	return cfg, nil
}

func millis(key string) (time.Duration, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return time.Duration(n) * time.Millisecond, true
}
