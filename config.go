package ogsync

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds the server endpoints and timeouts.
type Config struct {
	// BaseURL is the REST root, e.g. https://online-go.com.
	BaseURL string
	// RealtimeURL is the Socket.IO websocket endpoint.
	RealtimeURL string
	// ConnectTimeout bounds Socket.Connect when the caller's context has no
	// earlier deadline.
	ConnectTimeout time.Duration
	// SettleDelay is waited after emitting authenticate, which the server
	// does not acknowledge.
	SettleDelay time.Duration
	// RequestTimeout bounds each REST call.
	RequestTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL:        "https://online-go.com",
		RealtimeURL:    "wss://online-go.com/socket.io/?EIO=4&transport=websocket",
		ConnectTimeout: 30 * time.Second,
		SettleDelay:    time.Second,
		RequestTimeout: 20 * time.Second,
	}
}

// BetaConfig points at the OGS beta server.
func BetaConfig() Config {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://beta.online-go.com"
	cfg.RealtimeURL = "wss://beta.online-go.com/socket.io/?EIO=4&transport=websocket"
	return cfg
}

// LoadConfig loads the given .env files, if any, then builds a Config from
// the environment:
//
//	OGS_BETA=true             start from BetaConfig
//	OGS_BASE_URL              REST root
//	OGS_REALTIME_URL          websocket endpoint
//	OGS_CONNECT_TIMEOUT       e.g. "30s"
//	OGS_SETTLE_DELAY          e.g. "1s"
//	OGS_REQUEST_TIMEOUT       e.g. "20s"
//
// Variables already set in the process environment win over .env files.
func LoadConfig(envFiles ...string) (Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return Config{}, fmt.Errorf("failed to load env files: %w", err)
		}
	}

	cfg := DefaultConfig()
	if v := os.Getenv("OGS_BETA"); v != "" {
		beta, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("OGS_BETA: %w", err)
		}
		if beta {
			cfg = BetaConfig()
		}
	}
	if v := os.Getenv("OGS_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("OGS_REALTIME_URL"); v != "" {
		cfg.RealtimeURL = v
	}
	for name, dst := range map[string]*time.Duration{
		"OGS_CONNECT_TIMEOUT": &cfg.ConnectTimeout,
		"OGS_SETTLE_DELAY":    &cfg.SettleDelay,
		"OGS_REQUEST_TIMEOUT": &cfg.RequestTimeout,
	} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", name, err)
		}
		*dst = d
	}
	return cfg, nil
}

// Option configures a Client or a Socket.
type Option func(*options)

type options struct {
	config     Config
	logger     *zap.Logger
	dialer     Dialer
	httpClient *http.Client
}

func buildOptions(opts []Option) options {
	o := options{
		config:     DefaultConfig(),
		logger:     zap.NewNop(),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithConfig(cfg Config) Option {
	return func(o *options) { o.config = cfg }
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithDialer replaces the default websocket transport.
func WithDialer(d Dialer) Option {
	return func(o *options) { o.dialer = d }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}
