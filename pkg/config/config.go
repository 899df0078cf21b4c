package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Ledger        LedgerConfig        `yaml:"ledger"`
	Payout        PayoutConfig        `yaml:"payout"`
	Rates         RatesConfig         `yaml:"rates"`
	Watcher       WatcherConfig       `yaml:"watcher"`
	Settlement    SettlementConfig    `yaml:"settlement"`
	Tracker       TrackerConfig       `yaml:"tracker"`
	Orchestrator  OrchestratorConfig  `yaml:"orchestrator"`
	Refunds       RefundConfig        `yaml:"refunds"`
	Fulfillment   FulfillmentConfig   `yaml:"fulfillment"`
	Notifications NotificationsConfig `yaml:"notifications"`
	WebSocket     WebSocketConfig     `yaml:"websocket"`
	Security      SecurityConfig      `yaml:"security"`
	JWT           JWTConfig           `yaml:"jwt"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
	PublicURL   string `yaml:"public_url"` // base for provider callback URLs
}

type DatabaseConfig struct {
	Host            string `yaml:"host"`
	Port            string `yaml:"port"`
	User            string `yaml:"user"`
	DBName          string `yaml:"name"`
	Password        string `yaml:"password"`
	SSLMode         string `yaml:"ssl_mode"`
	MaxConns        int    `yaml:"max_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
}

type LedgerConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	SearchLimit    int           `yaml:"search_limit"`
	CacheEnabled   bool          `yaml:"cache_enabled"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	LookbackWindow time.Duration `yaml:"lookback_window"`
}

type PayoutConfig struct {
	BaseURL          string        `yaml:"base_url"`
	ConsumerKey      string        `yaml:"consumer_key"`
	ConsumerSecret   string        `yaml:"consumer_secret"`
	InitiatorName    string        `yaml:"initiator_name"`
	SecurityCred     string        `yaml:"security_credential"`
	ShortCode        string        `yaml:"short_code"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryBackoffBase time.Duration `yaml:"retry_backoff_base"`
	TokenEarlyExpiry time.Duration `yaml:"token_early_expiry"`
}

type RatesConfig struct {
	BaseURL          string        `yaml:"base_url"`
	APIKey           string        `yaml:"api_key"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryBackoffBase int           `yaml:"retry_backoff_base"`
}

type WatcherConfig struct {
	PollInterval   time.Duration `yaml:"poll_interval"`
	WatchTimeout   time.Duration `yaml:"watch_timeout"`
	MaxPolls       int           `yaml:"max_polls"`
	LookbackWindow time.Duration `yaml:"lookback_window"`
	AmountTolerance float64      `yaml:"amount_tolerance"`
	MaxFeeSubunits int64         `yaml:"max_fee_subunits"`
}

type SettlementConfig struct {
	FeePercent       float64       `yaml:"fee_percent"`
	MinimumAmount    float64       `yaml:"minimum_amount"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryBackoffBase time.Duration `yaml:"retry_backoff_base"`
	PayoutCurrency   string        `yaml:"payout_currency"`
}

type TrackerConfig struct {
	HistoryLimit  int           `yaml:"history_limit"`
	HistoryWindow time.Duration `yaml:"history_window"`
}

type OrchestratorConfig struct {
	ProcessingTimeout time.Duration `yaml:"processing_timeout"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
}

type RefundConfig struct {
	AutoApproveLimit float64       `yaml:"auto_approve_limit"`
	ReversalURL      string        `yaml:"reversal_url"`
	Timeout          time.Duration `yaml:"timeout"`
}

type FulfillmentConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

type NotificationsConfig struct {
	SMSGatewayURL string        `yaml:"sms_gateway_url"`
	SMSAPIKey     string        `yaml:"sms_api_key"`
	WebhookURL    string        `yaml:"webhook_url"`
	Timeout       time.Duration `yaml:"timeout"`
}

type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size"`
	CheckOrigin     bool          `yaml:"check_origin"`
	PingPeriod      time.Duration `yaml:"ping_period"`
}

type SecurityConfig struct {
	APIKey string `yaml:"api_key"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		return nil, err
	}

	var config Config
	configData, err := os.ReadFile("./config.yaml")
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(configData, &config); err != nil {
		return nil, err
	}

	config.applyEnvOverrides()
	config.applyDefaults()
	return &config, nil
}

// applyEnvOverrides lets secrets come from the environment instead of the
// yaml file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("PAYOUT_CONSUMER_KEY"); v != "" {
		c.Payout.ConsumerKey = v
	}
	if v := os.Getenv("PAYOUT_CONSUMER_SECRET"); v != "" {
		c.Payout.ConsumerSecret = v
	}
	if v := os.Getenv("PAYOUT_SECURITY_CREDENTIAL"); v != "" {
		c.Payout.SecurityCred = v
	}
	if v := os.Getenv("RATES_API_KEY"); v != "" {
		c.Rates.APIKey = v
	}
	if v := os.Getenv("API_KEY"); v != "" {
		c.Security.APIKey = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWT.Secret = v
	}
}

func (c *Config) applyDefaults() {
	if c.Watcher.PollInterval == 0 {
		c.Watcher.PollInterval = 10 * time.Second
	}
	if c.Watcher.WatchTimeout == 0 {
		c.Watcher.WatchTimeout = 5 * time.Minute
	}
	if c.Watcher.LookbackWindow == 0 {
		c.Watcher.LookbackWindow = 30 * time.Minute
	}
	if c.Watcher.AmountTolerance == 0 {
		c.Watcher.AmountTolerance = 0.02
	}
	if c.Watcher.MaxFeeSubunits == 0 {
		c.Watcher.MaxFeeSubunits = 10_000_000 // 0.1 coin
	}
	if c.Settlement.MaxRetries == 0 {
		c.Settlement.MaxRetries = 3
	}
	if c.Settlement.RetryBackoffBase == 0 {
		c.Settlement.RetryBackoffBase = 60 * time.Second
	}
	if c.Settlement.FeePercent == 0 {
		c.Settlement.FeePercent = 0.01
	}
	if c.Settlement.PayoutCurrency == "" {
		c.Settlement.PayoutCurrency = "KES"
	}
	if c.Tracker.HistoryLimit == 0 {
		c.Tracker.HistoryLimit = 100
	}
	if c.Tracker.HistoryWindow == 0 {
		c.Tracker.HistoryWindow = 30 * 24 * time.Hour
	}
	if c.Orchestrator.ProcessingTimeout == 0 {
		c.Orchestrator.ProcessingTimeout = 30 * time.Minute
	}
	if c.Orchestrator.SweepInterval == 0 {
		c.Orchestrator.SweepInterval = 5 * time.Minute
	}
	if c.Refunds.AutoApproveLimit == 0 {
		c.Refunds.AutoApproveLimit = 1000
	}
	if c.Refunds.Timeout == 0 {
		c.Refunds.Timeout = 15 * time.Second
	}
	if c.Fulfillment.Timeout == 0 {
		c.Fulfillment.Timeout = 10 * time.Second
	}
	if c.Notifications.Timeout == 0 {
		c.Notifications.Timeout = 10 * time.Second
	}
	if c.Ledger.CacheTTL == 0 {
		c.Ledger.CacheTTL = 10 * time.Second
	}
	if c.Ledger.SearchLimit == 0 {
		c.Ledger.SearchLimit = 100
	}
}
