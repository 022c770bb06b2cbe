package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config is the full runtime configuration, read from the environment.
// The two Supabase values are the only required secrets; everything else
// has a default tuned for the daily cron run.
type Config struct {
	SupabaseURL string `env:"SUPABASE_URL,required,notEmpty"`
	ServiceKey  string `env:"SUPABASE_SERVICE_ROLE_KEY,required,notEmpty"`

	// Source selects the upstream strategy: "batch" uses the multi-symbol
	// quote endpoint, "history" walks symbols one by one via the chart
	// endpoint. Chosen once per deployment, never mixed within a run.
	Source  string   `env:"QUOTE_SOURCE" envDefault:"batch"`
	Tickers []string `env:"TICKERS" envDefault:"SPY,SSO,UPRO,QQQ,QLD,TQQQ,SOXX,USD,SOXL,STRC,BILL,ICSH,SGOV"`

	QuoteBaseURL   string        `env:"QUOTE_BASE_URL" envDefault:"https://query1.finance.yahoo.com"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	RetentionDays  int           `env:"RETENTION_DAYS" envDefault:"300"`

	GroupMin    int           `env:"GROUP_MIN" envDefault:"2"`
	GroupMax    int           `env:"GROUP_MAX" envDefault:"5"`
	GroupPause  time.Duration `env:"GROUP_PAUSE" envDefault:"3s"`
	CallPause   time.Duration `env:"CALL_PAUSE" envDefault:"700ms"`
	MaxRetries  int           `env:"MAX_RETRIES" envDefault:"3"`
	BaseBackoff time.Duration `env:"BASE_BACKOFF" envDefault:"2s"`
	Jitter      float64       `env:"JITTER" envDefault:"0.5"`
}

// Load reads configuration from the environment. A local .env file, when
// present, is loaded first so deployments can ship secrets as a file
// instead of real environment variables.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	if cfg.Source != "batch" && cfg.Source != "history" {
		return cfg, fmt.Errorf("config: unknown QUOTE_SOURCE %q (want batch or history)", cfg.Source)
	}
	if len(cfg.Tickers) == 0 {
		return cfg, fmt.Errorf("config: empty TICKERS roster")
	}
	return cfg, nil
}
