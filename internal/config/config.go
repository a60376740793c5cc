package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env            string        `mapstructure:"ENV"`
	Port           string        `mapstructure:"PORT"`
	AdminKey       string        `mapstructure:"ADMIN_KEY"`
	CORSAllowed    string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`

	// Ticket sources. TICKETS_URL may point at a CSV or XLSX file; when
	// TICKETS_DATABASE_URL is set the tickets are exported from Postgres instead.
	TicketsURL         string `mapstructure:"TICKETS_URL"`
	TicketsDatabaseURL string `mapstructure:"TICKETS_DATABASE_URL"`
	TicketsQuery       string `mapstructure:"TICKETS_QUERY"`

	ParticipationParquetURL string `mapstructure:"PARTICIPATION_PARQUET_URL"`
	ParticipationCSVURL     string `mapstructure:"PARTICIPATION_CSV_URL"`

	AttachmentBaseURL string `mapstructure:"ATTACHMENT_BASE_URL"`
	AttachmentToken   string `mapstructure:"ATTACHMENT_TOKEN"`

	LoadTimeout  time.Duration `mapstructure:"LOAD_TIMEOUT"`
	CachePath    string        `mapstructure:"CACHE_PATH"`
	CacheMaxAge  time.Duration `mapstructure:"CACHE_MAX_AGE"`
	StorePath    string        `mapstructure:"STORE_PATH"`
	Debounce     time.Duration `mapstructure:"DEBOUNCE"`
	RowCap       int           `mapstructure:"ROW_CAP"`
	ParquetBatch int           `mapstructure:"PARQUET_BATCH"`
	DemoFallback bool          `mapstructure:"DEMO_FALLBACK"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("ADMIN_KEY", "")

	v.SetDefault("TICKETS_URL", "")
	v.SetDefault("TICKETS_DATABASE_URL", "")
	v.SetDefault("TICKETS_QUERY", "SELECT * FROM maintenance_tickets")
	v.SetDefault("PARTICIPATION_PARQUET_URL", "")
	v.SetDefault("PARTICIPATION_CSV_URL", "")
	v.SetDefault("ATTACHMENT_BASE_URL", "https://api.nadi.my/api/attachment/view?file_url=")
	v.SetDefault("ATTACHMENT_TOKEN", "")

	v.SetDefault("LOAD_TIMEOUT", "8s")
	v.SetDefault("CACHE_PATH", "dashboard-cache.db")
	v.SetDefault("CACHE_MAX_AGE", "24h")
	v.SetDefault("STORE_PATH", "")
	v.SetDefault("DEBOUNCE", "250ms")
	v.SetDefault("ROW_CAP", 2000)
	v.SetDefault("PARQUET_BATCH", 5000)
	v.SetDefault("DEMO_FALLBACK", true)
}
