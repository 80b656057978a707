package config

import "github.com/kelseyhightower/envconfig"

type APIConfig struct {
	DBDSN     string `envconfig:"DB_DSN" required:"true"`
	Port      string `envconfig:"PORT" default:"8080"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	// db pool
	DBPoolMaxConns        int32  `envconfig:"DB_POOL_MAX_CONNS" default:"10"`
	DBPoolMinConns        int32  `envconfig:"DB_POOL_MIN_CONNS" default:"0"`
	DBPoolMaxConnLifetime string `envconfig:"DB_POOL_MAX_CONN_LIFETIME"`
	DBPoolMaxConnIdleTime string `envconfig:"DB_POOL_MAX_CONN_IDLE_TIME"`

	// dispatch engine
	MaxSendAttempts   int    `envconfig:"MAX_SEND_ATTEMPTS" default:"3"`
	WorkerConcurrency int    `envconfig:"WORKER_CONCURRENCY" default:"8"`
	AttemptTimeout    string `envconfig:"SEND_ATTEMPT_TIMEOUT" default:"12s"`

	// smtp pacing (shared across all accounts, per pod)
	SMTPRatePerSecond float64 `envconfig:"SMTP_RATE_PER_SECOND" default:"5"`
	SMTPBurst         int     `envconfig:"SMTP_BURST" default:"10"`

	// counter flush back to the account records
	CounterFlushInterval string `envconfig:"COUNTER_FLUSH_INTERVAL" default:"30s"`
}

type SendTestConfig struct {
	DBDSN     string `envconfig:"DB_DSN" required:"true"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	AttemptTimeout string `envconfig:"SEND_ATTEMPT_TIMEOUT" default:"12s"`
}

func LoadAPI() APIConfig {
	var cfg APIConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func LoadSendTest() SendTestConfig {
	var cfg SendTestConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}
