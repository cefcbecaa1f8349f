package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config contém as configurações da aplicação. É montada uma vez na
// inicialização e repassada por ponteiro.
type Config struct {
	TelegramBotToken string
	DatabaseURL      string
	TickSchedule     string
	WatchTimeout     time.Duration
	LogLevel         string
	MetricsAddr      string

	Browser BrowserConfig
	Redis   RedisConfig
}

// BrowserConfig configura o navegador usado na renderização
type BrowserConfig struct {
	BinPath     string
	Headless    bool
	NoSandbox   bool
	Stealth     bool
	WaitTimeout time.Duration
}

// RedisConfig habilita a reserva distribuída quando Addr está preenchido
type RedisConfig struct {
	Addr     string
	Password string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DATABASE_URL", "./watches.db")
	v.SetDefault("TICK_SCHEDULE", "@every 1m")
	v.SetDefault("WATCH_TIMEOUT", "90s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("BROWSER_HEADLESS", true)
	v.SetDefault("BROWSER_NO_SANDBOX", true)
	v.SetDefault("BROWSER_STEALTH", true)
	v.SetDefault("BROWSER_WAIT_TIMEOUT", "30s")
}

// Load carrega as configurações das variáveis de ambiente
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	watchTimeout, err := durationValue(v, "WATCH_TIMEOUT")
	if err != nil {
		return nil, err
	}
	waitTimeout, err := durationValue(v, "BROWSER_WAIT_TIMEOUT")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		TelegramBotToken: strings.TrimSpace(v.GetString("TELEGRAM_BOT_TOKEN")),
		DatabaseURL:      v.GetString("DATABASE_URL"),
		TickSchedule:     v.GetString("TICK_SCHEDULE"),
		WatchTimeout:     watchTimeout,
		LogLevel:         v.GetString("LOG_LEVEL"),
		MetricsAddr:      v.GetString("METRICS_ADDR"),
		Browser: BrowserConfig{
			BinPath:     v.GetString("BROWSER_BIN"),
			Headless:    v.GetBool("BROWSER_HEADLESS"),
			NoSandbox:   v.GetBool("BROWSER_NO_SANDBOX"),
			Stealth:     v.GetBool("BROWSER_STEALTH"),
			WaitTimeout: waitTimeout,
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// durationValue lê uma duração ("90s", "2m"). Um inteiro puro vale segundos.
func durationValue(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s inválido %q: use uma duração como 90s ou 2m", key, raw)
	}
	return d, nil
}

// Validate verifica os campos obrigatórios e os limites
func (c *Config) Validate() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN não configurado")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL vazio")
	}
	if c.WatchTimeout <= 0 {
		return fmt.Errorf("WATCH_TIMEOUT deve ser positivo")
	}
	if c.Browser.WaitTimeout <= 0 {
		return fmt.Errorf("BROWSER_WAIT_TIMEOUT deve ser positivo")
	}
	if c.Browser.WaitTimeout > c.WatchTimeout {
		return fmt.Errorf("BROWSER_WAIT_TIMEOUT (%s) não pode exceder WATCH_TIMEOUT (%s)", c.Browser.WaitTimeout, c.WatchTimeout)
	}
	return nil
}
