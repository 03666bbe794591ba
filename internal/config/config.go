package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type (
	Config struct {
		SlackBotToken     string `env:"SLACK_BOT_TOKEN,required"`
		SlackAppToken     string `env:"SLACK_APP_TOKEN,required"`
		SlackBrowserToken string `env:"SLACK_BROWSER_TOKEN"`
		SlackCookie       string `env:"SLACK_COOKIE"`
		MirrorChannel     string `env:"MIRROR_CHANNEL"`
		LogLevel          int    `env:"LOG_LEVEL,default=4"`
		DotPath           string `env:"DOT_PATH,default=~/.modbot"`
		Moderation        Moderation
	}

	Moderation struct {
		ExemptCacheTTL time.Duration `env:"EXEMPT_CACHE_TTL,default=60s"`
		SweepInterval  time.Duration `env:"SWEEP_INTERVAL,default=1m"`
	}
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

func Load() (Config, error) {
	once.Do(func() {
		cfg := &Config{}
		envcfg := envconfig.Config{
			Lookuper: envconfig.PrefixLookuper("MODBOT_", envconfig.OsLookuper()),
			Target:   cfg,
		}
		if err := envconfig.ProcessWith(context.Background(), &envcfg); err != nil {
			globalErr = fmt.Errorf("process env config: %w", err)
			return
		}
		home, err := os.UserHomeDir()
		if err != nil {
			globalErr = fmt.Errorf("get user home directory: %w", err)
			return
		}
		cfg.DotPath = strings.Replace(cfg.DotPath, "~", home, 1)
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

func Get() Config {
	cfg, err := Load()
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load config")
	}
	return cfg
}
