package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
)

type Config struct {
	Env          string `env:"ENVIRONMENT"`
	ServerPort   int    `env:"PORT" envDefault:"8080"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"tubefeed.sqlite"`

	// WebsubSecret signs notification bodies; WebsubVerifyToken guards the
	// verification handshake. Both fail closed when unset.
	WebsubSecret      string `env:"WEBSUB_SECRET"`
	WebsubVerifyToken string `env:"WEBSUB_VERIFY_TOKEN"`

	BasicAuthCreds string `env:"BASIC_AUTH_CREDS"`
	Debug          bool   `env:"DEBUG"`
	MaxBodyBytes   int64  `env:"MAX_BODY_BYTES" envDefault:"1048576"`

	log   *zap.Logger
	creds map[string]string
}

func NewConfig(log *zap.Logger) *Config {
	cfg := &Config{log: log}
	if err := env.Parse(cfg); err != nil {
		log.Sugar().Panic(err)
	}

	creds, err := cfg.parseCreds()
	if err != nil {
		cfg.log.Sugar().Infof("%s (admin endpoints will be disabled)", err)
	}
	cfg.creds = creds

	return cfg
}

func (cfg *Config) GetCreds() map[string]string {
	return cfg.creds
}

func (cfg *Config) parseCreds() (map[string]string, error) {
	if cfg.BasicAuthCreds == "" {
		return nil, errors.New("BASIC_AUTH_CREDS envvar is not populated")
	}

	result := make(map[string]string)
	for _, cred := range strings.Split(cfg.BasicAuthCreds, ",") {
		userPass := strings.Split(cred, ":")
		if len(userPass) != 2 {
			return nil, fmt.Errorf("failed to parse '%s', each credential should be delimited by a colon -- user1:pass1,user2:pass2", cred)
		}

		user, pass := userPass[0], userPass[1]
		result[strings.Trim(user, " ")] = strings.Trim(pass, " ")
	}

	return result, nil
}
