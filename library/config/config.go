package config

import (
	"log"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/Astemirdum/book-library/library/internal/service/metadata"
	"github.com/Astemirdum/book-library/pkg/auth"
	"github.com/Astemirdum/book-library/pkg/kafka"
	"github.com/Astemirdum/book-library/pkg/logger"
	"github.com/Astemirdum/book-library/pkg/postgres"
)

type HTTPServer struct {
	Host         string        `yaml:"host" envconfig:"LIBRARY_HTTP_HOST" default:"0.0.0.0"`
	Port         string        `yaml:"port" envconfig:"LIBRARY_HTTP_PORT" default:"8080"`
	ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"HTTP_READ" default:"15s"`
	WriteTimeout time.Duration `yaml:"writeTimeout" envconfig:"HTTP_WRITE"`
}

type Config struct {
	Server   HTTPServer      `yaml:"server"`
	Database postgres.DB     `yaml:"db"`
	Log      logger.Log      `yaml:"log"`
	Auth     auth.Config     `yaml:"auth"`
	Metadata metadata.Config `yaml:"metadata"`
	Kafka    kafka.Config    `yaml:"kafka"`
}

var (
	once sync.Once
	cfg  *Config
)

// NewConfig reads config from environment. Options set defaults that the
// environment may override.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		c, err := Load(ops...)
		if err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = c
	})

	return cfg
}

func Load(ops ...Option) (*Config, error) {
	var config Config
	for _, op := range ops {
		op(&config)
	}
	if err := envconfig.Process("", &config); err != nil {
		return nil, err
	}
	return &config, nil
}
