package config

import (
	"log"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"

	"github.com/Astemirdum/library-kv-service/pkg/kafka"
	"github.com/Astemirdum/library-kv-service/pkg/kv/dynamo"
	"github.com/Astemirdum/library-kv-service/pkg/logger"
	"github.com/Astemirdum/library-kv-service/pkg/postgres"
)

type HTTPServer struct {
	Host         string        `yaml:"host" envconfig:"HTTP_HOST"`
	Port         string        `yaml:"port" envconfig:"HTTP_PORT" default:"3000"`
	ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"HTTP_READ" default:"10s"`
	WriteTimeout time.Duration `yaml:"writeTimeout" envconfig:"HTTP_WRITE"`
	AllowOrigins []string      `yaml:"allowOrigins" envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:5173"`
}

type Driver string

const (
	DriverDynamoDB Driver = "dynamodb"
	DriverPostgres Driver = "postgres"
	DriverMemory   Driver = "memory"
)

type Tables struct {
	Books      string `envconfig:"BOOKS_TABLE_NAME" default:"books"`
	Categories string `envconfig:"CATEGORIES_TABLE_NAME" default:"categories"`
	Emprunts   string `envconfig:"EMPRUNTS_TABLE_NAME" default:"emprunts"`
	LoanLocks  string `envconfig:"LOAN_LOCKS_TABLE_NAME" default:"emprunt_locks"`
}

func (t Tables) All() []string {
	return []string{t.Books, t.Categories, t.Emprunts, t.LoanLocks}
}

type Config struct {
	Server   HTTPServer    `yaml:"server"`
	Driver   Driver        `yaml:"driver" envconfig:"STORE_DRIVER" default:"dynamodb"`
	Tables   Tables        `yaml:"tables"`
	Dynamo   dynamo.Config `yaml:"dynamo"`
	Database postgres.DB   `yaml:"db"`
	Kafka    kafka.Config  `yaml:"kafka"`
	Log      logger.Log    `yaml:"log"`
}

func (c *Config) Validate() error {
	switch c.Driver {
	case DriverDynamoDB:
		return c.Dynamo.Validate()
	case DriverPostgres, DriverMemory:
		return nil
	}
	return errors.Errorf("unknown STORE_DRIVER %q", c.Driver)
}

var (
	once sync.Once
	cfg  *Config
)

// NewConfig reads config from environment. Variables with a default tag win over options.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		var config Config
		for _, op := range ops {
			op(&config)
		}
		if err := envconfig.Process("", &config); err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = &config
	})

	return cfg
}
