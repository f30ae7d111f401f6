package config

import (
	"testing"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestConfig_Defaults(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")

	var cfg Config
	WithWriteTimeout(time.Minute)(&cfg)
	require.NoError(t, envconfig.Process("", &cfg))

	require.Equal(t, "3000", cfg.Server.Port)
	require.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	require.Equal(t, time.Minute, cfg.Server.WriteTimeout)
	require.Equal(t, []string{"http://localhost:5173"}, cfg.Server.AllowOrigins)
	require.Equal(t, DriverDynamoDB, cfg.Driver)
	require.Equal(t, []string{"books", "categories", "emprunts", "emprunt_locks"}, cfg.Tables.All())
	require.Equal(t, "eu-north-1", cfg.Dynamo.Region)
	require.True(t, cfg.Dynamo.CreateTables)
	require.False(t, cfg.Kafka.Enabled())
	require.Equal(t, zapcore.InfoLevel, cfg.Log.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestConfig_FromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("BOOKS_TABLE_NAME", "prod_books")
	t.Setenv("KAFKA_ADDRS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DB_NAME", "lib")

	var cfg Config
	WithLogLevel(zapcore.WarnLevel)(&cfg)
	require.NoError(t, envconfig.Process("", &cfg))

	require.Equal(t, DriverPostgres, cfg.Driver)
	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, "prod_books", cfg.Tables.Books)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Addrs)
	require.True(t, cfg.Kafka.Enabled())
	require.Equal(t, zapcore.DebugLevel, cfg.Log.LogLevel)
	require.Equal(t, "lib", cfg.Database.NameDB)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "ok. memory needs nothing",
			cfg:  Config{Driver: DriverMemory},
		},
		{
			name:    "err. dynamodb without credentials",
			cfg:     Config{Driver: DriverDynamoDB},
			wantErr: "AWS_ACCESS_KEY_ID is not defined",
		},
		{
			name:    "err. unknown driver",
			cfg:     Config{Driver: "redis"},
			wantErr: `unknown STORE_DRIVER "redis"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.EqualError(t, err, tt.wantErr)
		})
	}
}
