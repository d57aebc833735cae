// Package config loads process configuration from the environment.
//
// Every knob has a default suitable for the docker-compose development
// stack; production deployments override through environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Settings is the full configuration for both the API server and the
// worker. It is loaded once in main and passed down explicitly.
type Settings struct {
	AppName string `mapstructure:"app_name"`

	// HTTP front end.
	ListenAddr      string `mapstructure:"listen_addr"`
	CORSOrigins     string `mapstructure:"cors_origins"`
	CORSCredentials bool   `mapstructure:"cors_credentials"`
	CORSMethods     string `mapstructure:"cors_methods"`
	CORSHeaders     string `mapstructure:"cors_headers"`

	// Auth.
	SecretKey                string `mapstructure:"secret_key"`
	AccessTokenExpireMinutes int    `mapstructure:"access_token_expire_minutes"`
	AdminEmail               string `mapstructure:"admin_email"`
	AdminPassword            string `mapstructure:"admin_password"`
	AdminName                string `mapstructure:"admin_name"`

	// Postgres.
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresServer   string `mapstructure:"postgres_server"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresDB       string `mapstructure:"postgres_db"`

	// Redis job queue.
	RedisQueueHost     string `mapstructure:"redis_queue_host"`
	RedisQueuePort     int    `mapstructure:"redis_queue_port"`
	RedisQueuePassword string `mapstructure:"redis_queue_password"`
	RedisQueueDB       int    `mapstructure:"redis_queue_db"`

	// Provisioner.
	CDKTFDir          string `mapstructure:"cdktf_dir"`
	TerraformBinary   string `mapstructure:"terraform_binary"`
	WorkerConcurrency int    `mapstructure:"worker_concurrency"`

	// Job record retention, in days.
	CompletedJobMaxAgeDays int `mapstructure:"completed_job_max_age_days"`
	FailedJobMaxAgeDays    int `mapstructure:"failed_job_max_age_days"`
}

// PostgresURI returns the pgx connection string.
func (s *Settings) PostgresURI() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		s.PostgresUser, s.PostgresPassword, s.PostgresServer, s.PostgresPort, s.PostgresDB)
}

// RedisAddr returns the host:port of the queue Redis.
func (s *Settings) RedisAddr() string {
	return fmt.Sprintf("%s:%d", s.RedisQueueHost, s.RedisQueuePort)
}

// Load reads Settings from the environment.
func Load() (*Settings, error) {
	v := viper.New()

	v.SetDefault("app_name", "OpenLabs API")
	v.SetDefault("listen_addr", "0.0.0.0:8000")
	v.SetDefault("cors_origins", "http://localhost:3000")
	v.SetDefault("cors_credentials", true)
	v.SetDefault("cors_methods", "*")
	v.SetDefault("cors_headers", "*")

	v.SetDefault("secret_key", "ChangeMe123!")
	v.SetDefault("access_token_expire_minutes", 60*24*7)
	v.SetDefault("admin_email", "admin@test.com")
	v.SetDefault("admin_password", "admin123")
	v.SetDefault("admin_name", "Administrator")

	v.SetDefault("postgres_user", "postgres")
	v.SetDefault("postgres_password", "ChangeMe123!")
	v.SetDefault("postgres_server", "postgres")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_db", "openlabs")

	v.SetDefault("redis_queue_host", "redis")
	v.SetDefault("redis_queue_port", 6379)
	v.SetDefault("redis_queue_password", "ChangeMe123!")
	v.SetDefault("redis_queue_db", 0)

	v.SetDefault("cdktf_dir", defaultWorkDir())
	v.SetDefault("terraform_binary", "terraform")
	v.SetDefault("worker_concurrency", 4)

	v.SetDefault("completed_job_max_age_days", 7)
	v.SetDefault("failed_job_max_age_days", 30)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshalling settings: %w", err)
	}
	return &s, nil
}

func defaultWorkDir() string {
	return filepath.Join(os.TempDir(), ".cdktf")
}
