package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	GeneralParams     GeneralParams
	HttpServerParams  HttpServerParams
	SignalingParams   SignalingParams
	PersistenceParams PersistenceParams
	MainDBParams      MainDBParams
	S3Params          S3Params
}

type GeneralParams struct {
	Env       string
	LogLevel  string
	SecretKey string

	// Operator credentials for the ops API; the secret is a bcrypt hash
	OperatorID         string
	OperatorSecretHash string
}

type HttpServerParams struct {
	Address        string
	Port           string
	AllowedOrigins []string
}

type SignalingParams struct {
	RequireAdmission    bool
	AdmissionTTLSeconds int
	HistoryLimit        int
	SendBuffer          int
	MaxMessageSize      int64
}

type PersistenceParams struct {
	Workers             int
	QueueSize           int
	WriteTimeoutSeconds int
}

type MainDBParams struct {
	Enabled  bool
	Username string
	Password string
	Name     string
	Port     int
	Host     string
	Timeout  int
}

type S3Params struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	BucketName      string
}

type ConfigManager struct {
	v      *viper.Viper
	config *Config
}

// NewConfigManager creates new config manager that handles
// all viper config options and loads a config from yaml
func NewConfigManager(configPath string) (*ConfigManager, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.AutomaticEnv()
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cm := &ConfigManager{v: v}

	if err := cm.loadConfig(); err != nil {
		return nil, err
	}

	return cm, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general_params.env", "dev")
	v.SetDefault("general_params.operator_id", "operator")

	v.SetDefault("http_server_params.address", "0.0.0.0")
	v.SetDefault("http_server_params.port", "8080")

	v.SetDefault("signaling_params.require_admission", false)
	v.SetDefault("signaling_params.admission_ttl_seconds", 300)
	v.SetDefault("signaling_params.history_limit", 200)
	v.SetDefault("signaling_params.send_buffer", 256)
	v.SetDefault("signaling_params.max_message_size", 64*1024)

	v.SetDefault("persistence_params.workers", 4)
	v.SetDefault("persistence_params.queue_size", 256)
	v.SetDefault("persistence_params.write_timeout_seconds", 5)

	v.SetDefault("main_db_params.enabled", false)
	v.SetDefault("main_db_params.db_port", 5432)
	v.SetDefault("main_db_params.db_timeout", 5)

	v.SetDefault("s3_params.enabled", false)
	v.SetDefault("s3_params.bucket_name", "transcripts")
}

// Extracting data from yaml file and loading into Config
func (cm *ConfigManager) loadConfig() error {
	cm.config = &Config{
		GeneralParams: GeneralParams{
			Env:                cm.v.GetString("general_params.env"),
			LogLevel:           cm.v.GetString("general_params.log_level"),
			SecretKey:          cm.v.GetString("general_params.secret_key"),
			OperatorID:         cm.v.GetString("general_params.operator_id"),
			OperatorSecretHash: cm.v.GetString("general_params.operator_secret_hash"),
		},
		HttpServerParams: HttpServerParams{
			Address:        cm.v.GetString("http_server_params.address"),
			Port:           cm.v.GetString("http_server_params.port"),
			AllowedOrigins: cm.v.GetStringSlice("http_server_params.allowed_origins"),
		},
		SignalingParams: SignalingParams{
			RequireAdmission:    cm.v.GetBool("signaling_params.require_admission"),
			AdmissionTTLSeconds: cm.v.GetInt("signaling_params.admission_ttl_seconds"),
			HistoryLimit:        cm.v.GetInt("signaling_params.history_limit"),
			SendBuffer:          cm.v.GetInt("signaling_params.send_buffer"),
			MaxMessageSize:      cm.v.GetInt64("signaling_params.max_message_size"),
		},
		PersistenceParams: PersistenceParams{
			Workers:             cm.v.GetInt("persistence_params.workers"),
			QueueSize:           cm.v.GetInt("persistence_params.queue_size"),
			WriteTimeoutSeconds: cm.v.GetInt("persistence_params.write_timeout_seconds"),
		},
		MainDBParams: MainDBParams{
			Enabled:  cm.v.GetBool("main_db_params.enabled"),
			Username: cm.v.GetString("main_db_params.db_username"),
			Password: cm.v.GetString("main_db_params.db_password"),
			Name:     cm.v.GetString("main_db_params.db_name"),
			Port:     cm.v.GetInt("main_db_params.db_port"),
			Host:     cm.v.GetString("main_db_params.db_host"),
			Timeout:  cm.v.GetInt("main_db_params.db_timeout"),
		},
		S3Params: S3Params{
			Enabled:         cm.v.GetBool("s3_params.enabled"),
			Endpoint:        cm.v.GetString("s3_params.endpoint"),
			AccessKeyID:     cm.v.GetString("s3_params.access_key_id"),
			SecretAccessKey: cm.v.GetString("s3_params.secret_access_key"),
			UseSSL:          cm.v.GetBool("s3_params.use_ssl"),
			BucketName:      cm.v.GetString("s3_params.bucket_name"),
		},
	}
	return nil
}

// Geting config instance
func (cm *ConfigManager) GetConfig() *Config {
	return cm.config
}

// Compiling a string to connect to main_db
func (db *MainDBParams) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?connect_timeout=%d&sslmode=disable",
		db.Username,
		db.Password,
		db.Host,
		db.Port,
		db.Name,
		db.Timeout,
	)
}

func (h *HttpServerParams) GetAddress() string {
	return fmt.Sprintf(
		"%s:%s",
		h.Address,
		h.Port,
	)
}

func (s *SignalingParams) AdmissionTTL() time.Duration {
	return time.Duration(s.AdmissionTTLSeconds) * time.Second
}

func (p *PersistenceParams) WriteTimeout() time.Duration {
	return time.Duration(p.WriteTimeoutSeconds) * time.Second
}

func (c *Config) Validate() error {
	// Checking secret key
	if c.GeneralParams.SecretKey == "" {
		return fmt.Errorf("parameter secret_key is required")
	}

	// Checking out enviroment variable
	switch c.GeneralParams.Env {
	case "dev", "prod", "test":
	default:
		return fmt.Errorf("env parameter is invalid: %s. try dev/prod/test instead", c.GeneralParams.Env)
	}

	// Checking http server parameters
	if c.HttpServerParams.Address == "" {
		return fmt.Errorf("http server address is required")
	}
	if c.HttpServerParams.Port == "" {
		return fmt.Errorf("http server port is required")
	}

	// Checking signaling limits
	for name, value := range map[string]int64{
		"admission_ttl_seconds":              int64(c.SignalingParams.AdmissionTTLSeconds),
		"history_limit":                      int64(c.SignalingParams.HistoryLimit),
		"send_buffer":                        int64(c.SignalingParams.SendBuffer),
		"max_message_size":                   c.SignalingParams.MaxMessageSize,
		"persistence_params.workers":         int64(c.PersistenceParams.Workers),
		"persistence_params.queue_size":      int64(c.PersistenceParams.QueueSize),
		"persistence_params.write_timeout_s": int64(c.PersistenceParams.WriteTimeoutSeconds),
	} {
		if value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, value)
		}
	}

	// Checking MainDbparams
	if c.MainDBParams.Enabled {
		db := c.MainDBParams
		if db.Host == "" {
			return fmt.Errorf("MainDB: host is required")
		}
		if db.Username == "" {
			return fmt.Errorf("MainDB: username is required")
		}
		if db.Password == "" {
			return fmt.Errorf("MainDB: password is requred")
		}
		if db.Name == "" {
			return fmt.Errorf("MainDB: database name is required")
		}
		if db.Port <= 0 || db.Port > 65535 {
			return fmt.Errorf("MainDB: port is invalid")
		}
	}

	// Checking S3 params
	if c.S3Params.Enabled {
		if c.S3Params.Endpoint == "" {
			return fmt.Errorf("S3 endpoint is required")
		}
		if c.S3Params.AccessKeyID == "" {
			return fmt.Errorf("S3 access_key id is required")
		}
		if c.S3Params.SecretAccessKey == "" {
			return fmt.Errorf("S3 secret_access_key is required")
		}
		if c.S3Params.BucketName == "" {
			return fmt.Errorf("S3 bucket name is required")
		}
	}

	return nil
}
