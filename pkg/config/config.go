package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	SQLite  SQLiteConfig
	Redis   RedisConfig
	Milvus  MilvusConfig
	Remote  RemoteConfig
	Upload  UploadConfig
	Chat    ChatConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type MilvusConfig struct {
	Enabled        bool
	Endpoint       string
	CollectionName string
	VectorDim      int
}

type RemoteConfig struct {
	PageSize       int
	MaxRetries     int
	TimeoutSec     int
	ModelListTTL   int
	ParseStatusTTL int
}

type UploadConfig struct {
	Dir         string
	MaxFileSize int64
}

type ChatConfig struct {
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/kbmirror")

	viper.SetEnvPrefix("KBMIRROR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 52428800)

	viper.SetDefault("sqlite.path", "./data/kbmirror.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("milvus.enabled", false)
	viper.SetDefault("milvus.endpoint", "localhost:19530")
	viper.SetDefault("milvus.collectionName", "kb_chunks")
	viper.SetDefault("milvus.vectorDim", 1024)

	viper.SetDefault("remote.pageSize", 30)
	viper.SetDefault("remote.maxRetries", 3)
	viper.SetDefault("remote.timeoutSec", 60)
	viper.SetDefault("remote.modelListTTL", 300)
	viper.SetDefault("remote.parseStatusTTL", 5)

	viper.SetDefault("upload.dir", "./data/uploads")
	viper.SetDefault("upload.maxFileSize", 134217728)

	viper.SetDefault("chat.temperature", 0.7)
	viper.SetDefault("chat.maxTokens", 2048)
	viper.SetDefault("chat.timeoutSec", 120)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
