package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Freight  FreightConfig  `yaml:"freight"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                          string `yaml:"host"`
	Port                          int    `yaml:"port"`
	StatusChangedTopicName        string `yaml:"status_changed_topic_name"`
	SettlementUpdatedTopicName    string `yaml:"settlement_updated_topic_name"`
	ConfirmationReminderTopicName string `yaml:"confirmation_reminder_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type FreightConfig struct {
	HTTPAddr              string `yaml:"http_addr"`
	KafkaConsumerGroup    string `yaml:"kafka_consumer_group"`
	StatusTTLSeconds      int    `yaml:"status_ttl_seconds"`
	APIRateLimitPerMinute int    `yaml:"api_rate_limit_per_minute"`

	WorkerPollIntervalSeconds         int `yaml:"worker_poll_interval_seconds"`
	WorkerBatchSize                   int `yaml:"worker_batch_size"`
	WorkerConcurrency                 int `yaml:"worker_concurrency"`
	WorkerLeaseSeconds                int `yaml:"worker_lease_seconds"`
	WorkerRemindersPerProducerPerHour int `yaml:"worker_reminders_per_producer_per_hour"`

	WorkerHTTPAddr string `yaml:"worker_http_addr"`

	DirectoryBaseURL string `yaml:"directory_base_url"`
	DirectoryAPIKey  string `yaml:"directory_api_key"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
