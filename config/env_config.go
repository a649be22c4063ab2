package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ObjectStoreMinio = "minio"
	ObjectStoreS3    = "s3"

	JobStoreRedis    = "redis"
	JobStorePostgres = "postgres"

	EventBrokerRabbitMQ = "rabbitmq"
	EventBrokerKafka    = "kafka"
)

type EnvConfig struct {
	Server struct {
		Port string
	}
	API struct {
		Keys []string
	}
	CORS struct {
		AllowDomains string
	}
	Postgres struct {
		HOST     string
		Database string
		Username string
		Password string
		Port     string
	}
	Redis struct {
		Password  string
		Database  int
		RedisHost string
		RedisPort string
	}
	RabbitMQ struct {
		Host     string
		Port     string
		Username string
		Password string
	}
	Kafka struct {
		Brokers []string
	}
	Minio struct {
		Endpoint     string
		RootUser     string
		RootPassword string
		UseSSL       bool
	}
	S3 struct {
		Region    string
		Endpoint  string
		AccessKey string
		SecretKey string
	}
	Drivers struct {
		ObjectStore string // minio | s3
		JobStore    string // redis | postgres
		EventBroker string // rabbitmq | kafka
	}
	Pipeline struct {
		BatchSize              int
		HTTPTimeout            time.Duration
		CustomTransforms       bool
		CustomTransformTimeout time.Duration
	}
	Grafana struct {
		OTLPEndpoint string
		ServiceName  string
	}
	Environment struct {
		Mode string
	}
}

func LoadEnvConfig() *EnvConfig {
	var config EnvConfig

	config.Server.Port = getEnv("PORT", "8000")

	config.API.Keys = splitList(os.Getenv("API_KEYS"))

	config.CORS.AllowDomains = getEnv("ALLOWED_DOMAINS", "*")

	// Postgres
	config.Postgres.HOST = os.Getenv("PGPOOL_HOST")
	config.Postgres.Database = os.Getenv("PGPOOL_DB")
	config.Postgres.Username = os.Getenv("PGPOOL_USER")
	config.Postgres.Password = os.Getenv("PGPOOL_PASSWORD")
	config.Postgres.Port = getEnv("PGPOOL_PORT", "5432")

	// Redis
	config.Redis.Password = os.Getenv("REDIS_PASSWORD")
	config.Redis.Database, _ = strconv.Atoi(os.Getenv("REDIS_DB"))
	config.Redis.RedisHost = getEnv("REDIS_HOST", "localhost")
	config.Redis.RedisPort = getEnv("REDIS_PORT", "6379")

	// RabbitMQ
	config.RabbitMQ.Host = getEnv("RABBITMQ_HOST", "localhost")
	config.RabbitMQ.Port = getEnv("RABBITMQ_PORT", "5672")
	config.RabbitMQ.Username = getEnv("RABBITMQ_USER", "guest")
	config.RabbitMQ.Password = getEnv("RABBITMQ_PASSWORD", "guest")

	config.Kafka.Brokers = splitList(getEnv("KAFKA_BROKERS", "localhost:9092"))

	config.Minio.Endpoint = os.Getenv("MINIO_ENDPOINT")
	config.Minio.RootUser = os.Getenv("MINIO_ROOT_USER")
	config.Minio.RootPassword = os.Getenv("MINIO_ROOT_PASSWORD")
	config.Minio.UseSSL, _ = strconv.ParseBool(os.Getenv("MINIO_USE_SSL"))

	config.S3.Region = getEnv("S3_REGION", "us-east-1")
	config.S3.Endpoint = os.Getenv("S3_ENDPOINT")
	config.S3.AccessKey = os.Getenv("S3_ACCESS_KEY")
	config.S3.SecretKey = os.Getenv("S3_SECRET_KEY")

	config.Drivers.ObjectStore = strings.ToLower(getEnv("OBJECT_STORE_DRIVER", ObjectStoreMinio))
	config.Drivers.JobStore = strings.ToLower(getEnv("JOB_STORE_DRIVER", JobStoreRedis))
	config.Drivers.EventBroker = strings.ToLower(getEnv("EVENT_BROKER", EventBrokerRabbitMQ))

	// Pipeline tuning
	config.Pipeline.BatchSize = 1000
	if val := os.Getenv("PIPELINE_BATCH_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			config.Pipeline.BatchSize = size
		}
	}
	config.Pipeline.HTTPTimeout = getDuration("PIPELINE_HTTP_TIMEOUT", 60*time.Second)
	config.Pipeline.CustomTransforms, _ = strconv.ParseBool(os.Getenv("PIPELINE_CUSTOM_TRANSFORMS"))
	config.Pipeline.CustomTransformTimeout = getDuration("PIPELINE_CUSTOM_TIMEOUT", 10*time.Second)

	// Grafana/OpenTelemetry
	grafanaEndpoint := os.Getenv("GRAFANA_OTLP_ENDPOINT")
	// Remove protocol for OpenTelemetry client to avoid duplicate protocols
	grafanaEndpoint = strings.TrimPrefix(grafanaEndpoint, "https://")
	grafanaEndpoint = strings.TrimPrefix(grafanaEndpoint, "http://")
	config.Grafana.OTLPEndpoint = grafanaEndpoint
	config.Grafana.ServiceName = getEnv("SERVICE_NAME", "gau-ingest-pipeline")

	config.Environment.Mode = getEnv("DEPLOY_ENV", "development")

	return &config
}

func (c *EnvConfig) IsDevelopment() bool {
	return c.Environment.Mode == "development"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	// Plain integers are seconds
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
