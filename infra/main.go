package infra

import (
	"context"
	"errors"

	"github.com/tnqbao/gau-ingest-pipeline/config"
	"github.com/tnqbao/gau-ingest-pipeline/infra/produce"
)

type ObjectStore interface {
	PutObject(ctx context.Context, container, path string, data []byte, contentType string) error
	Ping(ctx context.Context) error
}

type EventPublisher interface {
	PublishBatch(ctx context.Context, stream string, events [][]byte) error
}

// Infra holds every external client. Only the drivers selected in config are
// initialized, the rest stay nil.
type Infra struct {
	Redis     *RedisClient
	Postgres  *PostgresClient
	Logger    *LoggerClient
	Telemetry *Telemetry
	RabbitMQ  *RabbitMQClient
	Kafka     *KafkaClient
	Produce   *produce.Produce
	Minio     *MinioClient
	S3        *S3Client

	objectStore    ObjectStore
	eventPublisher EventPublisher
}

func InitInfra(cfg *config.Config) *Infra {
	env := cfg.EnvConfig
	in := &Infra{}

	in.Logger = InitLoggerClient(env)
	if in.Logger == nil {
		panic("Failed to initialize Logger service")
	}

	in.Telemetry = InitTelemetry(env)

	switch env.Drivers.JobStore {
	case config.JobStorePostgres:
		in.Postgres = InitPostgresClient(env)
		if in.Postgres == nil {
			panic("Failed to initialize Postgres service")
		}
	default:
		in.Redis = InitRedisClient(env)
		if in.Redis == nil {
			panic("Failed to initialize Redis service")
		}
	}

	switch env.Drivers.ObjectStore {
	case config.ObjectStoreS3:
		in.S3 = InitS3Client(env)
		in.objectStore = in.S3
	default:
		in.Minio = InitMinioClient(env)
		in.objectStore = in.Minio
	}

	switch env.Drivers.EventBroker {
	case config.EventBrokerKafka:
		in.Kafka = InitKafkaClient(env)
		in.eventPublisher = in.Kafka
	default:
		in.RabbitMQ = InitRabbitMQClient(env)
		if in.RabbitMQ == nil {
			panic("Failed to initialize RabbitMQ service")
		}
		in.Produce = produce.InitProduce(in.RabbitMQ.Channel)
		in.eventPublisher = in.Produce.EventService
	}

	return in
}

func (in *Infra) ObjectStore() ObjectStore {
	return in.objectStore
}

func (in *Infra) EventPublisher() EventPublisher {
	return in.eventPublisher
}

// Health probes each initialized dependency and reports "ok" or the error
func (in *Infra) Health(ctx context.Context) map[string]string {
	status := make(map[string]string)
	report := func(name string, err error) {
		if err != nil {
			status[name] = err.Error()
			return
		}
		status[name] = "ok"
	}

	if in.Redis != nil {
		report("redis", in.Redis.Ping(ctx))
	}
	if in.Postgres != nil {
		report("postgres", in.Postgres.Ping(ctx))
	}
	if in.objectStore != nil {
		report("object_store", in.objectStore.Ping(ctx))
	}
	if in.RabbitMQ != nil {
		report("rabbitmq", in.RabbitMQ.Ping())
	}
	if in.Kafka != nil {
		report("kafka", in.Kafka.Ping(ctx))
	}
	return status
}

func (in *Infra) Close(ctx context.Context) error {
	var errs []error
	if in.Kafka != nil {
		errs = append(errs, in.Kafka.Close())
	}
	if in.RabbitMQ != nil {
		errs = append(errs, in.RabbitMQ.Close())
	}
	if in.Redis != nil {
		errs = append(errs, in.Redis.Close())
	}
	if in.Postgres != nil {
		errs = append(errs, in.Postgres.Close())
	}
	if in.Telemetry != nil {
		errs = append(errs, in.Telemetry.Shutdown(ctx))
	}
	if in.Logger != nil {
		errs = append(errs, in.Logger.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
