package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ZKAttest-Chain/internal/config"
	"ZKAttest-Chain/internal/fixture"
	"ZKAttest-Chain/internal/observability/alerting"
	"ZKAttest-Chain/internal/prover"
	"ZKAttest-Chain/internal/storage/mysql"
	"ZKAttest-Chain/internal/task"
	"ZKAttest-Chain/internal/web3/provider"
	"ZKAttest-Chain/pkg/logger"
)

func openStore(ctx context.Context, cfg *config.Config) (task.Store, error) {
	storeCfg := cfg.Storage.JobStore
	switch storeCfg.Driver {
	case "memory":
		return task.NewMemoryStore(), nil
	case "mysql":
		db, err := mysql.Open(ctx, mysql.Config{
			DSN:             storeCfg.DSN,
			MaxOpenConns:    storeCfg.MaxOpenConns,
			MaxIdleConns:    storeCfg.MaxIdleConns,
			ConnMaxLifetime: time.Duration(storeCfg.ConnMaxLifetimeSeconds) * time.Second,
			ConnMaxIdleTime: time.Duration(storeCfg.ConnMaxIdleTimeSeconds) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		if storeCfg.AutoMigrate {
			applied, err := mysql.Migrate(ctx, db)
			if err != nil {
				db.Close()
				return nil, err
			}
			if len(applied) > 0 {
				logger.Named("attestd").Info("已执行数据库迁移", slog.Any("versions", applied))
			}
		}
		return task.NewMySQLStore(db)
	default:
		return nil, fmt.Errorf("未知的任务存储驱动: %s", storeCfg.Driver)
	}
}

func openQueue(ctx context.Context, cfg *config.Config) (task.Queue, error) {
	queueCfg := cfg.Queue
	switch queueCfg.Driver {
	case "memory":
		return task.NewMemoryQueue(queueCfg.Buffer), nil
	case "redis":
		return task.NewRedisQueue(ctx, task.RedisQueueConfig{
			Address:  queueCfg.Redis.Addr,
			Password: queueCfg.Redis.Password,
			DB:       queueCfg.Redis.DB,
			Key:      queueCfg.Redis.Key,
		})
	case "rabbitmq":
		return task.NewRabbitMQQueue(task.RabbitMQConfig{
			URL:      queueCfg.RabbitMQ.URL,
			Queue:    queueCfg.RabbitMQ.Queue,
			Prefetch: queueCfg.RabbitMQ.Prefetch,
			Durable:  true,
		})
	default:
		return nil, fmt.Errorf("未知的队列驱动: %s", queueCfg.Driver)
	}
}

func openProver(cfg *config.Config) (prover.Prover, error) {
	switch cfg.Prover.Driver {
	case "mock":
		return prover.NewMockProver(cfg.Prover.System), nil
	case "network":
		return prover.NewNetworkProver(prover.NetworkConfig{
			Endpoint: cfg.Prover.Endpoint,
			APIKey:   cfg.Prover.APIKey,
			Timeout:  cfg.Prover.Timeout(),
		})
	default:
		return nil, fmt.Errorf("未知的证明器驱动: %s", cfg.Prover.Driver)
	}
}

func alertDispatcher(cfg *config.Config) alerting.Dispatcher {
	notifiers := []alerting.Notifier{alerting.LogNotifier{}}
	for _, hook := range cfg.Alerting.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		notifiers = append(notifiers, alerting.NewWebhookNotifier(hook.URL, alerting.Channel(strings.ToLower(hook.Format))))
	}
	return alerting.NewFanout(notifiers...)
}

// processorOptions 组装证明处理器的可选能力，返回的 cleanup 负责释放链上连接。
func processorOptions(ctx context.Context, cfg *config.Config) ([]task.ProcessorOption, func(), error) {
	opts := []task.ProcessorOption{
		task.WithWorkerCount(cfg.Prover.Workers),
		task.WithProvingTimeout(cfg.Prover.Timeout()),
		task.WithKeyCacheSize(cfg.Prover.KeyCacheSize),
		task.WithAlertDispatcher(alertDispatcher(cfg)),
	}
	cleanup := func() {}

	if cfg.Fixtures.Enabled {
		opts = append(opts, task.WithFixtureWriter(fixture.NewWriter(cfg.Fixtures.Dir)))
	}
	if cfg.Verifier.Enabled {
		registry, err := provider.NewRegistry(cfg.Verifier)
		if err != nil {
			return nil, cleanup, err
		}
		verifier, err := registry.Verifier(ctx, cfg.Verifier.Chain)
		if err != nil {
			registry.Close()
			return nil, cleanup, err
		}
		opts = append(opts, task.WithChainVerifier(verifier))
		cleanup = registry.Close
	}
	return opts, cleanup, nil
}
