package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"ZKAttest-Chain/internal/api"
	"ZKAttest-Chain/internal/attestation"
	"ZKAttest-Chain/internal/auth"
	"ZKAttest-Chain/internal/config"
	"ZKAttest-Chain/internal/feeds"
	"ZKAttest-Chain/internal/task"
	"ZKAttest-Chain/pkg/logger"
)

// main 是 attestd 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "attestd 运行失败: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if err := config.LoadEnvFile(".env"); err != nil {
		return err
	}
	cfg, err := config.Load(config.ResolvePath())
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Named("attestd")

	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return err
	}

	kinds, err := config.LoadKindDefinitions(cfg.Attestation.KindsFile)
	if err != nil {
		return err
	}
	for _, kind := range kinds.MissingRecipients() {
		log.Warn("交易类证明未配置期望收款地址，相关请求将被拒绝", slog.String("kind", string(kind)))
	}

	codec, err := attestation.NewCodec(cfg.Attestation.Encoding)
	if err != nil {
		return err
	}
	engine := attestation.NewEngine(attestation.NewValidator(kinds.Policies()), codec)

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	queue, err := openQueue(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return err
	}
	jobs := task.NewService(store, queue, cfg.Prover.MaxRetries)
	defer func() {
		if err := jobs.Close(); err != nil {
			log.Warn("关闭任务服务失败", slog.Any("error", err))
		}
	}()

	authService, err := auth.NewService(cfg.Auth)
	if err != nil {
		return err
	}

	prover, err := openProver(cfg)
	if err != nil {
		return err
	}

	procOpts, cleanup, err := processorOptions(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	processor := task.NewProcessor(prover, store, queue, queue, procOpts...)

	prices, closePrices, err := feeds.FromConfig(cfg.PriceFeed)
	if err != nil {
		return err
	}
	defer closePrices()

	processorCtx, processorCancel := context.WithCancel(ctx)
	defer processorCancel()
	go func() {
		if err := processor.Start(processorCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("任务处理器异常退出", slog.Any("error", err))
		}
	}()

	serverOpts := []api.Option{
		api.WithPrograms(kinds),
		api.WithAuth(authService),
		api.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		api.WithShutdownTimeout(cfg.Server.ShutdownTimeout()),
	}
	if prices != nil {
		serverOpts = append(serverOpts, api.WithPriceFeed(prices))
	}
	if cfg.Metrics.Enabled {
		serverOpts = append(serverOpts, api.WithMetricsPath(cfg.Metrics.Path))
	}
	server := api.NewServer(cfg.Server.Address, engine, jobs, serverOpts...)

	log.Info("attestd 启动",
		slog.String("encoding", string(codec.Scheme)),
		slog.String("store", cfg.Storage.JobStore.Driver),
		slog.String("queue", cfg.Queue.Driver),
		slog.String("prover", cfg.Prover.Driver),
		slog.String("price_feed", cfg.PriceFeed.Provider),
		slog.Bool("onchain_verifier", cfg.Verifier.Enabled),
		slog.Bool("auth", authService.Enabled()),
	)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
