package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"ZKAttest-Chain/internal/attestation"
	"ZKAttest-Chain/internal/auth"
	"ZKAttest-Chain/internal/feeds"
	"ZKAttest-Chain/internal/observability/metrics"
	"ZKAttest-Chain/internal/task"
	"ZKAttest-Chain/pkg/logger"
)

// ProgramResolver 将证明类型映射到证明程序标识。
type ProgramResolver interface {
	Program(kind attestation.Kind) string
}

// Server 负责暴露 REST 接口。
type Server struct {
	addr            string
	engine          *attestation.Engine
	jobs            *task.Service
	prices          feeds.PriceFeed
	programs        ProgramResolver
	auth            *auth.Service
	metricsPath     string
	maxBodyBytes    int64
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// Option 定义可选配置。
type Option func(*Server)

// WithPriceFeed 为缺省价格的抵押请求补齐 BTC/USD。
func WithPriceFeed(feed feeds.PriceFeed) Option {
	return func(s *Server) {
		s.prices = feed
	}
}

// WithPrograms 指定证明程序映射。
func WithPrograms(programs ProgramResolver) Option {
	return func(s *Server) {
		s.programs = programs
	}
}

// WithAuth 为业务接口启用 API Key 认证。
func WithAuth(svc *auth.Service) Option {
	return func(s *Server) {
		s.auth = svc
	}
}

// WithMetricsPath 在同一端口暴露 Prometheus 指标，空字符串表示关闭。
func WithMetricsPath(path string) Option {
	return func(s *Server) {
		s.metricsPath = path
	}
}

// WithMaxBodyBytes 限制请求体大小。
func WithMaxBodyBytes(limit int64) Option {
	return func(s *Server) {
		if limit > 0 {
			s.maxBodyBytes = limit
		}
	}
}

// WithShutdownTimeout 设置优雅关闭的等待时间。
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		if timeout > 0 {
			s.shutdownTimeout = timeout
		}
	}
}

// NewServer 构造 API 服务实例。jobs 为空时仅支持 execute 模式。
func NewServer(addr string, engine *attestation.Engine, jobs *task.Service, opts ...Option) *Server {
	s := &Server{
		addr:            addr,
		engine:          engine,
		jobs:            jobs,
		maxBodyBytes:    1 << 20,
		shutdownTimeout: 5 * time.Second,
		logger:          logger.Named("api"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler 返回路由后的处理器。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	execute := s.auth.Middleware(writeErrorFor, auth.PermissionExecute)
	readJobs := s.auth.Middleware(writeErrorFor, auth.PermissionJobsRead)
	mux.Handle("POST /api/v1/attestations", s.instrument("attest", execute, s.handleAttest))
	mux.Handle("POST /api/v1/attestations/collateral-bundle", s.instrument("attest_bundle", execute, s.handleCollateralBundle))
	mux.Handle("GET /api/v1/jobs", s.instrument("jobs_list", readJobs, s.handleListJobs))
	mux.Handle("GET /api/v1/jobs/stats", s.instrument("jobs_stats", readJobs, s.handleJobStats))
	mux.Handle("GET /api/v1/jobs/{id}", s.instrument("job_detail", readJobs, s.handleJobDetail))
	mux.Handle("GET /healthz", s.instrument("healthz", nil, s.handleHealth))
	if s.metricsPath != "" {
		mux.Handle("GET "+s.metricsPath, metrics.Handler())
	}
	return mux
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info("API 服务已启动", slog.String("addr", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) instrument(name string, guard func(http.Handler) http.Handler, handler http.HandlerFunc) http.Handler {
	var next http.Handler = handler
	if guard != nil {
		next = guard(next)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.ObserveHTTPRequest(name, r.Method, rec.status, time.Since(started))
	})
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
