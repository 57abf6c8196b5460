package task

import (
	"bytes"
	"context"
	"encoding/json"
	stdErrors "errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"ZKAttest-Chain/internal/attestation"
	xerrors "ZKAttest-Chain/internal/errors"
	"ZKAttest-Chain/pkg/logger"
)

// SubmitRequest 描述一次证明任务提交。
type SubmitRequest struct {
	// ID 可选，用作幂等键。
	ID          string
	Program     string
	Encoding    attestation.Scheme
	Attestation *attestation.Attestation
	Request     json.RawMessage
}

// Service 负责证明任务的创建与查询。
type Service struct {
	store      Store
	producer   Producer
	maxRetries int
}

// NewService 构造任务服务。
func NewService(store Store, producer Producer, maxRetries int) *Service {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Service{store: store, producer: producer, maxRetries: maxRetries}
}

// Submit 创建一个新的证明任务并推送到队列。
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Job, error) {
	if req.Attestation == nil || len(req.Attestation.Encoded) == 0 {
		return nil, xerrors.New(CodeJobValidation, "缺少待证明的公开值")
	}
	if strings.TrimSpace(req.Program) == "" {
		return nil, xerrors.New(CodeJobValidation, "证明程序不能为空")
	}
	if s.store == nil || s.producer == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "任务服务未初始化")
	}
	encoding := req.Encoding
	if encoding == "" {
		encoding = attestation.SchemePacked
	}

	jobID := strings.TrimSpace(req.ID)
	reused := jobID != ""
	if !reused {
		jobID = uuid.NewString()
	}
	job := &Job{
		ID:           jobID,
		Kind:         req.Attestation.Kind,
		Program:      strings.TrimSpace(req.Program),
		Encoding:     encoding,
		PublicValues: req.Attestation.Encoded,
		Request:      req.Request,
		Status:       StatusPending,
		MaxRetries:   s.maxRetries,
	}
	if reused {
		existing, err := s.store.Get(ctx, jobID)
		if err == nil {
			return matchExisting(existing, job)
		}
		if !stdErrors.Is(err, ErrJobNotFound) {
			return nil, err
		}
	}

	if err := s.store.Create(ctx, job); err != nil {
		if stdErrors.Is(err, ErrJobConflict) {
			if existing, getErr := s.store.Get(ctx, jobID); getErr == nil {
				return matchExisting(existing, job)
			}
		}
		return nil, err
	}
	if err := s.producer.Publish(ctx, jobID); err != nil {
		logger.L().Error("任务入队失败", slog.Any("error", err), slog.String("job_id", jobID))
		wrapped := xerrors.Wrap(CodeJobPublish, err, "发布任务到队列失败")
		_ = s.store.MarkFailed(ctx, jobID, CodeJobPublish, wrapped.Error(), true)
		return nil, wrapped
	}
	logger.Audit().Info("证明任务入队",
		slog.String("job_id", jobID),
		slog.String("kind", string(job.Kind)),
		slog.String("program", job.Program),
		slog.Int("public_values_len", len(job.PublicValues)),
	)
	return job, nil
}

// matchExisting 在任务 ID 复用时校验请求内容一致，不一致返回冲突。
func matchExisting(existing, job *Job) (*Job, error) {
	if existing.Kind == job.Kind &&
		existing.Program == job.Program &&
		existing.Encoding == job.Encoding &&
		bytes.Equal(existing.PublicValues, job.PublicValues) {
		return existing, nil
	}
	return nil, xerrors.New(CodeJobConflict, "任务 ID 已被不同的证明请求占用",
		xerrors.WithMetadata("job_id", job.ID),
		xerrors.WithMetadata("existing_kind", string(existing.Kind)),
		xerrors.WithMetadata("requested_kind", string(job.Kind)),
	)
}

// Get 返回指定任务的状态。
func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "任务存储未初始化")
	}
	return s.store.Get(ctx, id)
}

// List 返回符合过滤条件的任务列表。
func (s *Service) List(ctx context.Context, opts ...ListOption) ([]*Job, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "任务存储未初始化")
	}
	return s.store.List(ctx, BuildListOptions(opts...))
}

// Stats 返回符合过滤条件的任务统计信息。
func (s *Service) Stats(ctx context.Context, opts ...ListOption) (JobStats, error) {
	if s.store == nil {
		return JobStats{}, xerrors.New(xerrors.CodeInitializationFailure, "任务存储未初始化")
	}
	return s.store.Stats(ctx, BuildListOptions(opts...))
}

// Close 释放资源。
func (s *Service) Close() error {
	var errs []error
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.producer != nil {
		errs = append(errs, s.producer.Close())
	}
	return stdErrors.Join(errs...)
}

// WaitUntilCompleted 轮询任务直到进入终态或 ctx 结束。
func (s *Service) WaitUntilCompleted(ctx context.Context, id string, interval time.Duration) (*Job, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.Status.Terminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
