package task

import (
	"context"

	xerrors "ZKAttest-Chain/internal/errors"
)

// Store 抽象了证明任务状态的持久化接口。
type Store interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	// Claim 把待处理任务置为运行中并累加尝试次数。
	Claim(ctx context.Context, id string) (*Job, error)
	MarkSucceeded(ctx context.Context, id string, result ProofResult) error
	// MarkFailed 记录失败；terminal 为 false 时任务回到 pending 等待重投。
	MarkFailed(ctx context.Context, id string, code xerrors.Code, lastError string, terminal bool) error
	List(ctx context.Context, opts ListOptions) ([]*Job, error)
	Stats(ctx context.Context, opts ListOptions) (JobStats, error)
	Close() error
}
