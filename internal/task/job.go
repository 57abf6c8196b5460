package task

import (
	"encoding/json"
	stdErrors "errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"ZKAttest-Chain/internal/attestation"
	xerrors "ZKAttest-Chain/internal/errors"
)

// Status 表示证明任务在生命周期中的状态。
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ProofResult 保存一次证明任务的产物。
type ProofResult struct {
	System          string         `json:"system"`
	VKeyHash        string         `json:"vkey_hash"`
	Proof           hexutil.Bytes  `json:"proof"`
	PublicValues    hexutil.Bytes  `json:"public_values"`
	Record          map[string]any `json:"record,omitempty"`
	Verified        bool           `json:"verified"`
	OnChainVerified *bool          `json:"onchain_verified,omitempty"`
	FixturePath     string         `json:"fixture_path,omitempty"`
	DurationMillis  int64          `json:"duration_ms"`
}

// Job 描述了排队等待证明的一条证明记录。
type Job struct {
	ID           string             `json:"id"`
	Kind         attestation.Kind   `json:"kind"`
	Program      string             `json:"program"`
	Encoding     attestation.Scheme `json:"encoding"`
	PublicValues hexutil.Bytes      `json:"public_values"`
	Request      json.RawMessage    `json:"request,omitempty"`
	Status       Status             `json:"status"`
	Attempts     int                `json:"attempts"`
	MaxRetries   int                `json:"max_retries"`
	LastError    string             `json:"last_error,omitempty"`
	ErrorCode    string             `json:"error_code,omitempty"`
	Result       *ProofResult       `json:"result,omitempty"`
	CreatedAt    int64              `json:"created_at"`
	UpdatedAt    int64              `json:"updated_at"`
}

var (
	// ErrJobNotFound 表示指定的任务不存在。
	ErrJobNotFound = xerrors.New(CodeJobNotFound, "job not found")
	// ErrJobConflict 表示任务在当前状态下无法进行所请求的操作。
	ErrJobConflict = xerrors.New(CodeJobConflict, "job conflict")
	// ErrJobCompleted 表示任务已经成功完成。
	ErrJobCompleted = xerrors.New(CodeJobCompleted, "job already completed")
	// ErrJobExhausted 表示任务已终止，不再重试。
	ErrJobExhausted = xerrors.New(CodeJobExhausted, "job retries exhausted")
)

const (
	CodeJobNotFound   xerrors.Code = "JOB_NOT_FOUND"
	CodeJobConflict   xerrors.Code = "JOB_CONFLICT"
	CodeJobCompleted  xerrors.Code = "JOB_COMPLETED"
	CodeJobExhausted  xerrors.Code = "JOB_RETRIES_EXHAUSTED"
	CodeJobValidation xerrors.Code = "JOB_VALIDATION_FAILED"
	CodeJobPublish    xerrors.Code = "JOB_PUBLISH_FAILED"
	CodeJobProcessing xerrors.Code = "JOB_PROCESSING_FAILED"
)

func init() {
	xerrors.Register(CodeJobNotFound, xerrors.Attributes{
		Message:    "job not found",
		Severity:   xerrors.SeverityInfo,
		HTTPStatus: http.StatusNotFound,
	})
	xerrors.Register(CodeJobConflict, xerrors.Attributes{
		Message:    "job conflict",
		Severity:   xerrors.SeverityWarning,
		HTTPStatus: http.StatusConflict,
	})
	xerrors.Register(CodeJobCompleted, xerrors.Attributes{
		Message:    "job already completed",
		Severity:   xerrors.SeverityInfo,
		HTTPStatus: http.StatusConflict,
	})
	xerrors.Register(CodeJobExhausted, xerrors.Attributes{
		Message:    "job retries exhausted",
		Severity:   xerrors.SeverityCritical,
		Alert:      true,
		HTTPStatus: http.StatusConflict,
	})
	xerrors.Register(CodeJobValidation, xerrors.Attributes{
		Message:    "job validation failed",
		Severity:   xerrors.SeverityInfo,
		HTTPStatus: http.StatusBadRequest,
	})
	xerrors.Register(CodeJobPublish, xerrors.Attributes{
		Message:    "failed to publish job",
		Severity:   xerrors.SeverityCritical,
		Retryable:  true,
		Alert:      true,
		HTTPStatus: http.StatusServiceUnavailable,
	})
	xerrors.Register(CodeJobProcessing, xerrors.Attributes{
		Message:    "job processing failed",
		Severity:   xerrors.SeverityWarning,
		Retryable:  true,
		Alert:      true,
		HTTPStatus: http.StatusInternalServerError,
	})
}

// IsJobError 判断错误是否为指定的任务错误。
func IsJobError(err error, target xerrors.Code) bool {
	if err == nil {
		return false
	}
	return stdErrors.Is(err, xerrors.New(target, ""))
}

// IsValidStatus 检查给定的任务状态是否为支持的枚举值。
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed:
		return true
	default:
		return false
	}
}

// Terminal 表示任务不会再被处理。
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

func cloneJob(job *Job) *Job {
	clone := *job
	clone.PublicValues = append(hexutil.Bytes(nil), job.PublicValues...)
	clone.Request = append(json.RawMessage(nil), job.Request...)
	if job.Result != nil {
		result := cloneResult(*job.Result)
		clone.Result = &result
	}
	return &clone
}

func cloneResult(result ProofResult) ProofResult {
	result.Proof = append(hexutil.Bytes(nil), result.Proof...)
	result.PublicValues = append(hexutil.Bytes(nil), result.PublicValues...)
	if result.Record != nil {
		record := make(map[string]any, len(result.Record))
		for key, value := range result.Record {
			record[key] = value
		}
		result.Record = record
	}
	if result.OnChainVerified != nil {
		verified := *result.OnChainVerified
		result.OnChainVerified = &verified
	}
	return result
}
