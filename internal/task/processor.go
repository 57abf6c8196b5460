package task

import (
	"bytes"
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"ZKAttest-Chain/internal/attestation"
	xerrors "ZKAttest-Chain/internal/errors"
	"ZKAttest-Chain/internal/fixture"
	"ZKAttest-Chain/internal/observability/alerting"
	"ZKAttest-Chain/internal/observability/metrics"
	"ZKAttest-Chain/internal/prover"
	"ZKAttest-Chain/pkg/logger"
)

// FixtureWriter 保存证明样例。
type FixtureWriter interface {
	Write(f fixture.Fixture) (string, error)
}

// ChainVerifier 在链上验证合约中复核证明。
type ChainVerifier interface {
	VerifyProof(ctx context.Context, vkey common.Hash, publicValues, proof []byte) (bool, error)
}

// Processor 从队列消费证明任务并交给证明协作方执行。
type Processor struct {
	prover      prover.Prover
	keys        *keyCache
	store       Store
	consumer    Consumer
	producer    Producer
	workerCount int
	keyCapacity int
	timeout     time.Duration
	logger      *slog.Logger
	alerter     alerting.Dispatcher
	fixtures    FixtureWriter
	verifier    ChainVerifier
}

// ProcessorOption 定义可选配置。
type ProcessorOption func(*Processor)

// WithProcessorLogger 指定日志输出。
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithKeyCacheSize 设置缓存 Setup 结果的程序数量上限。
func WithKeyCacheSize(size int) ProcessorOption {
	return func(p *Processor) {
		p.keyCapacity = size
	}
}

// WithWorkerCount 设置消费协程数量。
func WithWorkerCount(workers int) ProcessorOption {
	return func(p *Processor) {
		if workers > 0 {
			p.workerCount = workers
		}
	}
}

// WithProvingTimeout 限制单个任务 setup、prove 与 verify 的总耗时。
func WithProvingTimeout(timeout time.Duration) ProcessorOption {
	return func(p *Processor) {
		p.timeout = timeout
	}
}

// WithAlertDispatcher 配置告警派发器。
func WithAlertDispatcher(dispatcher alerting.Dispatcher) ProcessorOption {
	return func(p *Processor) {
		p.alerter = dispatcher
	}
}

// WithFixtureWriter 在证明成功后导出样例。
func WithFixtureWriter(writer FixtureWriter) ProcessorOption {
	return func(p *Processor) {
		p.fixtures = writer
	}
}

// WithChainVerifier 在本地验证通过后追加链上验证。
func WithChainVerifier(verifier ChainVerifier) ProcessorOption {
	return func(p *Processor) {
		p.verifier = verifier
	}
}

// NewProcessor 构造 Processor。
func NewProcessor(p prover.Prover, store Store, consumer Consumer, producer Producer, opts ...ProcessorOption) *Processor {
	proc := &Processor{
		prover:      p,
		store:       store,
		consumer:    consumer,
		producer:    producer,
		workerCount: 1,
		logger:      logger.Named("processor"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(proc)
		}
	}
	if proc.workerCount <= 0 {
		proc.workerCount = 1
	}
	if proc.logger == nil {
		proc.logger = logger.Named("processor")
	}
	if p != nil {
		proc.keys = newKeyCache(p, proc.keyCapacity)
	}
	return proc
}

// Start 启动任务处理循环。
func (p *Processor) Start(ctx context.Context) error {
	if p.consumer == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置任务消费者")
	}
	return p.consumer.Consume(ctx, p.workerCount, p.handle)
}

func (p *Processor) handle(ctx context.Context, jobID string) error {
	if p.store == nil || p.prover == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "处理器未初始化")
	}
	job, err := p.store.Claim(ctx, jobID)
	if err != nil {
		if stdErrors.Is(err, ErrJobNotFound) || stdErrors.Is(err, ErrJobCompleted) || stdErrors.Is(err, ErrJobExhausted) || stdErrors.Is(err, ErrJobConflict) {
			p.logger.Debug("跳过任务", slog.String("job_id", jobID), slog.String("reason", err.Error()))
			return nil
		}
		p.logger.Error("领取任务失败", slog.Any("error", err), slog.String("job_id", jobID))
		p.emitAlert(ctx, &Job{ID: jobID}, CodeJobProcessing, err, "claim")
		return err
	}

	done := metrics.TrackJob()
	defer done()

	started := time.Now()
	result, proveErr := p.prove(ctx, job)
	elapsed := time.Since(started)
	if proveErr != nil {
		metrics.ObserveProving(string(job.Kind), outcomeOf(proveErr, job), elapsed)
		return p.handleFailure(ctx, job, proveErr)
	}
	result.DurationMillis = elapsed.Milliseconds()
	metrics.ObserveProving(string(job.Kind), metrics.OutcomeProved, elapsed)

	if err := p.store.MarkSucceeded(ctx, job.ID, *result); err != nil {
		p.logger.Error("标记任务成功状态失败", slog.Any("error", err), slog.String("job_id", job.ID))
		return p.handleFailure(ctx, job, err)
	}
	logger.Audit().Info("证明任务成功",
		slog.String("job_id", job.ID),
		slog.String("kind", string(job.Kind)),
		slog.String("program", job.Program),
		slog.String("vkey", result.VKeyHash),
		slog.Int64("duration_ms", result.DurationMillis),
	)
	return nil
}

// prove 执行 setup、prove、公开值比对、本地验证、解码与可选的链上验证。
func (p *Processor) prove(ctx context.Context, job *Job) (*ProofResult, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	codec := attestation.Codec{Scheme: job.Encoding}
	if _, err := codec.Decode(job.Kind, job.PublicValues); err != nil {
		return nil, err
	}

	keys, err := p.keys.get(ctx, prover.Program{ID: job.Program, Kind: job.Kind})
	if err != nil {
		return nil, asGenerationFailure(err, "证明程序 setup 失败")
	}

	proof, err := p.prover.Prove(ctx, keys.Proving, job.PublicValues)
	if err != nil {
		return nil, asGenerationFailure(err, "生成证明失败")
	}
	if !bytes.Equal(proof.PublicValues, job.PublicValues) {
		return nil, xerrors.New(prover.CodePublicValuesMismatch, "",
			xerrors.WithMetadata("expected", common.Bytes2Hex(job.PublicValues)),
			xerrors.WithMetadata("actual", common.Bytes2Hex(proof.PublicValues)))
	}

	ok, err := p.prover.Verify(ctx, proof, keys.Verifying)
	if err != nil {
		return nil, asGenerationFailure(err, "验证证明失败")
	}
	if !ok {
		return nil, xerrors.New(prover.CodeVerificationFailed, "本地验证未通过")
	}

	record, err := codec.Decode(job.Kind, proof.PublicValues)
	if err != nil {
		return nil, err
	}

	result := &ProofResult{
		System:       proof.System,
		VKeyHash:     keys.Verifying.Hash.Hex(),
		Proof:        proof.Bytes,
		PublicValues: proof.PublicValues,
		Record:       attestation.RecordFields(record),
		Verified:     true,
	}

	if p.verifier != nil {
		onChain, err := p.verifier.VerifyProof(ctx, keys.Verifying.Hash, proof.PublicValues, proof.Bytes)
		if err != nil {
			return nil, err
		}
		if !onChain {
			return nil, xerrors.New(prover.CodeVerificationFailed, "链上验证未通过")
		}
		result.OnChainVerified = &onChain
	}

	if p.fixtures != nil {
		path, err := p.fixtures.Write(fixture.Fixture{
			Kind:         string(job.Kind),
			Program:      job.Program,
			Record:       result.Record,
			VKey:         keys.Verifying.Hash,
			PublicValues: proof.PublicValues,
			Proof:        proof.Bytes,
			System:       proof.System,
		})
		if err != nil {
			// 样例只用于合约测试，写入失败不影响证明结果。
			p.logger.Warn("写入证明样例失败", slog.Any("error", err), slog.String("job_id", job.ID))
		} else {
			result.FixturePath = path
		}
	}
	return result, nil
}

func (p *Processor) handleFailure(ctx context.Context, job *Job, cause error) error {
	code := xerrors.CodeOf(cause)
	if code == xerrors.CodeUnknown {
		code = CodeJobProcessing
	}
	retryable := xerrors.RetryableError(cause) || (code == CodeJobProcessing && !isCoded(cause))
	terminal := job.Attempts >= job.MaxRetries || !retryable

	if storeErr := p.store.MarkFailed(ctx, job.ID, code, cause.Error(), terminal); storeErr != nil {
		p.logger.Error("标记任务失败状态出错", slog.Any("error", storeErr), slog.String("job_id", job.ID))
		return storeErr
	}
	logger.Audit().Warn("证明任务失败",
		slog.String("job_id", job.ID),
		slog.String("kind", string(job.Kind)),
		slog.Bool("terminal", terminal),
		slog.String("error", cause.Error()),
		slog.String("error_code", string(code)),
		slog.Int("attempts", job.Attempts),
		slog.Int("max_retries", job.MaxRetries),
	)

	stage := "retry"
	if terminal {
		stage = "terminal"
	}
	if terminal || xerrors.ShouldAlert(cause) {
		p.emitAlert(ctx, job, code, cause, stage)
	}

	if !terminal {
		if pubErr := p.producer.Publish(ctx, job.ID); pubErr != nil {
			return xerrors.Wrap(CodeJobPublish, pubErr, fmt.Sprintf("任务 %s 重投失败", job.ID))
		}
		p.logger.Debug("任务已重新排队", slog.String("job_id", job.ID), slog.Int("attempts", job.Attempts))
	}
	return nil
}

func (p *Processor) emitAlert(ctx context.Context, job *Job, code xerrors.Code, cause error, stage string) {
	if p == nil || p.alerter == nil || job == nil {
		return
	}
	attrs := xerrors.AttributesOf(code)
	metadata := map[string]string{"stage": stage}
	if coded, ok := xerrors.From(cause); ok {
		for key, value := range coded.Metadata() {
			metadata[key] = value
		}
	}
	event := alerting.Event{
		Code:       code,
		Message:    cause.Error(),
		Severity:   attrs.Severity,
		JobID:      job.ID,
		Kind:       string(job.Kind),
		Attempts:   job.Attempts,
		MaxRetries: job.MaxRetries,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}
	if err := p.alerter.Notify(ctx, event); err != nil {
		p.logger.Error("告警通知失败",
			slog.Any("error", err),
			slog.String("job_id", job.ID),
			slog.String("stage", stage),
		)
	}
}

func asGenerationFailure(err error, message string) error {
	if isCoded(err) {
		return err
	}
	return xerrors.Wrap(prover.CodeGenerationFailed, err, message)
}

func isCoded(err error) bool {
	_, ok := xerrors.From(err)
	return ok
}

func outcomeOf(err error, job *Job) string {
	if xerrors.RetryableError(err) && job.Attempts < job.MaxRetries {
		return metrics.OutcomeRetry
	}
	return metrics.OutcomeFailed
}
