package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ZKAttest-Chain/internal/attestation"
	"ZKAttest-Chain/internal/auth"
	xerrors "ZKAttest-Chain/internal/errors"
	"ZKAttest-Chain/internal/observability/metrics"
	"ZKAttest-Chain/internal/task"
	"ZKAttest-Chain/pkg/logger"
)

// IdempotencyHeader 携带证明任务的幂等键。
const IdempotencyHeader = "Idempotency-Key"

// BundleResponse 是 collateral-bundle 接口的响应。
// 证明任务提交中途失败时，Attestations 只包含已入队的记录，Error 给出失败原因。
type BundleResponse struct {
	Attestations []AttestationView `json:"attestations"`
	Error        *ErrorBody        `json:"error,omitempty"`
}

// JobListResponse 是任务列表接口的响应。
type JobListResponse struct {
	Jobs []*task.Job `json:"jobs"`
}

// handleAttest 执行证明流水线，prove=true 时额外提交证明任务。
func (s *Server) handleAttest(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "证明引擎未初始化"))
		return
	}
	if proveRequested(r) {
		if err := s.auth.Authorize(r.Context(), auth.PermissionProve); err != nil {
			writeError(w, err)
			return
		}
	}
	var req attestation.Request
	if err := s.decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Collateral != nil {
		if err := s.fillPrice(r.Context(), req.Collateral); err != nil {
			writeError(w, err)
			return
		}
	}

	result, err := s.engine.Attest(req)
	if err != nil {
		s.reject(r.Context(), string(req.Kind), err)
		writeError(w, err)
		return
	}
	s.accept(r.Context(), result)

	view := newView(result, s.engine.Codec().Scheme)
	if proveRequested(r) {
		raw, err := marshalRequest(req)
		if err != nil {
			writeError(w, err)
			return
		}
		job, err := s.submit(r.Context(), result, idempotencyKey(r, ""), raw)
		if err != nil {
			writeError(w, err)
			return
		}
		view.Job = job
		writeJSON(w, http.StatusAccepted, view)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleCollateralBundle 以同一组抵押输入生成三条记录。
func (s *Server) handleCollateralBundle(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "证明引擎未初始化"))
		return
	}
	if proveRequested(r) {
		if err := s.auth.Authorize(r.Context(), auth.PermissionProve); err != nil {
			writeError(w, err)
			return
		}
	}
	var req attestation.CollateralRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.fillPrice(r.Context(), &req); err != nil {
		writeError(w, err)
		return
	}

	results, err := s.engine.AttestCollateralBundle(req)
	if err != nil {
		s.reject(r.Context(), string(attestation.KindCollateral), err)
		writeError(w, err)
		return
	}

	prove := proveRequested(r)
	var raw json.RawMessage
	if prove {
		if raw, err = marshalRequest(req); err != nil {
			writeError(w, err)
			return
		}
	}
	response := BundleResponse{Attestations: make([]AttestationView, 0, len(results))}
	for _, result := range results {
		s.accept(r.Context(), result)
		view := newView(result, s.engine.Codec().Scheme)
		if prove {
			job, err := s.submit(r.Context(), result, idempotencyKey(r, string(result.Kind)), raw)
			if err != nil {
				logger.L().Warn("抵押证明组提交中断",
					slog.String("failed_kind", string(result.Kind)),
					slog.Int("submitted", len(response.Attestations)),
					slog.Any("error", err),
				)
				status, body := errorBodyOf(err)
				response.Error = &body
				writeJSON(w, status, response)
				return
			}
			view.Job = job
		}
		response.Attestations = append(response.Attestations, view)
	}
	status := http.StatusOK
	if prove {
		status = http.StatusAccepted
	}
	writeJSON(w, status, response)
}

func (s *Server) handleJobDetail(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "任务服务未启用"))
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "缺少任务 ID"))
		return
	}
	job, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "任务服务未启用"))
		return
	}
	opts, err := listOptionsFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	jobs, err := s.jobs.List(r.Context(), opts...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, JobListResponse{Jobs: jobs})
}

func (s *Server) handleJobStats(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "任务服务未启用"))
		return
	}
	opts, err := listOptionsFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := s.jobs.Stats(r.Context(), opts...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"proving": s.jobs != nil,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体解析失败")
	}
	return nil
}

// fillPrice 在请求未携带价格时从价格源读取 BTC/USD。
func (s *Server) fillPrice(ctx context.Context, req *attestation.CollateralRequest) error {
	if req.PriceUnits != nil || s.prices == nil {
		return nil
	}
	units, err := s.prices.BTCUSD(ctx)
	if err != nil {
		s.logger.Warn("获取 BTC 价格失败", slog.Any("error", err))
		return err
	}
	req.PriceUnits = &units
	return nil
}

func marshalRequest(req any) (json.RawMessage, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUnknown, err, "序列化证明请求失败")
	}
	return raw, nil
}

func (s *Server) submit(ctx context.Context, result *attestation.Attestation, id string, raw json.RawMessage) (*task.Job, error) {
	if s.jobs == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "任务服务未启用，无法生成证明")
	}
	return s.jobs.Submit(ctx, task.SubmitRequest{
		ID:          id,
		Program:     s.programOf(result.Kind),
		Encoding:    s.engine.Codec().Scheme,
		Attestation: result,
		Request:     raw,
	})
}

func (s *Server) programOf(kind attestation.Kind) string {
	if s.programs != nil {
		if program := s.programs.Program(kind); program != "" {
			return program
		}
	}
	return string(kind) + "-v1"
}

func (s *Server) accept(ctx context.Context, result *attestation.Attestation) {
	metrics.ObserveAttestation(string(result.Kind), metrics.OutcomeAccepted)
	logger.Audit().Info("证明请求通过",
		slog.String("kind", string(result.Kind)),
		slog.String("principal", principalName(ctx)),
		slog.Int("public_values_len", len(result.Encoded)),
	)
}

func (s *Server) reject(ctx context.Context, kind string, err error) {
	if kind == "" {
		kind = "unknown"
	}
	metrics.ObserveAttestation(kind, metrics.OutcomeRejected)
	logger.Audit().Warn("证明请求被拒绝",
		slog.String("kind", kind),
		slog.String("principal", principalName(ctx)),
		slog.String("error_code", string(xerrors.CodeOf(err))),
		slog.String("field", attestation.FieldOf(err)),
		slog.String("error", err.Error()),
	)
}

func principalName(ctx context.Context) string {
	if principal := auth.PrincipalFromContext(ctx); principal != nil {
		return principal.Name
	}
	return "anonymous"
}

func proveRequested(r *http.Request) bool {
	prove, _ := strconv.ParseBool(r.URL.Query().Get("prove"))
	return prove
}

// idempotencyKey 为 bundle 中的每条记录派生独立的任务 ID。
func idempotencyKey(r *http.Request, suffix string) string {
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if key == "" || suffix == "" {
		return key
	}
	return key + ":" + suffix
}

func listOptionsFromQuery(r *http.Request) ([]task.ListOption, error) {
	query := r.URL.Query()
	opts := make([]task.ListOption, 0, 6)

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "limit 必须为正整数")
		}
		opts = append(opts, task.WithLimit(limit))
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "offset 必须为非负整数")
		}
		opts = append(opts, task.WithOffset(offset))
	}
	if statuses := splitValues(query["status"]); len(statuses) > 0 {
		converted := make([]task.Status, 0, len(statuses))
		for _, value := range statuses {
			status := task.Status(value)
			if !task.IsValidStatus(status) {
				return nil, xerrors.New(xerrors.CodeInvalidArgument, "未知的任务状态: "+value)
			}
			converted = append(converted, status)
		}
		opts = append(opts, task.WithStatuses(converted...))
	}
	if kinds := splitValues(query["kind"]); len(kinds) > 0 {
		converted := make([]attestation.Kind, 0, len(kinds))
		for _, value := range kinds {
			kind := attestation.Kind(value)
			if !kind.Valid() {
				return nil, xerrors.New(xerrors.CodeInvalidArgument, "未知的证明类型: "+value)
			}
			converted = append(converted, kind)
		}
		opts = append(opts, task.WithKinds(converted...))
	}
	if strings.EqualFold(query.Get("order"), "asc") {
		opts = append(opts, task.WithSortOrder(task.SortByUpdatedAsc))
	}
	if q := strings.TrimSpace(query.Get("q")); q != "" {
		opts = append(opts, task.WithQuery(q))
	}
	return opts, nil
}

func splitValues(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
