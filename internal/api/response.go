package api

import (
	"encoding/json"
	stdErrors "errors"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"ZKAttest-Chain/internal/attestation"
	xerrors "ZKAttest-Chain/internal/errors"
	"ZKAttest-Chain/internal/task"
	"ZKAttest-Chain/pkg/logger"
)

// AttestationView 是一次证明流水线的输出。
type AttestationView struct {
	Kind         attestation.Kind   `json:"kind"`
	Encoding     attestation.Scheme `json:"encoding"`
	Record       map[string]any     `json:"record"`
	PublicValues hexutil.Bytes      `json:"public_values"`
	Job          *task.Job          `json:"job,omitempty"`
}

// ErrorBody 是错误响应的内容。
type ErrorBody struct {
	Code     xerrors.Code      `json:"code"`
	Message  string            `json:"message"`
	Field    string            `json:"field,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type errorResponse struct {
	Error ErrorBody `json:"error"`
}

func newView(a *attestation.Attestation, encoding attestation.Scheme) AttestationView {
	return AttestationView{
		Kind:         a.Kind,
		Encoding:     encoding,
		Record:       attestation.RecordFields(a.Record),
		PublicValues: a.Encoded,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L().Warn("写入响应失败", slog.Any("error", err))
	}
}

func writeErrorFor(w http.ResponseWriter, _ *http.Request, err error) {
	writeError(w, err)
}

func writeError(w http.ResponseWriter, err error) {
	status, body := errorBodyOf(err)
	writeJSON(w, status, errorResponse{Error: body})
}

func errorBodyOf(err error) (int, ErrorBody) {
	status := xerrors.HTTPStatusOf(err)
	body := ErrorBody{Code: xerrors.CodeOf(err), Message: err.Error()}
	if coded, ok := xerrors.From(err); ok {
		body.Message = coded.Message()
		body.Metadata = coded.Metadata()
		body.Field = attestation.FieldOf(err)
		delete(body.Metadata, "field")
		if len(body.Metadata) == 0 {
			body.Metadata = nil
		}
	}
	var tooLarge *http.MaxBytesError
	if stdErrors.As(err, &tooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	return status, body
}
