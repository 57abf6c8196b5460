package attestation

import (
	"fmt"
	"net/http"

	xerrors "ZKAttest-Chain/internal/errors"
)

const (
	CodeMalformedField     xerrors.Code = "ATTESTATION_MALFORMED_FIELD"
	CodeRecipientMismatch  xerrors.Code = "ATTESTATION_RECIPIENT_MISMATCH"
	CodeIdentityMismatch   xerrors.Code = "ATTESTATION_IDENTITY_MISMATCH"
	CodeTotalMismatch      xerrors.Code = "ATTESTATION_TOTAL_MISMATCH"
	CodeArithmeticOverflow xerrors.Code = "ATTESTATION_ARITHMETIC_OVERFLOW"
	CodeDecodeError        xerrors.Code = "ATTESTATION_DECODE_ERROR"
)

var (
	// ErrMalformedField 表示定长字段长度或格式不正确。
	ErrMalformedField = xerrors.New(CodeMalformedField, "malformed field")
	// ErrRecipientMismatch 表示收款地址与配置的期望地址不一致。
	ErrRecipientMismatch = xerrors.New(CodeRecipientMismatch, "recipient mismatch")
	// ErrIdentityMismatch 表示身份字段未通过信任边界校验。
	ErrIdentityMismatch = xerrors.New(CodeIdentityMismatch, "identity mismatch")
	// ErrTotalMismatch 表示声明总额与 UTXO 求和结果不一致。
	ErrTotalMismatch = xerrors.New(CodeTotalMismatch, "declared total mismatch")
	// ErrArithmeticOverflow 表示不允许饱和的累加发生了溢出。
	ErrArithmeticOverflow = xerrors.New(CodeArithmeticOverflow, "arithmetic overflow")
	// ErrDecode 表示字节串不符合规范布局。
	ErrDecode = xerrors.New(CodeDecodeError, "decode error")
)

func init() {
	for code, message := range map[xerrors.Code]string{
		CodeMalformedField:     "malformed field",
		CodeRecipientMismatch:  "recipient mismatch",
		CodeIdentityMismatch:   "identity mismatch",
		CodeTotalMismatch:      "declared total mismatch",
		CodeArithmeticOverflow: "arithmetic overflow",
		CodeDecodeError:        "invalid canonical encoding",
	} {
		xerrors.Register(code, xerrors.Attributes{
			Message:    message,
			Severity:   xerrors.SeverityInfo,
			Retryable:  false,
			Alert:      false,
			HTTPStatus: http.StatusUnprocessableEntity,
		})
	}
}

// malformed 构造指明首个违规字段的 MalformedField 错误。
func malformed(field, format string, args ...any) error {
	return xerrors.New(CodeMalformedField,
		fmt.Sprintf("%s: %s", field, fmt.Sprintf(format, args...)),
		xerrors.WithMetadata("field", field))
}

func decodeErr(kind Kind, format string, args ...any) error {
	return xerrors.New(CodeDecodeError,
		fmt.Sprintf("decode %s: %s", kind, fmt.Sprintf(format, args...)),
		xerrors.WithMetadata("kind", string(kind)))
}

// FieldOf 返回校验错误中记录的字段名，没有记录时返回空字符串。
func FieldOf(err error) string {
	if e, ok := xerrors.From(err); ok {
		return e.Metadata()["field"]
	}
	return ""
}

// IsValidationError 判断错误是否属于核心的输入或装配校验失败。
func IsValidationError(err error) bool {
	switch xerrors.CodeOf(err) {
	case CodeMalformedField, CodeRecipientMismatch, CodeIdentityMismatch,
		CodeTotalMismatch, CodeArithmeticOverflow, CodeDecodeError:
		return true
	default:
		return false
	}
}

func overflowAt(index int) error {
	field := fmt.Sprintf("utxos[%d].amount", index)
	return xerrors.New(CodeArithmeticOverflow, field+": sum overflows uint64",
		xerrors.WithMetadata("field", field))
}
