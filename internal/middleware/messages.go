package middleware

import (
	"context"
	"encoding/json"
	"net/http"
)

// Stable error codes carried by every error envelope.
const (
	CodeBadRequest          = "bad_request"
	CodeUnauthorized        = "unauthorized"
	CodeForbidden           = "forbidden"
	CodeNotFound            = "not_found"
	CodeConflict            = "conflict"
	CodeInvalidCredentials  = "invalid_credentials"
	CodeAccountDisabled     = "account_disabled"
	CodeAlreadyExists       = "already_exists"
	CodeInsufficientCredits = "insufficient_credits"
	CodeServiceNotFound     = "service_not_found"
	CodeServiceInactive     = "service_inactive"
	CodeJobNotFound         = "job_not_found"
	CodeJobInFlight         = "job_in_flight"
	CodeResultNotReady      = "result_not_ready"
	CodePaymentNotFound     = "payment_not_found"
	CodePaymentState        = "payment_state"
	CodePackageNotFound     = "package_not_found"
	CodePayloadTooLarge     = "payload_too_large"
	CodeUnavailable         = "unavailable"
	CodeInternal            = "internal"
)

var messages = map[string]map[string]string{
	LocaleEN: {
		CodeBadRequest:          "invalid request",
		CodeUnauthorized:        "authentication required",
		CodeForbidden:           "permission denied",
		CodeNotFound:            "resource not found",
		CodeConflict:            "request conflicts with current state",
		CodeInvalidCredentials:  "invalid username or password",
		CodeAccountDisabled:     "account is disabled",
		CodeAlreadyExists:       "username or email already registered",
		CodeInsufficientCredits: "insufficient credits",
		CodeServiceNotFound:     "service not found",
		CodeServiceInactive:     "service is not available",
		CodeJobNotFound:         "job not found",
		CodeJobInFlight:         "cannot delete a job that is still processing",
		CodeResultNotReady:      "job result is not ready yet",
		CodePaymentNotFound:     "payment not found",
		CodePaymentState:        "payment status does not allow this action",
		CodePackageNotFound:     "package not found",
		CodePayloadTooLarge:     "upload is too large",
		CodeUnavailable:         "dependency unavailable",
		CodeInternal:            "internal server error",
	},
	LocaleZH: {
		CodeBadRequest:          "请求参数无效",
		CodeUnauthorized:        "需要登录",
		CodeForbidden:           "没有权限",
		CodeNotFound:            "资源不存在",
		CodeConflict:            "请求与当前状态冲突",
		CodeInvalidCredentials:  "用户名或密码错误",
		CodeAccountDisabled:     "账户已被禁用",
		CodeAlreadyExists:       "用户名或邮箱已被注册",
		CodeInsufficientCredits: "积分不足",
		CodeServiceNotFound:     "服务不存在",
		CodeServiceInactive:     "服务暂不可用",
		CodeJobNotFound:         "任务不存在",
		CodeJobInFlight:         "无法删除正在处理的任务",
		CodeResultNotReady:      "任务结果尚未生成",
		CodePaymentNotFound:     "支付记录不存在",
		CodePaymentState:        "支付状态不正确",
		CodePackageNotFound:     "套餐不存在",
		CodePayloadTooLarge:     "文件过大",
		CodeUnavailable:         "依赖服务不可用",
		CodeInternal:            "服务器内部错误",
	},
}

// Message returns the localized text for code, falling back to English and
// then to the code itself.
func Message(locale, code string) string {
	if m, ok := messages[locale][code]; ok {
		return m
	}
	if m, ok := messages[LocaleEN][code]; ok {
		return m
	}
	return code
}

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteError writes the localized error envelope for code.
func WriteError(ctx context.Context, w http.ResponseWriter, status int, code, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorBody{
		Error:     code,
		Message:   Message(LocaleFromContext(ctx), code),
		Detail:    detail,
		RequestID: RequestIDFromContext(ctx),
	})
}
