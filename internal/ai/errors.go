package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Kind separates failures worth retrying from everything else.
type Kind int

const (
	KindOther Kind = iota
	KindRateLimited
)

func (k Kind) String() string {
	if k == KindRateLimited {
		return "rate_limited"
	}
	return "other"
}

// Reason refines an error for user-facing hints.
type Reason string

const (
	ReasonAuth          Reason = "auth"
	ReasonRateLimit     Reason = "rate_limit"
	ReasonQuota         Reason = "quota"
	ReasonModelNotFound Reason = "model_not_found"
	ReasonBadRequest    Reason = "bad_request"
	ReasonServer        Reason = "server"
	ReasonUnreachable   Reason = "unreachable"
	ReasonConfig        Reason = "config"
	ReasonUnknown       Reason = "unknown"
)

// ServiceError is returned by every Runtime when generation fails.
type ServiceError struct {
	Kind       Kind
	Reason     Reason
	Provider   string
	StatusCode int
	Code       string
	Message    string
	RequestID  string
	RetryAfter time.Duration
	Err        error
}

func (e *ServiceError) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		b.WriteString(e.Provider)
		b.WriteString(": ")
	}
	b.WriteString(strings.ReplaceAll(string(e.Reason), "_", " "))
	var meta []string
	if e.StatusCode != 0 {
		meta = append(meta, "status="+strconv.Itoa(e.StatusCode))
	}
	if e.Code != "" {
		meta = append(meta, "code="+e.Code)
	}
	if e.RequestID != "" {
		meta = append(meta, "request_id="+e.RequestID)
	}
	if e.RetryAfter > 0 {
		meta = append(meta, fmt.Sprintf("retry_after=%ds", int(e.RetryAfter.Seconds())))
	}
	if len(meta) > 0 {
		b.WriteString(" (" + strings.Join(meta, " ") + ")")
	}
	switch {
	case e.Message != "":
		b.WriteString(": " + e.Message)
	case e.Err != nil:
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *ServiceError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err is a rate-limit failure. Errors that did
// not come from a Runtime are judged by their text.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind == KindRateLimited
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate_limit") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "429")
}

// RetryAfter returns the wait the provider asked for, or 0.
func RetryAfter(err error) time.Duration {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.RetryAfter
	}
	return 0
}

// Hint returns a short suggestion for the user, or "" when none applies.
func Hint(err error) string {
	var se *ServiceError
	if !errors.As(err, &se) {
		return ""
	}
	switch se.Reason {
	case ReasonAuth, ReasonConfig:
		return "check the API key (CHATBOT_API_KEY or the provider key) or run: worklens config set api_key <key>"
	case ReasonRateLimit:
		return "the provider is rate limiting requests; wait a moment or lower the request rate"
	case ReasonQuota:
		return "the account quota or billing limit was reached"
	case ReasonModelNotFound:
		return "choose a different --model or check the provider's model list"
	case ReasonUnreachable:
		return "the endpoint could not be reached; check the host or network"
	case ReasonServer:
		return "the provider reported a server error; try again later"
	}
	return ""
}

// Classify maps an HTTP failure to a ServiceError.
func Classify(provider string, status int, code, message string, header http.Header) *ServiceError {
	se := &ServiceError{
		Kind:       KindOther,
		Reason:     ReasonUnknown,
		Provider:   provider,
		StatusCode: status,
		Code:       code,
		Message:    message,
		RequestID:  requestID(header),
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		se.Reason = ReasonAuth
	case status == http.StatusTooManyRequests || code == "rate_limit_exceeded":
		se.Kind = KindRateLimited
		se.Reason = ReasonRateLimit
		if header != nil {
			se.RetryAfter = parseRetryAfter(header.Get("Retry-After"))
		}
	case status == http.StatusNotFound:
		if code == "model_not_found" || containsAllFold(message, "model", "not", "found") || message == "" {
			se.Reason = ReasonModelNotFound
		}
	case code == "quota_exceeded" || code == "insufficient_quota" || containsAnyFold(message, "quota", "billing", "limit exceeded"):
		se.Reason = ReasonQuota
	case status == http.StatusBadRequest:
		se.Reason = ReasonBadRequest
	case status >= 500 && status <= 599:
		se.Reason = ReasonServer
	}
	return se
}

// Unreachable wraps a transport failure.
func Unreachable(provider, host string, err error) *ServiceError {
	msg := ""
	if host != "" {
		msg = "endpoint unreachable at " + host
	}
	return &ServiceError{Kind: KindOther, Reason: ReasonUnreachable, Provider: provider, Message: msg, Err: err}
}

func missingKey(provider, env string) *ServiceError {
	return &ServiceError{Kind: KindOther, Reason: ReasonConfig, Provider: provider, Message: env + " is missing"}
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if s, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && s > 0 {
		return time.Duration(s) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d.Truncate(time.Second)
		}
	}
	return 0
}

// requestID pulls a best-effort request ID from common headers.
func requestID(h http.Header) string {
	if h == nil {
		return ""
	}
	for _, k := range []string{"X-Request-Id", "OpenAI-Request-ID", "Openrouter-Request-ID", "Request-Id", "X-Amzn-Requestid"} {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return ""
}

func containsAllFold(s string, subs ...string) bool {
	for _, sub := range subs {
		if !containsFold(s, sub) {
			return false
		}
	}
	return true
}

func containsAnyFold(s string, subs ...string) bool {
	for _, sub := range subs {
		if containsFold(s, sub) {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	if s == "" || sub == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
