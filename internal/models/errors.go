package models

import (
	"errors"
	"net/http"
	"strings"
)

// 服务端约定的业务错误码
const (
	CodeMissingCredentials = 4101 // 未配置交易所API凭据
)

// IsServerRejection reports whether err is a structured rejection from the
// server (HTTP 4xx/5xx with a message body). Such errors are not retried.
func IsServerRejection(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// IsAuthExpired reports whether err indicates the session is no longer valid.
func IsAuthExpired(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized
	}
	return false
}

// IsMissingCredentials reports whether err is the server telling us the user
// has not configured exchange API credentials yet. The dedicated code is
// authoritative; the message check covers older server builds.
func IsMissingCredentials(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == CodeMissingCredentials {
		return true
	}
	return strings.Contains(strings.ToLower(apiErr.Msg), "exchange credentials")
}

// IsNetworkError reports whether err is a transport-level failure rather than
// a structured server response. Network errors are retried by the cache.
func IsNetworkError(err error) bool {
	return err != nil && !IsServerRejection(err)
}
