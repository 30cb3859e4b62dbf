package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/tube-comb/app/fetch"
	"github.com/lysyi3m/tube-comb/app/proxy"
	"github.com/lysyi3m/tube-comb/app/stream"
)

// statusFor maps a service error to an HTTP status and a short reason code
func statusFor(err error) (int, string) {
	var upstreamStream *stream.UpstreamHTTPError
	var upstreamProxy *proxy.UpstreamError

	switch {
	case errors.Is(err, fetch.ErrNoProvidersConfigured):
		return http.StatusServiceUnavailable, "no_providers"
	case errors.Is(err, fetch.ErrAllProvidersTimedOut):
		return http.StatusGatewayTimeout, "timed_out"
	case errors.Is(err, fetch.ErrAllProvidersFailed):
		return http.StatusBadGateway, "all_failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "canceled"
	case errors.Is(err, stream.ErrFormatNotFound):
		return http.StatusNotFound, "format_not_found"
	case errors.Is(err, stream.ErrNoFormatsAvailable):
		return http.StatusNotFound, "no_formats"
	case errors.Is(err, stream.ErrNotConfigured), errors.Is(err, proxy.ErrBBSNotConfigured):
		return http.StatusServiceUnavailable, "not_configured"
	case errors.Is(err, proxy.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, proxy.ErrNoImage):
		return http.StatusNotFound, "no_image"
	case errors.Is(err, proxy.ErrHostNotAllowed):
		return http.StatusBadRequest, "host_not_allowed"
	case errors.Is(err, proxy.ErrNotAnImage), errors.Is(err, proxy.ErrImageTooLarge):
		return http.StatusBadGateway, "bad_image"
	case errors.As(err, &upstreamStream), errors.As(err, &upstreamProxy):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func respondError(c *gin.Context, operation, target string, err error) {
	status, reason := statusFor(err)

	body := gin.H{
		"error":  reason,
		"detail": err.Error(),
	}

	var upstreamStream *stream.UpstreamHTTPError
	var upstreamProxy *proxy.UpstreamError
	switch {
	case errors.As(err, &upstreamStream):
		body["upstream_status"] = upstreamStream.StatusCode
	case errors.As(err, &upstreamProxy):
		body["upstream_status"] = upstreamProxy.StatusCode
	}

	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "operation", operation, "target", target, "status", status, "error", err)
	} else {
		slog.Debug("Request rejected", "operation", operation, "target", target, "status", status, "error", err)
	}

	c.JSON(status, body)
}

// respondDegraded answers list endpoints with an empty result instead of an
// error status. The reason is exposed in X-Degraded.
func respondDegraded(c *gin.Context, operation string, err error) {
	_, reason := statusFor(err)

	slog.Warn("Serving degraded list", "operation", operation, "reason", reason, "error", err)

	c.Header("X-Degraded", reason)
	c.JSON(http.StatusOK, gin.H{"results": []any{}})
}
