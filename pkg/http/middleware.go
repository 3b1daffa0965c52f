package xhttp

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/cashback-ledger/pkg/logger"
	"github.com/valyala/fasthttp"
)

const slowThreshold = 500 * time.Millisecond

const HeaderRequestID = "X-Request-ID"

var skipPaths = []string{"/health", "/metrics"}

type MiddlewareFunc func(next RequestHandler) RequestHandler
type RequestCtx = fasthttp.RequestCtx
type RequestHandler = fasthttp.RequestHandler

func TimeoutMiddleware(timeout time.Duration) MiddlewareFunc {
	return func(next RequestHandler) RequestHandler {
		return fasthttp.TimeoutWithCodeHandler(next, timeout, StatusText(StatusRequestTimeout), StatusRequestTimeout)
	}
}

func CompressMiddleware(level int) MiddlewareFunc {
	return func(next RequestHandler) RequestHandler {
		return fasthttp.CompressHandlerBrotliLevel(next, level, level)
	}
}

func RecoverMiddleware(next RequestHandler) RequestHandler {
	return func(ctx *RequestCtx) {
		defer func() {
			if err := recover(); err != nil {
				ctx.Error(StatusText(StatusInternalServerError), StatusInternalServerError)
				logger.Error("[xhttp] panic recovered", "error", err, "path", string(ctx.Path()))
			}
		}()
		next(ctx)
	}
}

// RequestIDMiddleware makes sure every request and response carries a request id.
func RequestIDMiddleware(next RequestHandler) RequestHandler {
	return func(ctx *RequestCtx) {
		rid := requestID(ctx)
		if rid == "" {
			rid = uuid.NewString()
			ctx.Request.Header.Set(HeaderRequestID, rid)
		}
		ctx.SetUserValue(HeaderRequestID, rid)
		ctx.Response.Header.Set(HeaderRequestID, rid)
		next(ctx)
	}
}

func RequestLoggerMiddleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		path := string(ctx.Path())
		if shouldSkip(path) {
			next(ctx)
			return
		}

		start := time.Now()
		next(ctx)

		latency := time.Since(start)
		status := ctx.Response.StatusCode()
		fields := []any{
			"status", status,
			"method", string(ctx.Method()),
			"path", path,
			"latency", latency.String(),
			"bytes_in", len(ctx.PostBody()),
			"bytes_out", len(ctx.Response.Body()),
			"ip", ctx.RemoteIP().String(),
			"tenant_id", string(ctx.Request.Header.Peek("X-Tenant-ID")),
			"store_id", string(ctx.Request.Header.Peek("X-Store-ID")),
			"request_id", requestID(ctx),
		}

		lg := logger.GetLogger()

		switch {
		case status >= 500:
			lg.Error("http_request", fields...)
		case status >= 400 || latency > slowThreshold:
			lg.Warn("http_request", fields...)
		default:
			lg.Info("http_request", fields...)
		}
	}
}

func shouldSkip(p string) bool {
	for _, sp := range skipPaths {
		if strings.HasPrefix(p, sp) {
			return true
		}
	}
	return false
}

func requestID(ctx *fasthttp.RequestCtx) string {
	if v := ctx.Request.Header.Peek(HeaderRequestID); len(v) > 0 {
		return string(v)
	}
	return ""
}
