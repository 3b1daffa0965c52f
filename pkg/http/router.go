package xhttp

import (
	"github.com/fasthttp/router"
	"github.com/nimasrn/cashback-ledger/pkg/logger"
)

type Router = router.Router

func NewRouter() *Router {
	return router.New()
}

// CreateDefaultRouter answers unknown routes, wrong methods and handler panics
// with the same JSON error body the API handlers use.
func CreateDefaultRouter() *Router {
	r := NewRouter()
	r.RedirectFixedPath = true
	r.RedirectTrailingSlash = true
	r.SaveMatchedRoutePath = true
	r.NotFound = NotFoundHandler
	r.MethodNotAllowed = MethodNotAllowedHandler
	r.PanicHandler = panicHandler
	r.HandleOPTIONS = false
	r.HandleMethodNotAllowed = true
	return r
}

func NotFoundHandler(ctx *RequestCtx) {
	writeErrorBody(ctx, StatusNotFound, "not_found")
}

func MethodNotAllowedHandler(ctx *RequestCtx) {
	writeErrorBody(ctx, StatusMethodNotAllowed, "method_not_allowed")
}

func panicHandler(ctx *RequestCtx, v interface{}) {
	logger.Error("[xhttp] handler panic", "error", v, "path", string(ctx.Path()), "request_id", requestID(ctx))
	writeErrorBody(ctx, StatusInternalServerError, "internal_error")
}

func writeErrorBody(ctx *RequestCtx, status int, code string) {
	ctx.Response.Header.SetContentType("application/json; charset=utf-8")
	ctx.SetStatusCode(status)
	ctx.SetBodyString(`{"error":"` + StatusText(status) + `","code":"` + code + `","retryable":false}`)
}
