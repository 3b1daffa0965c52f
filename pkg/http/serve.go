package xhttp

import (
	"crypto/tls"
	"net"
	"os"
	"os/signal"
	"reflect"
	"runtime"
	"slices"
	"strconv"
	"syscall"
	"time"

	"github.com/nimasrn/cashback-ledger/pkg/logger"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/prefork"
)

// env list (milliseconds / bytes):
// HTTP_SERVER_READ_TIMEOUT
// HTTP_SERVER_WRITE_TIMEOUT
// HTTP_SERVER_REQUEST_TIMEOUT
// HTTP_SERVER_READ_BUFFER_BYTE
// HTTP_SERVER_WRITE_BUFFER_BYTE

var (
	defaultReadBufferSize  = 1024 * 4
	defaultWriteBufferSize = 1024 * 4
	defaultReadTimeout     = time.Millisecond * 2500
	defaultWriteTimeout    = time.Millisecond * 2500
	defaultRequestTimeout  = time.Millisecond * 5000
)

func init() {
	if v, ok := envInt("HTTP_SERVER_READ_TIMEOUT"); ok {
		defaultReadTimeout = time.Millisecond * time.Duration(v)
	}
	if v, ok := envInt("HTTP_SERVER_WRITE_TIMEOUT"); ok {
		defaultWriteTimeout = time.Millisecond * time.Duration(v)
	}
	if v, ok := envInt("HTTP_SERVER_REQUEST_TIMEOUT"); ok {
		defaultRequestTimeout = time.Millisecond * time.Duration(v)
	}
	if v, ok := envInt("HTTP_SERVER_READ_BUFFER_BYTE"); ok && v > 1024 {
		defaultReadBufferSize = v
	}
	if v, ok := envInt("HTTP_SERVER_WRITE_BUFFER_BYTE"); ok && v > 1024 {
		defaultWriteBufferSize = v
	}

	// package vars are initialized before init runs
	DefaultServerOption.ReadTimeout = defaultReadTimeout
	DefaultServerOption.WriteTimeout = defaultWriteTimeout
	DefaultServerOption.RequestTimeout = defaultRequestTimeout
	DefaultServerOption.ReadBufferSize = defaultReadBufferSize
	DefaultServerOption.WriteBufferSize = defaultWriteBufferSize
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" || raw == "0" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

var DefaultServerOption = ServerOption{
	Handler: func(ctx *RequestCtx) {
		ctx.Error(StatusText(StatusNotFound), StatusNotFound)
	},
	IdleTimeout:           time.Second * 10,
	MaxIdleWorkerDuration: time.Minute * 1,
	TCPKeepalivePeriod:    time.Minute * 120,
	MaxRequestBodySize:    1024 * 1024, // ledger payloads are tiny
	RequestTimeout:        defaultRequestTimeout,
	ReadBufferSize:        defaultReadBufferSize, // also max header size
	WriteBufferSize:       defaultWriteBufferSize,
	ReadTimeout:           defaultReadTimeout,
	WriteTimeout:          defaultWriteTimeout,
	Concurrency:           10_000,
	MaxConnsPerIP:         2_000,
	MaxRequestsPerConn:    0,
	ErrorHandler: func(ctx *RequestCtx, err error) {
		ctx.Logger().Printf("[xhttp] error: %s", err)
	},
	DisableKeepalive:                   false,
	TCPKeepalive:                       true,
	ReduceMemoryUsage:                  false,
	GetOnly:                            false,
	DisablePreParseMultipartForm:       true,
	LogAllErrors:                       true,
	SecureErrorLogMessage:              false,
	DisableHeaderNamesNormalizing:      false,
	SleepWhenConcurrencyLimitsExceeded: 100,
	NoDefaultServerHeader:              true,
	NoDefaultDate:                      true,
	NoDefaultContentType:               true,
	KeepHijackedConns:                  false,
	CloseOnShutdown:                    true,
	StreamRequestBody:                  false,
	ConnState:                          nil,
	Logger:                             logger.GetLogger(),
	TLSConfig:                          nil,
	CompressionLevel:                   fasthttp.CompressBestSpeed,
	RecoverThreshold:                   100,
}

type RequestHeader = fasthttp.RequestHeader
type ResponseHeader = fasthttp.ResponseHeader
type Prefork = prefork.Prefork
type Server = fasthttp.Server

type ServerOption struct {
	Handler RequestHandler

	// IdleTimeout caps keep-alive connections so idle clients do not exhaust file descriptors.
	IdleTimeout           time.Duration
	MaxIdleWorkerDuration time.Duration
	TCPKeepalivePeriod    time.Duration
	MaxRequestBodySize    int

	// RequestTimeout is enforced by TimeoutMiddleware, not by fasthttp itself.
	RequestTimeout  time.Duration
	ReadBufferSize  int
	WriteBufferSize int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration

	// Concurrency is the size of the fasthttp worker pool.
	Concurrency int

	MaxConnsPerIP      int
	MaxRequestsPerConn int

	// ErrorHandler
	ErrorHandler                       func(ctx *RequestCtx, err error)
	HeaderReceived                     func(header *RequestHeader) fasthttp.RequestConfig
	ContinueHandler                    func(header *RequestHeader) bool
	Name                               string
	DisableKeepalive                   bool
	TCPKeepalive                       bool
	ReduceMemoryUsage                  bool
	GetOnly                            bool
	DisablePreParseMultipartForm       bool
	LogAllErrors                       bool
	SecureErrorLogMessage              bool
	DisableHeaderNamesNormalizing      bool
	SleepWhenConcurrencyLimitsExceeded time.Duration
	NoDefaultServerHeader              bool
	NoDefaultDate                      bool
	NoDefaultContentType               bool
	KeepHijackedConns                  bool
	CloseOnShutdown                    bool
	StreamRequestBody                  bool
	ConnState                          func(net.Conn, fasthttp.ConnState)
	Logger                             logger.Logger
	TLSConfig                          *tls.Config
	CompressionLevel                   int
	RecoverThreshold                   int
	AccessLog                          bool
}

type Engine struct {
	*Router
	*Server
	*Prefork
	option ServerOption
	middle []MiddlewareFunc
}

func newServer(options ServerOption) *fasthttp.Server {
	return &fasthttp.Server{
		Handler:                            options.Handler,
		ErrorHandler:                       options.ErrorHandler,
		HeaderReceived:                     options.HeaderReceived,
		ContinueHandler:                    options.ContinueHandler,
		Name:                               options.Name,
		Concurrency:                        options.Concurrency,
		ReadBufferSize:                     options.ReadBufferSize,
		WriteBufferSize:                    options.WriteBufferSize,
		ReadTimeout:                        options.ReadTimeout,
		WriteTimeout:                       options.WriteTimeout,
		IdleTimeout:                        options.IdleTimeout,
		MaxConnsPerIP:                      options.MaxConnsPerIP, // unlimited by default
		MaxRequestsPerConn:                 options.MaxRequestsPerConn,
		MaxIdleWorkerDuration:              options.MaxIdleWorkerDuration,
		TCPKeepalivePeriod:                 options.TCPKeepalivePeriod,
		MaxRequestBodySize:                 options.MaxRequestBodySize,
		DisableKeepalive:                   options.DisableKeepalive,
		TCPKeepalive:                       options.TCPKeepalive,
		ReduceMemoryUsage:                  options.ReduceMemoryUsage,
		GetOnly:                            options.GetOnly,
		DisablePreParseMultipartForm:       options.DisablePreParseMultipartForm,
		LogAllErrors:                       options.LogAllErrors,
		SecureErrorLogMessage:              options.SecureErrorLogMessage,
		DisableHeaderNamesNormalizing:      options.DisableHeaderNamesNormalizing,
		SleepWhenConcurrencyLimitsExceeded: options.SleepWhenConcurrencyLimitsExceeded,
		NoDefaultServerHeader:              options.NoDefaultServerHeader,
		NoDefaultDate:                      options.NoDefaultDate,
		NoDefaultContentType:               options.NoDefaultContentType,
		KeepHijackedConns:                  options.KeepHijackedConns,
		CloseOnShutdown:                    options.CloseOnShutdown,
		StreamRequestBody:                  options.StreamRequestBody,
		ConnState:                          options.ConnState,
		Logger:                             options.Logger,
		TLSConfig:                          options.TLSConfig,
	}
}

func NewServer(options ServerOption) *Engine {
	return &Engine{
		Server: newServer(options),
		Router: NewRouter(),
		option: options,
	}
}

func CreateServer() *Engine {
	s := NewServer(DefaultServerOption)
	s.Router = CreateDefaultRouter()
	s.Server.Logger = logger.GetLogger()
	return s
}

func (e *Engine) ListenAndServe(addr string) error {
	err := e.DoRouting()
	if err != nil {
		return err
	}
	e.Server.Logger.Printf("[xhttp] server is listening on %s", addr)
	if err := e.Server.ListenAndServe(addr); err != nil {
		return err
	}
	return nil
}

func (e *Engine) PreforkListenAndServe(addr string) error {
	err := e.DoRouting()
	if err != nil {
		return err
	}
	e.Prefork = prefork.New(e.Server)
	e.Prefork.Reuseport = true
	e.Prefork.RecoverThreshold = e.option.RecoverThreshold
	e.Prefork.Logger = e.Server.Logger
	e.Prefork.Logger.Printf("[xhttp] server is listening on %s", addr)
	if err := e.Prefork.ListenAndServe(addr); err != nil {
		return err
	}
	return nil
}

func (e *Engine) DoRouting() error {
	// log all registered routes grouped by method
	for method, route := range e.Router.List() {
		for _, r := range route {
			e.Server.Logger.Printf("[xhttp] method: %s, path: %s", method, r)
		}
	}
	// set handler
	e.Server.Handler = e.Router.Handler
	// set middleware
	// reverse the middlewares
	// so the first middleware will be the last to be executed
	// and the last middleware will be the first to be executed
	slices.Reverse(e.middle)
	for i, m := range e.middle {
		e.Server.Handler = m(e.Server.Handler)
		e.Server.Logger.Printf("[xhttp] middleware %d registered - %s", i+1, runtime.FuncForPC(reflect.ValueOf(m).Pointer()).Name())
	}
	return nil
}

func (e *Engine) CloseOnSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig
		e.Shutdown()
	}()
}

// Use adds middleware to the chain which is run for every request, in registration order.
func (e *Engine) Use(middleware MiddlewareFunc) {
	// add middleware to the end of the chain
	e.middle = append(e.middle, middleware)
}

// Shutdown gracefully shuts down the server without interrupting any active connections.
func (e *Engine) Shutdown() {
	// shutdown
	e.Server.Logger.Printf("[xhttp] server is shutting down, process id: %d isChild: %v", os.Getpid(), prefork.IsChild())
	if e.Prefork != nil {
		e.Prefork.RecoverThreshold = 0
	}
	e.Server.Logger.Printf("[xhttp] closing all connections..")
	err := e.Server.Shutdown()
	if err != nil {
		e.Server.Logger.Printf("[xhttp] error while shutting down: %v", err)
	}
}
