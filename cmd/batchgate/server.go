package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/BaSui01/batchgate/api/handlers"
	"github.com/BaSui01/batchgate/batch"
	"github.com/BaSui01/batchgate/config"
	"github.com/BaSui01/batchgate/internal/metrics"
	"github.com/BaSui01/batchgate/internal/ratelimit"
	"github.com/BaSui01/batchgate/internal/server"
	"github.com/BaSui01/batchgate/internal/telemetry"
	"github.com/BaSui01/batchgate/internal/tlsutil"
	"github.com/BaSui01/batchgate/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// skipAuthPaths 不经过认证与 HTTP 限流的探针端点
var skipAuthPaths = []string{"/health", "/healthz", "/ready", "/readyz", "/version"}

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 BatchGate 的主服务器
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	telemetry *telemetry.Providers

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// Handlers
	healthHandler *handlers.HealthHandler
	batchHandler  *handlers.BatchHandler

	// 子请求路由表，批处理条目在进程内分派到这里
	routes *http.ServeMux

	metricsCollector *metrics.Collector

	// 批处理准入限流与 HTTP 请求限流
	admission   ratelimit.Limiter
	httpLimiter *ratelimit.TokenBucket

	cancel context.CancelFunc
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, providers *telemetry.Providers) *Server {
	return &Server{
		cfg:       cfg,
		logger:    logger,
		telemetry: providers,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	if s.metricsCollector == nil {
		s.metricsCollector = metrics.NewCollector("batchgate", s.logger)
	}

	handler, err := s.buildHandler()
	if err != nil {
		return err
	}

	if err := s.startHTTPServer(handler); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("batch_mode", s.cfg.Batch.Mode),
		zap.String("limiter", s.cfg.Limiter.Driver),
	)
	return nil
}

// buildHandler 初始化依赖并返回带完整中间件链的根 Handler
func (s *Server) buildHandler() (http.Handler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	admission, err := ratelimit.New(ctx, limiterConfig(s.cfg.Limiter), s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init batch limiter: %w", err)
	}
	s.admission = admission

	if err := s.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	s.httpLimiter = ratelimit.NewTokenBucket(ctx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst,
		ratelimit.WithLogger(s.logger))

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		OTelTracing(s.telemetry.TracerProvider()),
		MetricsMiddleware(s.metricsCollector),
		RequestLogger(s.logger),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		APIKeyAuth(s.cfg.Server.APIKeys, skipAuthPaths, s.cfg.Server.AllowQueryAPIKey, s.logger),
	}
	if s.cfg.JWT.Enabled {
		jwtAuth, err := JWTAuth(s.cfg.JWT, skipAuthPaths, s.logger)
		if err != nil {
			return nil, err
		}
		middlewares = append(middlewares, jwtAuth)
	}
	middlewares = append(middlewares, RateLimiter(s.httpLimiter, skipAuthPaths, s.logger))

	return Chain(s.routes, middlewares...), nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initHandlers 初始化路由表与所有 handlers
func (s *Server) initHandlers() error {
	s.routes = http.NewServeMux()

	s.healthHandler = handlers.NewHealthHandler(s.logger)
	if s.admission != nil {
		s.healthHandler.RegisterCheck(handlers.NewCheck("limiter", s.admission.Ping))
	}

	mode, err := batch.ParseMode(s.cfg.Batch.Mode)
	if err != nil {
		return err
	}

	taskHandler := batch.NewTaskHandler(
		batch.WithItemTimeout(s.cfg.Batch.ItemTimeout),
		batch.WithTracerProvider(s.telemetry.TracerProvider()),
		batch.WithMeterProvider(s.telemetry.MeterProvider()),
	)
	parserOpts := []batch.ParserOption{
		batch.WithFactory(batch.NewTransactionFactory(batch.WithMaxItems(s.cfg.Batch.MaxItems))),
		batch.WithTransactionHandler(taskHandler),
		batch.WithConcurrency(s.cfg.Batch.Concurrency),
		batch.WithFlushEvery(s.cfg.Batch.FlushEvery),
		batch.WithRecorder(s.metricsCollector),
		batch.WithLogger(s.logger),
	}
	if s.admission != nil {
		parserOpts = append(parserOpts, batch.WithLimiter(s.admission))
	}
	parser := batch.NewRequestParser(batch.NewHandlerDispatcher(s.routes), parserOpts...)

	s.batchHandler = handlers.NewBatchHandler(parser, s.logger,
		handlers.WithDefaultMode(mode),
		handlers.WithMaxBodyBytes(s.cfg.Batch.MaxBodyBytes),
		handlers.WithIncludeHeadersDefault(s.cfg.Batch.IncludeHeadersDefault),
	)

	s.routes.HandleFunc("/health", s.healthHandler.HandleHealth)
	s.routes.HandleFunc("/healthz", s.healthHandler.HandleHealth)
	s.routes.HandleFunc("/ready", s.healthHandler.HandleReady)
	s.routes.HandleFunc("/readyz", s.healthHandler.HandleReady)
	s.routes.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	s.routes.HandleFunc("/api/v1/batch", s.batchHandler.HandleBatch)
	s.routes.HandleFunc("/api/v1/batch/stream", s.batchHandler.HandleStream)

	if s.cfg.Batch.UpstreamURL != "" {
		proxy, err := s.newUpstreamProxy(s.cfg.Batch.UpstreamURL)
		if err != nil {
			return err
		}
		// 未匹配的路径全部交给上游
		s.routes.Handle("/", proxy)
		s.logger.Info("upstream proxy enabled", zap.String("upstream", s.cfg.Batch.UpstreamURL))
	}

	s.logger.Info("Handlers initialized", zap.String("batch_mode", string(mode)))
	return nil
}

// newUpstreamProxy 创建到上游服务的反向代理
func (s *Server) newUpstreamProxy(raw string) (*httputil.ReverseProxy, error) {
	target, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url: %w", err)
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		Transport: tlsutil.UpstreamTransport(s.cfg.Batch.UpstreamTimeout),
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			status := http.StatusBadGateway
			code := types.ErrUpstreamError
			if errors.Is(err, context.DeadlineExceeded) {
				status = http.StatusGatewayTimeout
				code = types.ErrTimeout
			}
			s.logger.Warn("upstream request failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
			handlers.WriteErrorMessage(w, status, code, "upstream request failed", nil)
		},
	}
	return proxy, nil
}

// limiterConfig 将配置映射为限流器配置
func limiterConfig(c config.LimiterConfig) ratelimit.Config {
	return ratelimit.Config{
		Driver:    c.Driver,
		Rate:      c.Rate,
		Burst:     c.Burst,
		IdleTTL:   c.IdleTTL,
		KeyPrefix: c.KeyPrefix,
		Redis: ratelimit.RedisConfig{
			Addr:         c.Redis.Addr,
			Password:     c.Redis.Password,
			DB:           c.Redis.DB,
			MaxRetries:   c.Redis.MaxRetries,
			PoolSize:     c.Redis.PoolSize,
			MinIdleConns: c.Redis.MinIdleConns,
			TLS:          c.Redis.TLS,
		},
	}
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

func (s *Server) startHTTPServer(handler http.Handler) error {
	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	if s.cfg.Server.TLSEnabled() {
		return s.httpManager.StartTLS(s.cfg.Server.TLSCertFile, s.cfg.Server.TLSKeyFile)
	}
	return s.httpManager.Start()
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.ReadTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	return s.metricsManager.Start()
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown(ctx context.Context) {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown(ctx)
	}
	s.Shutdown(context.WithoutCancel(ctx))
}

// Shutdown 优雅关闭所有服务，依次停止 HTTP、Metrics、限流器与遥测
func (s *Server) Shutdown(ctx context.Context) {
	s.logger.Info("Starting graceful shutdown...")

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	if s.cancel != nil {
		s.cancel()
	}
	if s.httpLimiter != nil {
		_ = s.httpLimiter.Close()
	}
	if s.admission != nil {
		if err := s.admission.Close(); err != nil {
			s.logger.Error("Limiter close error", zap.Error(err))
		}
	}
	if err := s.telemetry.Shutdown(ctx); err != nil {
		s.logger.Error("Telemetry shutdown error", zap.Error(err))
	}

	s.logger.Info("Graceful shutdown completed")
}
