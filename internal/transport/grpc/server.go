// grpc - служебный gRPC-сервер: health-протокол, рефлексия и метрики.
package grpc

import (
	"context"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/pribylovaa/accounts-service/internal/transport/grpc/interceptors"
)

// Pinger - зависимость, доступность которой определяет readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options - параметры сборки gRPC-сервера.
type Options struct {
	Logger     *slog.Logger
	Timeout    time.Duration
	Reflection bool // включать только в local/dev
	Metrics    bool // grpc-prometheus в DefaultRegisterer
}

// Server оборачивает *grpc.Server и health-сервер и хранит флаг готовности,
// который также читает служебный HTTP (/healthz).
type Server struct {
	srv    *grpc.Server
	health *health.Server
	log    *slog.Logger
	ready  atomic.Bool
}

// NewServer собирает gRPC-сервер с цепочкой интерсепторов
// (recover -> logging -> timeout -> prometheus; для stream recover -> prometheus).
// Стартовый статус NOT_SERVING.
func NewServer(opts Options) *Server {
	l := opts.Logger
	if l == nil {
		l = slog.Default()
	}

	unary := []grpc.UnaryServerInterceptor{
		interceptors.Recover(l),
		interceptors.UnaryLogging(l),
		interceptors.WithTimeout(opts.Timeout),
	}
	stream := []grpc.StreamServerInterceptor{
		interceptors.StreamRecover(l),
	}
	if opts.Metrics {
		grpc_prometheus.EnableHandlingTimeHistogram()
		unary = append(unary, grpc_prometheus.UnaryServerInterceptor)
		stream = append(stream, grpc_prometheus.StreamServerInterceptor)
	}

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(stream...),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	if opts.Reflection {
		reflection.Register(srv)
	}

	if opts.Metrics {
		grpc_prometheus.Register(srv)
	}

	s := &Server{srv: srv, health: hs, log: l}
	s.SetServing(false)

	return s
}

// Serve блокируется до остановки сервера.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("grpc_listen_start", slog.String("addr", lis.Addr().String()))
	return s.srv.Serve(lis)
}

// SetServing переключает health-статус и флаг готовности.
func (s *Server) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}

	s.health.SetServingStatus("", st)
	s.ready.Store(ok)
}

// Ready сообщает текущий флаг готовности.
func (s *Server) Ready() bool { return s.ready.Load() }

// WatchReadiness сразу и затем каждые period проверяет p
// и выставляет статус по результату. Возвращается по отмене ctx.
func (s *Server) WatchReadiness(ctx context.Context, p Pinger, period time.Duration) {
	check := func() {
		pctx, cancel := context.WithTimeout(ctx, period)
		defer cancel()

		err := p.Ping(pctx)
		if ok := err == nil; ok != s.Ready() {
			if ok {
				s.log.Info("readiness_changed", slog.Bool("ready", true))
			} else {
				s.log.Warn("readiness_changed", slog.Bool("ready", false), slog.String("err", err.Error()))
			}
			s.SetServing(ok)
		}
	}

	check()

	t := time.NewTicker(period)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			check()
		}
	}
}

// Stop переводит сервер в NOT_SERVING и останавливает его мягко;
// по истечении ctx соединения рвутся принудительно.
func (s *Server) Stop(ctx context.Context) {
	s.SetServing(false)

	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("grpc_stopped")
	case <-ctx.Done():
		s.log.Warn("grpc_force_stop")
		s.srv.Stop()
	}
}
