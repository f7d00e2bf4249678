// Package health 通过标准 gRPC 健康检查协议暴露 agent 运行状态
package health

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/FloatingGuy/ransomcare/internal/log"
)

// TracerService 跟踪 agent 对应的服务名
const TracerService = "ransomcare.Tracer"

// Server 健康检查 gRPC 服务器
type Server struct {
	addr       string
	logger     *log.Logger
	grpcServer *grpc.Server
	health     *health.Server
}

// New 创建健康检查服务器，初始状态为 NOT_SERVING
func New(addr string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.NewNop()
	}

	grpcServer := grpc.NewServer(
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             1 * time.Minute,
			PermitWithoutStream: true,
		}),
		grpc.ChainUnaryInterceptor(
			recoveryInterceptor(logger),
			loggingInterceptor(logger),
		),
	)

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, hs)
	reflection.Register(grpcServer)

	s := &Server{
		addr:       addr,
		logger:     logger,
		grpcServer: grpcServer,
		health:     hs,
	}
	s.SetServing(false)
	return s
}

// SetServing 更新跟踪 agent 的健康状态，空服务名（整体状态）同步更新
func (s *Server) SetServing(serving bool) {
	st := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		st = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(TracerService, st)
	s.health.SetServingStatus("", st)
}

// Serve 监听 addr 并阻塞，ctx 取消后优雅停止
func (s *Server) Serve(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, lis)
}

// ServeListener 在已有 listener 上提供服务
func (s *Server) ServeListener(ctx context.Context, lis net.Listener) error {
	s.logger.Info("Starting health server", zap.String("addr", lis.Addr().String()))

	go func() {
		<-ctx.Done()
		s.stop(5 * time.Second)
	}()

	if err := s.grpcServer.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

func (s *Server) stop(timeout time.Duration) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Health server stopped gracefully")
	case <-time.After(timeout):
		s.logger.Warn("Health server graceful stop timeout, forcing stop")
		s.grpcServer.Stop()
	}
}

func recoveryInterceptor(logger *log.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Panic recovered in gRPC handler",
					zap.Any("panic", r),
					zap.String("method", info.FullMethod),
					zap.String("stack", string(debug.Stack())),
				)
				err = status.Errorf(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

func loggingInterceptor(logger *log.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("gRPC request completed",
			zap.String("method", info.FullMethod),
			zap.Duration("latency", time.Since(start)),
			zap.String("status", status.Code(err).String()),
		)
		return resp, err
	}
}
