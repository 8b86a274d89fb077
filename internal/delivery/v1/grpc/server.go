package grpc

import (
	"context"
	"fmt"
	"net"

	"github.com/DRSN-tech/go-similarity/internal/cfg"
	"github.com/DRSN-tech/go-similarity/internal/usecase"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
	"google.golang.org/grpc"
)

type GRPCServer struct {
	server *grpc.Server
	cfg    *cfg.GRPCConfig
	logger logger.Logger
}

// NewGRPCServer создаёт сервер. Лимит входящего сообщения не меньше maxUploadSize с запасом на обёртку.
func NewGRPCServer(cfg *cfg.GRPCConfig, maxUploadSize int64, logger logger.Logger) *GRPCServer {
	return &GRPCServer{
		server: grpc.NewServer(grpc.MaxRecvMsgSize(int(maxUploadSize) + 1<<10)),
		cfg:    cfg,
		logger: logger,
	}
}

func (s *GRPCServer) RegisterServices(similarityUC usecase.SimilarityUC, maxUploadSize int64) {
	RegisterSimilarityServiceServer(s.server, NewSimilarityService(similarityUC, maxUploadSize, s.logger))
}

func (s *GRPCServer) Start() error {
	addr := fmt.Sprintf(":%s", s.cfg.Port)
	lis, err := net.Listen(s.cfg.NetworkMode, addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	return s.Serve(lis)
}

// Serve обслуживает уже открытый listener.
func (s *GRPCServer) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

func (s *GRPCServer) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Infof("gRPC server stopped gracefully")
		return nil
	case <-ctx.Done():
		s.server.Stop()
		s.logger.Warnf("gRPC server forced to stop after timeout")
		return ctx.Err()
	}
}
