package grpc

import (
	"context"
	"errors"

	"github.com/DRSN-tech/go-similarity/internal/usecase"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	SimilarityServiceName = "similarity.v1.SimilarityService"

	RecommendByCatalogIDMethod = "/" + SimilarityServiceName + "/RecommendByCatalogID"
	SearchByImageMethod        = "/" + SimilarityServiceName + "/SearchByImage"
)

// SimilarityServiceServer: серверная часть similarity.v1.SimilarityService.
// Сообщения описаны well-known типами, поэтому сгенерированный код не нужен.
type SimilarityServiceServer interface {
	RecommendByCatalogID(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SearchByImage(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error)
}

type SimilarityService struct {
	similarityUC  usecase.SimilarityUC
	maxUploadSize int64
	logger        logger.Logger
}

func NewSimilarityService(similarityUC usecase.SimilarityUC, maxUploadSize int64, logger logger.Logger) *SimilarityService {
	return &SimilarityService{similarityUC: similarityUC, maxUploadSize: maxUploadSize, logger: logger}
}

func (g *SimilarityService) RecommendByCatalogID(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "grpc.RecommendByCatalogID"

	id := requestID(req)
	if id == "" {
		return nil, GRPCErrorResponse(e.Wrap(op, e.ErrMissingFields))
	}

	res, err := g.similarityUC.RecommendByCatalogID(ctx, id)
	if err != nil {
		if errors.Is(err, e.ErrEmptyIndex) {
			return toGRPCRecommendations(usecase.NewRecommendRes(nil))
		}
		g.logger.Warnf("%s %s: %s", op, id, err.Error())
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	return toGRPCRecommendations(res)
}

func (g *SimilarityService) SearchByImage(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error) {
	const op = "grpc.SearchByImage"

	data := req.GetValue()
	if len(data) == 0 {
		return nil, GRPCErrorResponse(e.Wrap(op, e.ErrNoImages))
	}
	if g.maxUploadSize > 0 && int64(len(data)) > g.maxUploadSize {
		return nil, GRPCErrorResponse(e.Wrap(op, e.ErrFileTooLarge))
	}

	res, err := g.similarityUC.SearchByImage(ctx, data)
	if err != nil {
		if errors.Is(err, e.ErrEmptyIndex) {
			return toGRPCMatches(usecase.NewSearchRes(nil))
		}
		g.logger.Errorf(e.Wrap(op, err), "%s", op)
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	return toGRPCMatches(res)
}

func RegisterSimilarityServiceServer(s grpc.ServiceRegistrar, srv SimilarityServiceServer) {
	s.RegisterService(&similarityServiceDesc, srv)
}

var similarityServiceDesc = grpc.ServiceDesc{
	ServiceName: SimilarityServiceName,
	HandlerType: (*SimilarityServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "RecommendByCatalogID",
			Handler:    recommendByCatalogIDHandler,
		},
		{
			MethodName: "SearchByImage",
			Handler:    searchByImageHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "similarity/v1/similarity.proto",
}

func recommendByCatalogIDHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SimilarityServiceServer).RecommendByCatalogID(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: RecommendByCatalogIDMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SimilarityServiceServer).RecommendByCatalogID(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func searchByImageHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SimilarityServiceServer).SearchByImage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SearchByImageMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SimilarityServiceServer).SearchByImage(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}
