package grpc

import (
	"errors"

	"github.com/DRSN-tech/go-similarity/internal/catalog"
	"github.com/DRSN-tech/go-similarity/internal/usecase"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func GRPCErrorResponse(err error) error {
	switch {
	case errors.Is(err, e.ErrNotFound):
		return status.Error(codes.NotFound, e.ErrNotFound.Error())
	case errors.Is(err, e.ErrExtraction):
		return status.Error(codes.InvalidArgument, e.ErrExtraction.Error())
	case errors.Is(err, e.ErrEmbedderUnavailable):
		return status.Error(codes.Unavailable, e.ErrEmbedderUnavailable.Error())
	case errors.Is(err, e.ErrMissingFields):
		return status.Error(codes.InvalidArgument, e.ErrMissingFields.Error())
	case errors.Is(err, e.ErrNoImages):
		return status.Error(codes.InvalidArgument, e.ErrNoImages.Error())
	case errors.Is(err, e.ErrFileTooLarge):
		return status.Error(codes.ResourceExhausted, e.ErrFileTooLarge.Error())
	default:
		return status.Error(codes.Internal, e.ErrInternalServerError.Error())
	}
}

// requestID достаёт id товара из поля id или _id запроса.
func requestID(req *structpb.Struct) string {
	fields := req.AsMap()
	if id := catalog.NormalizeID(fields["id"]); id != "" {
		return id
	}
	return catalog.NormalizeID(fields["_id"])
}

func toGRPCRecommendations(res *usecase.RecommendRes) (*structpb.Struct, error) {
	items := make([]any, 0, len(res.Items))
	for _, it := range res.Items {
		item := map[string]any{
			"id":         it.ID,
			"title":      it.Title,
			"brand":      it.Brand,
			"price":      nil,
			"ratings":    nil,
			"image":      it.Image,
			"similarity": it.Similarity,
		}
		if it.Price != nil {
			item["price"] = it.Price.InexactFloat64()
		}
		if it.Ratings != nil {
			item["ratings"] = *it.Ratings
		}
		items = append(items, item)
	}

	return structpb.NewStruct(map[string]any{"recommended": items})
}

func toGRPCMatches(res *usecase.SearchRes) (*structpb.Struct, error) {
	matches := make([]any, 0, len(res.Matches))
	for _, m := range res.Matches {
		matches = append(matches, map[string]any{
			"filename": m.Filename,
			"score":    m.Score,
			"url":      m.URL,
		})
	}

	return structpb.NewStruct(map[string]any{"matches": matches})
}
