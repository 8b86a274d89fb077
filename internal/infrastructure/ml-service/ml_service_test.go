package ml_service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// fakeML отвечает вектором заданной длины, первые failures вызовов: ошибкой failCode.
type fakeML struct {
	dims     int
	failures int64
	failCode codes.Code
	calls    atomic.Int64
}

func (f *fakeML) vectorize(_ context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error) {
	n := f.calls.Add(1)
	if n <= f.failures {
		return nil, status.Error(f.failCode, "temporary failure")
	}

	values := make([]any, f.dims)
	for i := range values {
		values[i] = float64(len(req.GetValue())%7) + float64(i)
	}

	return structpb.NewStruct(map[string]any{
		"vector":        values,
		"model_version": "vgg16-avg",
	})
}

func startFakeML(t *testing.T, f *fakeML) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	srv.RegisterService(&grpc.ServiceDesc{
		ServiceName: "ml.v1.MachineLearningService",
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{{
			MethodName: "VectorizeImage",
			Handler: func(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
				req := &wrapperspb.BytesValue{}
				if err := dec(req); err != nil {
					return nil, err
				}
				return f.vectorize(ctx, req)
			},
		}},
	}, f)

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	return conn
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestMLService_Embed(t *testing.T) {
	tests := []struct {
		name      string
		serverDim int
		clientDim int
		failures  int64
		failCode  codes.Code
		wantErr   error
		wantCalls int64
	}{
		{name: "success", serverDim: 4, clientDim: 4, wantCalls: 1},
		{name: "retries unavailable", serverDim: 4, clientDim: 4, failures: 2, failCode: codes.Unavailable, wantCalls: 3},
		{name: "gives up after max retries", serverDim: 4, clientDim: 4, failures: 10, failCode: codes.Unavailable, wantErr: e.ErrEmbedderUnavailable, wantCalls: 3},
		{name: "permission denied is an outage", serverDim: 4, clientDim: 4, failures: 1, failCode: codes.PermissionDenied, wantErr: e.ErrEmbedderUnavailable, wantCalls: 1},
		{name: "no retry on invalid argument", serverDim: 4, clientDim: 4, failures: 1, failCode: codes.InvalidArgument, wantErr: e.ErrExtraction, wantCalls: 1},
		{name: "dimension mismatch", serverDim: 3, clientDim: 4, wantErr: e.ErrVectorSizeMismatch, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeML{dims: tt.serverDim, failures: tt.failures, failCode: tt.failCode}
			conn := startFakeML(t, f)
			svc := NewMLService(conn, tt.clientDim, "vgg16-avg", 3, logger.NewNop()).
				WithBackoff(time.Millisecond, 5*time.Millisecond)

			v, err := svc.Embed(context.Background(), pngBytes(t))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Embed() error = %v, want %v", err, tt.wantErr)
				}
			} else {
				if err != nil {
					t.Fatalf("Embed() error = %v", err)
				}
				if len(v) != tt.clientDim {
					t.Errorf("len(Embed()) = %d, want %d", len(v), tt.clientDim)
				}
			}

			if got := f.calls.Load(); got != tt.wantCalls {
				t.Errorf("server calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestMLService_OutageIsNotExtractionError(t *testing.T) {
	f := &fakeML{dims: 4, failures: 100, failCode: codes.Unavailable}
	conn := startFakeML(t, f)
	svc := NewMLService(conn, 4, "vgg16-avg", 2, logger.NewNop()).
		WithBackoff(time.Millisecond, time.Millisecond)

	_, err := svc.Embed(context.Background(), pngBytes(t))
	if !errors.Is(err, e.ErrEmbedderUnavailable) {
		t.Errorf("Embed() error = %v, want ErrEmbedderUnavailable", err)
	}
	if errors.Is(err, e.ErrExtraction) {
		t.Errorf("Embed() error = %v must not be ErrExtraction", err)
	}
}

func TestMLService_RejectsUndecodableImage(t *testing.T) {
	f := &fakeML{dims: 4}
	conn := startFakeML(t, f)
	svc := NewMLService(conn, 4, "vgg16-avg", 3, logger.NewNop())

	_, err := svc.Embed(context.Background(), []byte("not an image"))
	if !errors.Is(err, e.ErrExtraction) {
		t.Errorf("Embed() error = %v, want ErrExtraction", err)
	}
	if f.calls.Load() != 0 {
		t.Errorf("server calls = %d, want 0", f.calls.Load())
	}
}

func TestMLService_RejectsOversizedImage(t *testing.T) {
	f := &fakeML{dims: 4}
	conn := startFakeML(t, f)
	svc := NewMLService(conn, 4, "vgg16-avg", 3, logger.NewNop()).WithMaxPixels(8)

	if _, err := svc.Embed(context.Background(), pngBytes(t)); !errors.Is(err, e.ErrExtraction) {
		t.Errorf("Embed() error = %v, want ErrExtraction", err)
	}
	if f.calls.Load() != 0 {
		t.Errorf("server calls = %d, want 0", f.calls.Load())
	}
}

func TestMLService_Metadata(t *testing.T) {
	svc := NewMLService(nil, 512, "vgg16-avg", 0, logger.NewNop())
	if svc.Dimensions() != 512 {
		t.Errorf("Dimensions() = %d, want 512", svc.Dimensions())
	}
	if svc.ModelVersion() != "vgg16-avg" {
		t.Errorf("ModelVersion() = %q, want vgg16-avg", svc.ModelVersion())
	}
}
