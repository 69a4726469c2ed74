package ml_service

import (
	"context"
	"encoding/base64"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/style-recommender/internal/cfg"
	"github.com/DRSN-tech/style-recommender/internal/infrastructure/images"
	"github.com/DRSN-tech/style-recommender/pkg/e"
	"github.com/DRSN-tech/style-recommender/pkg/logger"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

// embeddingServer отвечает вектором [len(data), index, 1] на каждое изображение.
type embeddingServer struct {
	mu       sync.Mutex
	calls    int
	requests []*structpb.Struct
	fail     bool
	drop     bool
	slow     bool
}

func (s *embeddingServer) handle(_ any, stream grpc.ServerStream) error {
	method, _ := grpc.MethodFromServerStream(stream)
	if method != EmbedImagesMethod {
		return status.Errorf(codes.Unimplemented, "unknown method %s", method)
	}

	req := &structpb.Struct{}
	if err := stream.RecvMsg(req); err != nil {
		return err
	}

	s.mu.Lock()
	s.calls++
	s.requests = append(s.requests, req)
	fail, drop, slow := s.fail, s.drop, s.slow
	s.mu.Unlock()

	if slow {
		select {
		case <-stream.Context().Done():
			return status.FromContextError(stream.Context().Err()).Err()
		case <-time.After(time.Second):
		}
	}

	if fail {
		return status.Error(codes.Unavailable, "model is loading")
	}

	imgs := req.GetFields()["images"].GetListValue().GetValues()
	if drop {
		imgs = imgs[:len(imgs)-1]
	}

	vectors := make([]any, 0, len(imgs))
	for i, img := range imgs {
		data, err := base64.StdEncoding.DecodeString(img.GetStructValue().GetFields()["data"].GetStringValue())
		if err != nil {
			return status.Error(codes.InvalidArgument, err.Error())
		}
		vectors = append(vectors, []any{float64(len(data)), float64(i), 1.0})
	}

	res, err := structpb.NewStruct(map[string]any{
		"vectors":       vectors,
		"model_version": "resnet50-onnx@1",
	})
	if err != nil {
		return err
	}
	return stream.SendMsg(res)
}

func startServer(t *testing.T, srv *embeddingServer) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer(grpc.UnknownServiceHandler(srv.handle))
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func writeImages(t *testing.T, contents ...string) []string {
	t.Helper()

	dir := t.TempDir()
	paths := make([]string, 0, len(contents))
	for i, c := range contents {
		p := filepath.Join(dir, string(rune('a'+i))+".jpg")
		require.NoError(t, os.WriteFile(p, []byte(c), 0o600))
		paths = append(paths, p)
	}
	return paths
}

func newTestService(conn grpc.ClientConnInterface, failures uint32) *MLService {
	return NewMLService(conn, images.NewLoader(nil, 2), &cfg.MLServiceCfg{
		Model:           "Qdrant/resnet50-onnx",
		BreakerFailures: failures,
		BreakerTimeout:  time.Minute,
	}, logger.NewNopLogger())
}

func TestMLService_EmbedPreservesOrder(t *testing.T) {
	srv := &embeddingServer{}
	svc := newTestService(startServer(t, srv), 5)
	paths := writeImages(t, "x", "yyy", "zz")

	vectors, err := svc.Embed(context.Background(), paths)
	require.NoError(t, err)

	assert.Equal(t, [][]float32{{1, 0, 1}, {3, 1, 1}, {2, 2, 1}}, vectors)

	require.Equal(t, 1, srv.calls)
	req := srv.requests[0]
	assert.Equal(t, "Qdrant/resnet50-onnx", req.GetFields()["model"].GetStringValue())
	sent := req.GetFields()["images"].GetListValue().GetValues()
	require.Len(t, sent, 3)
	assert.Equal(t, paths[1], sent[1].GetStructValue().GetFields()["path"].GetStringValue())
	assert.Equal(t, "image/jpeg", sent[1].GetStructValue().GetFields()["mime_type"].GetStringValue())
}

func TestMLService_EmptyInput(t *testing.T) {
	srv := &embeddingServer{}
	svc := newTestService(startServer(t, srv), 5)

	vectors, err := svc.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Zero(t, srv.calls)
}

func TestMLService_VectorCountMismatch(t *testing.T) {
	srv := &embeddingServer{drop: true}
	svc := newTestService(startServer(t, srv), 5)

	_, err := svc.Embed(context.Background(), writeImages(t, "a", "b"))
	assert.ErrorIs(t, err, e.ErrImageVectorMismatch)
}

func TestMLService_UnreadableImageSkipsCall(t *testing.T) {
	srv := &embeddingServer{}
	svc := newTestService(startServer(t, srv), 5)

	_, err := svc.Embed(context.Background(), []string{filepath.Join(t.TempDir(), "missing.jpg")})
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Zero(t, srv.calls)
}

func TestMLService_BreakerOpensAfterFailures(t *testing.T) {
	srv := &embeddingServer{fail: true}
	svc := newTestService(startServer(t, srv), 2)
	paths := writeImages(t, "a")

	for range 2 {
		_, err := svc.Embed(context.Background(), paths)
		require.Error(t, err)
		assert.Equal(t, codes.Unavailable, status.Code(errors.Unwrap(err)))
	}

	_, err := svc.Embed(context.Background(), paths)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, srv.calls)
}

func TestMLService_CallerDeadlineDoesNotTripBreaker(t *testing.T) {
	srv := &embeddingServer{slow: true}
	svc := newTestService(startServer(t, srv), 2)
	paths := writeImages(t, "a")

	for range 3 {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		_, err := svc.Embed(ctx, paths)
		cancel()
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}

	srv.mu.Lock()
	srv.slow = false
	srv.mu.Unlock()

	vectors, err := svc.Embed(context.Background(), paths)
	require.NoError(t, err)
	assert.Len(t, vectors, 1)
}
