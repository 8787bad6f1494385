package documents

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore()
	ref, err := m.Put(context.Background(), "/certificates/a.json", "application/json", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "memory://certificates/a.json", ref)

	_, err = m.Put(context.Background(), "certificates/a.json", "application/json", []byte(`{}`))
	assert.ErrorIs(t, err, ErrAlreadyExists)

	body, ct, err := m.Get("certificates/a.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(body))
	assert.Equal(t, "application/json", ct)

	_, _, err = m.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSupabaseStore_Put(t *testing.T) {
	var gotPath, gotAuth, gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		if strings.HasSuffix(r.URL.Path, "taken.pdf") {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"Duplicate","message":"The resource already exists"}`))
			return
		}
		_, _ = w.Write([]byte(`{"Key":"docs/x"}`))
	}))
	defer srv.Close()

	s := &SupabaseStore{BaseURL: srv.URL + "/", SecretKey: "service-role", Bucket: "docs"}
	ref, err := s.Put(context.Background(), "possessions/POS-1/photo/1-site.jpg", "image/jpeg", []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, "supabase://docs/possessions/POS-1/photo/1-site.jpg", ref)
	assert.Equal(t, "/storage/v1/object/docs/possessions/POS-1/photo/1-site.jpg", gotPath)
	assert.Equal(t, "Bearer service-role", gotAuth)
	assert.Equal(t, "image/jpeg", gotType)
	assert.Equal(t, "jpeg", gotBody)

	_, err = s.Put(context.Background(), "taken.pdf", "application/pdf", []byte("pdf"))
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestSupabaseStore_RequiresConfig(t *testing.T) {
	_, err := (&SupabaseStore{}).Put(context.Background(), "a", "text/plain", []byte("a"))
	assert.ErrorContains(t, err, "SUPABASE_URL")
}

// fakeS3 answers HEAD and PUT for path-style object URLs.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string // key -> content type
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	empty := io.NopCloser(bytes.NewReader(nil))
	switch req.Method {
	case http.MethodHead:
		if _, ok := f.objects[key]; ok {
			return &http.Response{StatusCode: 200, Body: empty, Header: http.Header{"Content-Length": {"0"}}}, nil
		}
		return &http.Response{StatusCode: 404, Body: empty, Header: http.Header{}}, nil
	case http.MethodPut:
		_, _ = io.Copy(io.Discard, req.Body)
		f.objects[key] = req.Header.Get("Content-Type")
		return &http.Response{StatusCode: 200, Body: empty, Header: http.Header{"ETag": {`"etag"`}}}, nil
	}
	return &http.Response{StatusCode: 501, Body: empty, Header: http.Header{}}, nil
}

func newFakeS3Store(t *testing.T, rt http.RoundTripper) *S3Store {
	t.Helper()
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	require.NoError(t, err)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String("https://mock.s3.local")
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
	})
	return &S3Store{client: client, bucket: "estate-docs"}
}

func TestS3Store_PutIsCreateOnly(t *testing.T) {
	rt := &fakeS3{objects: map[string]string{}}
	s := newFakeS3Store(t, rt)

	ref, err := s.Put(context.Background(), "certificates/POS-1.json", "application/json", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "s3://estate-docs/certificates/POS-1.json", ref)
	assert.Equal(t, "application/json", rt.objects["certificates/POS-1.json"])

	_, err = s.Put(context.Background(), "certificates/POS-1.json", "application/json", []byte(`{}`))
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestNewS3_RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), S3Config{})
	assert.Error(t, err)
}
