package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/tflitehelper/internal/classifier"
	"github.com/tphakala/tflitehelper/internal/errors"
	"github.com/tphakala/tflitehelper/internal/observability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClassifier struct {
	calls  atomic.Int32
	err    error
	sizeOK atomic.Bool
}

func (f *fakeClassifier) Classify(img image.Image) ([]classifier.Recognition, error) {
	f.calls.Add(1)
	b := img.Bounds()
	f.sizeOK.Store(b.Dx() == 4 && b.Dy() == 4)
	if f.err != nil {
		return nil, f.err
	}
	return []classifier.Recognition{
		{ID: "1", Name: "tabby", Confidence: 0.9},
		{ID: "0", Name: "background", Confidence: 0.2},
	}, nil
}

func (f *fakeClassifier) Config() classifier.Config {
	cfg := classifier.DefaultConfig()
	cfg.InputSize = 4
	return cfg
}

func (f *fakeClassifier) Labels() []string { return []string{"background", "tabby"} }

func (f *fakeClassifier) ModelName() string { return "mobilenet" }

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 10), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.RateLimit = 0
	return cfg
}

func newTestServer(t *testing.T, cfg *Config, fc *fakeClassifier, opts ...ServerOption) *Server {
	t.Helper()
	s, err := New(cfg, []Classifier{fc}, opts...)
	require.NoError(t, err)
	return s
}

func postImage(s *Server, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/classify", bytes.NewReader(body))
	req.Header.Set("Content-Type", "image/png")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad listen address", func(c *Config) { c.Listen = "nope" }},
		{"negative rate", func(c *Config) { c.RateLimit = -1 }},
		{"rate without burst", func(c *Config) { c.RateLimit = 1; c.RateBurst = 0 }},
		{"negative cache ttl", func(c *Config) { c.CacheTTL = -time.Second }},
		{"zero upload size", func(c *Config) { c.MaxUploadSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.modify(cfg)
			_, err := New(cfg, []Classifier{&fakeClassifier{}})
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
		})
	}
}

func TestNewRequiresClassifier(t *testing.T) {
	t.Parallel()

	_, err := New(testConfig(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestClassifyRawBody(t *testing.T) {
	t.Parallel()

	fc := &fakeClassifier{}
	s := newTestServer(t, testConfig(), fc)

	rec := postImage(s, pngBytes(t, 16, 12))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ClassifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "mobilenet", resp.Model)
	assert.False(t, resp.Cached)
	require.Len(t, resp.Recognitions, 2)
	assert.Equal(t, "tabby", resp.Recognitions[0].Name)
	assert.True(t, fc.sizeOK.Load(), "image must be resized to the model input size")

	_, err := uuid.Parse(resp.RequestID)
	require.NoError(t, err)
	assert.Equal(t, resp.RequestID, rec.Header().Get(RequestIDHeader))
}

func TestClassifyMultipart(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, testConfig(), &fakeClassifier{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(imageFormField, "cat.png")
	require.NoError(t, err)
	_, err = part.Write(pngBytes(t, 8, 8))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/classify", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestClassifyMultipartMissingField(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, testConfig(), &fakeClassifier{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("other", "value"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/classify", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClassifyKeepsValidRequestID(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, testConfig(), &fakeClassifier{})
	id := uuid.New().String()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set(RequestIDHeader, id)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))
}

func TestClassifyErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       []byte
		maxUpload  int64
		classifyFn error
		wantStatus int
	}{
		{name: "empty body", body: nil, wantStatus: http.StatusBadRequest},
		{name: "not an image", body: []byte("definitely not a png"), wantStatus: http.StatusBadRequest},
		{name: "too large", body: bytes.Repeat([]byte{1}, 64), maxUpload: 32, wantStatus: http.StatusRequestEntityTooLarge},
		{
			name:       "classifier closed",
			classifyFn: errors.New(classifier.ErrClosed).Category(errors.CategoryState).Build(),
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "inference failure",
			classifyFn: errors.NewStd("invoke failed"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig()
			if tt.maxUpload > 0 {
				cfg.MaxUploadSize = tt.maxUpload
			}
			body := tt.body
			if tt.classifyFn != nil {
				body = pngBytes(t, 4, 4)
			}
			s := newTestServer(t, cfg, &fakeClassifier{err: tt.classifyFn})

			rec := postImage(s, body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Code)
			assert.NotEmpty(t, resp.Message)
			assert.NotEmpty(t, resp.RequestID)
		})
	}
}

func TestClassifyCachesResults(t *testing.T) {
	t.Parallel()

	fc := &fakeClassifier{}
	m, err := observability.NewMetrics()
	require.NoError(t, err)
	s := newTestServer(t, testConfig(), fc, WithMetrics(m))

	img := pngBytes(t, 8, 8)
	first := postImage(s, img)
	require.Equal(t, http.StatusOK, first.Code)
	second := postImage(s, img)
	require.Equal(t, http.StatusOK, second.Code)

	var resp ClassifyResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	assert.True(t, resp.Cached)
	assert.Equal(t, int32(1), fc.calls.Load())

	other := postImage(s, pngBytes(t, 9, 9))
	require.Equal(t, http.StatusOK, other.Code)
	assert.Equal(t, int32(2), fc.calls.Load())
}

func TestClassifyWithoutCache(t *testing.T) {
	t.Parallel()

	fc := &fakeClassifier{}
	cfg := testConfig()
	cfg.CacheTTL = 0
	s := newTestServer(t, cfg, fc)

	img := pngBytes(t, 8, 8)
	postImage(s, img)
	postImage(s, img)
	assert.Equal(t, int32(2), fc.calls.Load())
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 1
	m, err := observability.NewMetrics()
	require.NoError(t, err)
	s := newTestServer(t, cfg, &fakeClassifier{}, WithMetrics(m))

	img := pngBytes(t, 4, 4)
	assert.Equal(t, http.StatusOK, postImage(s, img).Code)
	assert.Equal(t, http.StatusTooManyRequests, postImage(s, img).Code)

	// Other endpoints are not limited.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	metricsReq := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metricsRec := httptest.NewRecorder()
	s.Echo().ServeHTTP(metricsRec, metricsReq)
	assert.Contains(t, metricsRec.Body.String(), "tflitehelper_http_rate_limited_total 1")
}

func TestLabels(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, testConfig(), &fakeClassifier{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/labels", nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LabelsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "mobilenet", resp.Model)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, []string{"background", "tabby"}, resp.Labels)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, testConfig(), &fakeClassifier{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "quantized", resp["variant"])
	assert.InDelta(t, 4, resp["input_size"], 0)
	assert.InDelta(t, 1, resp["classifiers_available"], 0)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	m, err := observability.NewMetrics()
	require.NoError(t, err)
	s := newTestServer(t, testConfig(), &fakeClassifier{}, WithMetrics(m))

	postImage(s, pngBytes(t, 4, 4))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `tflitehelper_http_requests_total{method="POST",path="/api/v1/classify",status_code="200"} 1`), body)
	assert.Contains(t, body, `tflitehelper_http_result_cache_total{result="miss"} 1`)
}

func TestMetricsEndpointAbsentWithoutMetrics(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, testConfig(), &fakeClassifier{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartAndShutdown(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Listen = "127.0.0.1:0"
	s := newTestServer(t, cfg, &fakeClassifier{})

	s.Start()
	require.NoError(t, s.Shutdown())
}

func TestPoolAcquireHonorsContext(t *testing.T) {
	t.Parallel()

	p, err := newClassifierPool([]Classifier{&fakeClassifier{}})
	require.NoError(t, err)

	c, err := p.acquire(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, p.available())

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	_, err = p.acquire(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryCancellation))

	p.release(c)
	assert.Equal(t, 1, p.available())
}
