package api

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/bytes"

	"github.com/tphakala/tflitehelper/internal/classifier"
	"github.com/tphakala/tflitehelper/internal/errors"
	"github.com/tphakala/tflitehelper/internal/imageinput"
	"github.com/tphakala/tflitehelper/internal/logger"
)

// imageFormField is the multipart field holding the uploaded image.
const imageFormField = "image"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Code      int    `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// ClassifyResponse is the body of a successful classification.
type ClassifyResponse struct {
	RequestID    string                   `json:"request_id"`
	Model        string                   `json:"model"`
	Recognitions []classifier.Recognition `json:"recognitions"`
	ElapsedMs    float64                  `json:"elapsed_ms"`
	Cached       bool                     `json:"cached"`
}

// LabelsResponse lists the model labels in index order.
type LabelsResponse struct {
	Model  string   `json:"model"`
	Count  int      `json:"count"`
	Labels []string `json:"labels"`
}

type cachedResult struct {
	model        string
	recognitions []classifier.Recognition
}

func (s *Server) handleClassify(c echo.Context) error {
	start := time.Now()

	data, err := s.readImage(c)
	if err != nil {
		return err
	}

	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])

	if s.results != nil {
		hit, found := s.results.Get(key)
		if s.metrics != nil {
			s.metrics.HTTP.RecordCacheLookup(found)
		}
		if found {
			res := hit.(cachedResult)
			return c.JSON(http.StatusOK, ClassifyResponse{
				RequestID:    getRequestID(c),
				Model:        res.model,
				Recognitions: res.recognitions,
				ElapsedMs:    float64(time.Since(start).Microseconds()) / 1000,
				Cached:       true,
			})
		}
	}

	img, format, err := imageinput.DecodeBytes(data)
	if err != nil {
		return err
	}

	cl, err := s.pool.acquire(c.Request().Context())
	if err != nil {
		return err
	}
	defer s.pool.release(cl)

	fitted := imageinput.Fit(img, cl.Config().InputSize)
	recognitions, err := cl.Classify(fitted)
	if err != nil {
		return err
	}

	if s.results != nil {
		s.results.SetDefault(key, cachedResult{model: cl.ModelName(), recognitions: recognitions})
	}

	s.log.WithContext(c.Request().Context()).Debug("image classified",
		logger.String("format", format),
		logger.String("size", bytes.Format(int64(len(data)))),
		logger.Int("results", len(recognitions)))

	return c.JSON(http.StatusOK, ClassifyResponse{
		RequestID:    getRequestID(c),
		Model:        cl.ModelName(),
		Recognitions: recognitions,
		ElapsedMs:    float64(time.Since(start).Microseconds()) / 1000,
	})
}

// readImage returns the uploaded image from the "image" multipart field or
// the raw request body.
func (s *Server) readImage(c echo.Context) ([]byte, error) {
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, s.config.MaxUploadSize)

	var r io.Reader = req.Body
	mediaType, _, _ := mime.ParseMediaType(req.Header.Get(echo.HeaderContentType))
	if mediaType == echo.MIMEMultipartForm {
		fh, err := c.FormFile(imageFormField)
		if err != nil {
			return nil, s.uploadError(err, "missing multipart field \""+imageFormField+"\"")
		}
		if fh.Size > s.config.MaxUploadSize {
			return nil, s.tooLarge()
		}
		f, err := fh.Open()
		if err != nil {
			return nil, s.uploadError(err, "cannot open uploaded image")
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, s.config.MaxUploadSize+1))
	if err != nil {
		return nil, s.uploadError(err, "cannot read image")
	}
	if int64(len(data)) > s.config.MaxUploadSize {
		return nil, s.tooLarge()
	}
	if len(data) == 0 {
		return nil, errors.Newf("request contains no image").
			Category(errors.CategoryValidation).
			Build()
	}
	return data, nil
}

func (s *Server) uploadError(err error, msg string) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return s.tooLarge()
	}
	return errors.New(err).
		Category(errors.CategoryValidation).
		Context("reason", msg).
		Build()
}

func (s *Server) tooLarge() error {
	return errors.Newf("image exceeds maximum upload size of %s", bytes.Format(s.config.MaxUploadSize)).
		Category(errors.CategoryLimit).
		Build()
}

func (s *Server) handleLabels(c echo.Context) error {
	labels := s.pool.first.Labels()
	return c.JSON(http.StatusOK, LabelsResponse{
		Model:  s.pool.first.ModelName(),
		Count:  len(labels),
		Labels: labels,
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	uptime := time.Since(s.startTime)
	cfg := s.pool.first.Config()

	return c.JSON(http.StatusOK, map[string]any{
		"status":                "healthy",
		"model":                 s.pool.first.ModelName(),
		"variant":               cfg.Variant.String(),
		"input_size":            cfg.InputSize,
		"classifiers":           s.pool.size,
		"classifiers_available": s.pool.available(),
		"max_upload_size":       bytes.Format(s.config.MaxUploadSize),
		"uptime":                uptime.String(),
		"uptime_seconds":        uptime.Seconds(),
		"timestamp":             time.Now().Format(time.RFC3339),
	})
}

// httpErrorHandler renders errors as ErrorResponse JSON.
func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, _ := he.Message.(string)
		if msg == "" {
			msg = http.StatusText(he.Code)
		}
		_ = errorResponse(c, he.Code, msg, err)
		return
	}

	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.log.WithContext(c.Request().Context()).Error("request failed", logger.Error(err))
	}
	_ = errorResponse(c, status, err.Error(), err)
}

func statusForError(err error) int {
	var ee *errors.EnhancedError
	if !errors.As(err, &ee) {
		return http.StatusInternalServerError
	}
	switch ee.Category {
	case errors.CategoryValidation, errors.CategoryImageDecode:
		return http.StatusBadRequest
	case errors.CategoryLimit:
		return http.StatusRequestEntityTooLarge
	case errors.CategoryState, errors.CategoryCancellation:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorResponse(c echo.Context, code int, message string, err error) error {
	errText := http.StatusText(code)
	if err != nil && code < http.StatusInternalServerError {
		errText = err.Error()
	}
	return c.JSON(code, ErrorResponse{
		Error:     errText,
		Message:   message,
		Code:      code,
		RequestID: getRequestID(c),
	})
}
