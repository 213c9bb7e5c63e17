package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/career-mentor/mentor-web-ui/internal/models"
	"github.com/mitchellh/mapstructure"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Backend is the client of the remote resume-mentor service. It turns the three user intents (upload a
// resume, ask a question, start over) into HTTP calls and normalizes every outcome into a value the
// handlers can show. It holds no per-session state and is safe for concurrent use.
type Backend struct {
	baseURL       string
	uploadTimeout time.Duration
	queryTimeout  time.Duration
	answerMarker  string

	client *http.Client

	tracer   trace.Tracer
	requests metric.Int64Counter
	duration metric.Float64Histogram

	logger *slog.Logger
}

// BackendConfig configures a Backend. Zero values fall back to the defaults below.
type BackendConfig struct {
	URL           string
	UploadTimeout time.Duration
	QueryTimeout  time.Duration
	// AnswerMarker is the literal after which the backend puts its real answer.
	AnswerMarker string
	// DisableAnswerTrim returns replies verbatim, ignoring AnswerMarker.
	DisableAnswerTrim bool
}

type backendResponse struct {
	Error    *string `mapstructure:"error"`
	Detail   *string `mapstructure:"detail"`
	Filename *string `mapstructure:"filename"`
	Response *string `mapstructure:"response"`

	// hasError is set when the error key is present, even with a null value.
	hasError bool
}

const (
	// DefaultBackendURL is the origin of the hosted mentor backend.
	DefaultBackendURL = "https://jatingoyal10-gemini-two.hf.space"
	// DefaultAnswerMarker precedes the real answer in replies that echo the prompt scaffold.
	DefaultAnswerMarker = "Your Answer:"

	DefaultUploadTimeout = 60 * time.Second
	DefaultQueryTimeout  = 180 * time.Second

	// QueryErrorPrefix starts every assistant message produced from a failed query.
	QueryErrorPrefix = "Error: The request to the AI backend failed. "
	// UploadErrorPrefix starts every upload error produced by a transport or status failure.
	UploadErrorPrefix = "API connection failed: "
	// EmptyResponseText replaces a reply without a response field.
	EmptyResponseText = "Sorry, an empty response was received."
	// RejectedUploadText is shown when the backend flags an upload error without saying why.
	RejectedUploadText = "The backend rejected the resume."

	uploadPath = "/upload-resume"
	queryPath  = "/query"
	resetPath  = "/reset"

	uploadFieldName   = "file"
	uploadContentType = "application/pdf"

	maxResponseBytes = 10 << 20

	instrumentationName = "github.com/career-mentor/mentor-web-ui/internal/services"
)

// NewBackend creates a Backend for the given origin. It registers its instruments on the global
// OpenTelemetry providers, which are no-ops unless telemetry was initialized.
func NewBackend(cfg BackendConfig, logger *slog.Logger) (Backend, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		baseURL = DefaultBackendURL
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = DefaultUploadTimeout
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}
	switch {
	case cfg.DisableAnswerTrim:
		cfg.AnswerMarker = ""
	case cfg.AnswerMarker == "":
		cfg.AnswerMarker = DefaultAnswerMarker
	}

	meter := otel.Meter(instrumentationName)
	requests, err := meter.Int64Counter("backend.requests",
		metric.WithDescription("Calls made to the mentor backend, by operation and outcome"))
	if err != nil {
		return Backend{}, fmt.Errorf("failed to create request counter: %w", err)
	}
	duration, err := meter.Float64Histogram("backend.duration",
		metric.WithDescription("Latency of calls made to the mentor backend"),
		metric.WithUnit("s"))
	if err != nil {
		return Backend{}, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return Backend{
		baseURL:       baseURL,
		uploadTimeout: cfg.UploadTimeout,
		queryTimeout:  cfg.QueryTimeout,
		answerMarker:  cfg.AnswerMarker,
		client:        &http.Client{},
		tracer:        otel.Tracer(instrumentationName),
		requests:      requests,
		duration:      duration,
		logger:        logger.With(slog.String("module", "backend")),
	}, nil
}

// UploadResume sends the resume as a multipart form to the backend. The content is assumed, not
// verified, to be a PDF. Any failure is reported through the Error field with a human-readable text.
func (b Backend) UploadResume(ctx context.Context, name string, data []byte) models.UploadResult {
	ctx, span := b.tracer.Start(ctx, "backend.upload",
		trace.WithAttributes(attribute.String("resume.name", name), attribute.Int("resume.size", len(data))))
	defer span.End()

	start := time.Now()
	res, err := b.upload(ctx, name, data)
	b.observe(ctx, span, "upload", start, err)
	if err != nil {
		b.logger.Error("Upload failed", slog.String("name", name), slog.String(errLoggerKey, err.Error()))
		return models.UploadResult{Error: UploadErrorPrefix + err.Error()}
	}

	if res.hasError {
		reason := RejectedUploadText
		if res.Error != nil && strings.TrimSpace(*res.Error) != "" {
			reason = *res.Error
		}
		b.logger.Warn("Backend rejected upload", slog.String("name", name), slog.String("reason", reason))
		return models.UploadResult{Error: reason}
	}

	filename := name
	if res.Filename != nil && strings.TrimSpace(*res.Filename) != "" {
		filename = *res.Filename
	}
	b.logger.Info("Resume uploaded", slog.String("filename", filename))

	return models.UploadResult{Filename: filename}
}

func (b Backend) upload(ctx context.Context, name string, data []byte) (backendResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, b.uploadTimeout)
	defer cancel()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     uploadFieldName,
		"filename": name,
	}))
	header.Set("Content-Type", uploadContentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return backendResponse{}, fmt.Errorf("error creating form part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return backendResponse{}, fmt.Errorf("error writing form part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return backendResponse{}, fmt.Errorf("error closing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+uploadPath, &body)
	if err != nil {
		return backendResponse{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return b.do(req)
}

// Query asks the backend a question about the uploaded resume and returns the text to show as the
// assistant's reply. Failures are returned as text starting with QueryErrorPrefix, never as an error.
func (b Backend) Query(ctx context.Context, prompt string) string {
	ctx, span := b.tracer.Start(ctx, "backend.query",
		trace.WithAttributes(attribute.Int("prompt.length", len(prompt))))
	defer span.End()

	start := time.Now()
	res, err := b.query(ctx, prompt)
	b.observe(ctx, span, "query", start, err)
	if err != nil {
		b.logger.Error("Query failed", slog.String(errLoggerKey, err.Error()))
		return QueryErrorPrefix + err.Error()
	}

	text := EmptyResponseText
	if res.Response != nil {
		text = *res.Response
	}

	answer := trimAnswer(text, b.answerMarker)
	if len(answer) != len(text) {
		b.logger.Debug("Trimmed echoed prompt from answer",
			slog.Int("originalLength", len(text)),
			slog.Int("answerLength", len(answer)))
	}
	return answer
}

func (b Backend) query(ctx context.Context, prompt string) (backendResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, b.queryTimeout)
	defer cancel()

	jsonBody, err := json.Marshal(struct {
		Prompt string `json:"prompt"`
	}{Prompt: prompt})
	if err != nil {
		return backendResponse{}, fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+queryPath, bytes.NewReader(jsonBody))
	if err != nil {
		return backendResponse{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return b.do(req)
}

// Reset tells the backend to forget the uploaded resume. It is best-effort: the returned error is only
// meant for logging, since the local session is cleared regardless.
func (b Backend) Reset(ctx context.Context) error {
	ctx, span := b.tracer.Start(ctx, "backend.reset")
	defer span.End()

	start := time.Now()
	err := b.reset(ctx)
	b.observe(ctx, span, "reset", start, err)
	if err != nil {
		b.logger.Warn("Reset failed", slog.String(errLoggerKey, err.Error()))
	}
	return err
}

func (b Backend) reset(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+resetPath, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("backend returned %s", resp.Status)
	}
	return nil
}

func (b Backend) do(req *http.Request) (backendResponse, error) {
	resp, err := b.client.Do(req)
	if err != nil {
		return backendResponse{}, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return backendResponse{}, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return backendResponse{}, statusError(resp.Status, raw)
	}

	res, err := decodeBackendResponse(raw)
	if err != nil {
		return backendResponse{}, err
	}
	return res, nil
}

// decodeBackendResponse reads the untyped JSON object the backend answers with and keeps only the
// fields the client knows about. Absent keys stay nil.
func decodeBackendResponse(raw []byte) (backendResponse, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return backendResponse{}, fmt.Errorf("error decoding response: %w", err)
	}

	var res backendResponse
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &res,
	})
	if err != nil {
		return backendResponse{}, fmt.Errorf("error creating response decoder: %w", err)
	}
	if err := dec.Decode(m); err != nil {
		return backendResponse{}, fmt.Errorf("error decoding response fields: %w", err)
	}
	_, res.hasError = m["error"]
	return res, nil
}

func statusError(status string, raw []byte) error {
	res, err := decodeBackendResponse(raw)
	if err != nil {
		return fmt.Errorf("backend returned %s", status)
	}
	switch {
	case res.Error != nil && *res.Error != "":
		return fmt.Errorf("backend returned %s: %s", status, *res.Error)
	case res.Detail != nil && *res.Detail != "":
		return fmt.Errorf("backend returned %s: %s", status, *res.Detail)
	}
	return fmt.Errorf("backend returned %s", status)
}

func (b Backend) observe(ctx context.Context, span trace.Span, op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	attrs := metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	)
	b.requests.Add(ctx, 1, attrs)
	b.duration.Record(ctx, time.Since(start).Seconds(), attrs)
}

// trimAnswer drops everything up to and including the last marker occurrence. The backend echoes its
// prompt scaffold before the answer; an answer that legitimately quotes the marker loses its head too.
func trimAnswer(text, marker string) string {
	if marker == "" {
		return text
	}
	idx := strings.LastIndex(text, marker)
	if idx == -1 {
		return text
	}
	return strings.TrimSpace(text[idx+len(marker):])
}
