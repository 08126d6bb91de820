package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rfonseca85/mcp-generator/internal/tlsutil"
	"github.com/rfonseca85/mcp-generator/tool"
)

// Outcome classifies a finished call. Every call lands in exactly one class.
type Outcome string

const (
	// OutcomeSuccess is any 2xx response.
	OutcomeSuccess Outcome = "success"
	// OutcomeAPIError is a completed HTTP exchange with a non-2xx status.
	OutcomeAPIError Outcome = "api_error"
	// OutcomeTimeout means the bounded call deadline elapsed.
	OutcomeTimeout Outcome = "timeout"
	// OutcomeUnreachable is any transport failure before a response arrived.
	OutcomeUnreachable Outcome = "unreachable"
)

// Result carries the classified outcome of one upstream call. Body holds the
// response payload, truncated to the caller's excerpt limit for non-2xx
// responses.
type Result struct {
	Outcome  Outcome       `json:"outcome"`
	Status   int           `json:"status,omitempty"`
	Body     []byte        `json:"body,omitempty"`
	Duration time.Duration `json:"duration"`
	// Message describes transport failures; redacted of credentials.
	Message string `json:"message,omitempty"`
}

// IsError reports whether the call failed in any class.
func (r *Result) IsError() bool { return r.Outcome != OutcomeSuccess }

// Caller issues one HTTP request per tool call. It never retries: surfacing
// the first failure keeps tool behavior predictable for the agent driving it.
type Caller struct {
	client       *http.Client
	timeout      time.Duration
	maxBody      int64
	errorExcerpt int
	logger       *zap.Logger
}

// Option configures a Caller.
type Option func(*Caller)

// WithTimeout bounds each call. Defaults to 30s.
func WithTimeout(d time.Duration) Option {
	return func(c *Caller) { c.timeout = d }
}

// WithMaxBodyBytes caps how much of a success body is read. Defaults to 4MiB.
func WithMaxBodyBytes(n int64) Option {
	return func(c *Caller) { c.maxBody = n }
}

// NewCaller creates a caller with hardened TLS defaults.
func NewCaller(logger *zap.Logger, opts ...Option) *Caller {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Caller{
		timeout:      30 * time.Second,
		maxBody:      4 << 20,
		errorExcerpt: 2048,
		logger:       logger.With(zap.String("component", "upstream_caller")),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.client = tlsutil.SecureHTTPClient(c.timeout)
	return c
}

// Call executes the handler spec with the given validated arguments. A
// non-nil error means the request could not be built at all; every outcome
// of an attempted request is reported through Result.
func (c *Caller) Call(ctx context.Context, spec *HandlerSpec, args map[string]any) (*Result, error) {
	req, err := c.buildRequest(ctx, spec, args)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req = req.WithContext(ctx)

	start := time.Now()
	resp, err := c.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		result := &Result{Duration: elapsed, Message: Redact(err.Error())}
		if isTimeout(ctx, err) {
			result.Outcome = OutcomeTimeout
		} else {
			result.Outcome = OutcomeUnreachable
		}
		c.logger.Warn("upstream call failed",
			zap.String("tool", spec.ToolName),
			zap.String("outcome", string(result.Outcome)),
			zap.Duration("duration", elapsed),
			zap.String("error", result.Message),
		)
		return result, nil
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if readErr != nil {
		return &Result{
			Outcome:  OutcomeUnreachable,
			Status:   resp.StatusCode,
			Duration: elapsed,
			Message:  Redact(readErr.Error()),
		}, nil
	}

	result := &Result{Status: resp.StatusCode, Duration: elapsed}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		result.Outcome = OutcomeSuccess
		result.Body = body
	} else {
		result.Outcome = OutcomeAPIError
		result.Body = excerpt(body, c.errorExcerpt)
	}

	c.logger.Debug("upstream call finished",
		zap.String("tool", spec.ToolName),
		zap.Int("status", resp.StatusCode),
		zap.String("outcome", string(result.Outcome)),
		zap.Duration("duration", elapsed),
	)
	return result, nil
}

func (c *Caller) buildRequest(ctx context.Context, spec *HandlerSpec, args map[string]any) (*http.Request, error) {
	path, err := expandPath(spec.PathTemplate, spec.Parameters, args)
	if err != nil {
		return nil, err
	}

	fullURL := strings.TrimRight(spec.BaseURL, "/") + path

	query := url.Values{}
	headers := http.Header{}
	bodyParams := map[string]any{}
	var passthroughBody any
	hasPassthrough := false

	for _, p := range spec.Parameters {
		value, present := args[p.Name]
		if !present {
			continue
		}
		switch p.Location {
		case tool.InQuery:
			appendQuery(query, p.Name, value)
		case tool.InHeader:
			headers.Set(p.Name, formatValue(value))
		case tool.InBody:
			if p.Name == "body" && (p.Schema == nil || p.Schema.Kind != tool.KindObject) {
				// A single opaque body argument is the payload itself.
				passthroughBody = value
				hasPassthrough = true
			} else {
				bodyParams[p.Name] = value
			}
		case tool.InPath:
			// Already substituted into the path.
		}
	}

	var bodyReader io.Reader
	switch {
	case hasPassthrough:
		payload, err := json.Marshal(passthroughBody)
		if err != nil {
			return nil, fmt.Errorf("tool %q: marshal body: %w", spec.ToolName, err)
		}
		bodyReader = bytes.NewReader(payload)
	case len(bodyParams) > 0:
		payload, err := json.Marshal(bodyParams)
		if err != nil {
			return nil, fmt.Errorf("tool %q: marshal body: %w", spec.ToolName, err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, spec.Method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("tool %q: build request: %w", spec.ToolName, err)
	}
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}
	for name, values := range headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// expandPath substitutes {name} placeholders segment by segment so that a
// value containing "/" cannot smuggle extra path segments in.
func expandPath(template string, params []tool.Parameter, args map[string]any) (string, error) {
	pathParams := make(map[string]struct{})
	for _, p := range params {
		if p.Location == tool.InPath {
			pathParams[p.Name] = struct{}{}
		}
	}

	segments := strings.Split(template, "/")
	for i, seg := range segments {
		if !strings.HasPrefix(seg, "{") || !strings.HasSuffix(seg, "}") || len(seg) <= 2 {
			continue
		}
		name := seg[1 : len(seg)-1]
		if _, ok := pathParams[name]; !ok {
			return "", fmt.Errorf("path placeholder {%s} has no parameter", name)
		}
		value, present := args[name]
		if !present {
			return "", fmt.Errorf("missing value for path parameter %q", name)
		}
		segments[i] = url.PathEscape(formatValue(value))
	}
	return strings.Join(segments, "/"), nil
}

func appendQuery(query url.Values, name string, value any) {
	if list, ok := value.([]any); ok {
		for _, item := range list {
			query.Add(name, formatValue(item))
		}
		return
	}
	query.Add(name, formatValue(value))
}

// formatValue renders an argument for a URL or header position. Composite
// values fall back to their JSON form.
func formatValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		// JSON numbers decode to float64; keep integers unsuffixed.
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case nil:
		return ""
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func excerpt(body []byte, limit int) []byte {
	if len(body) <= limit {
		return body
	}
	return body[:limit]
}
