package upstream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rfonseca85/mcp-generator/tool"
)

func strSchema() *tool.Schema { return &tool.Schema{Kind: tool.KindString} }

func TestCallSuccess(t *testing.T) {
	var gotPath, gotQuery, gotBody, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotHeader = r.Header.Get("X-Tenant")
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": "42"}`))
	}))
	defer srv.Close()

	spec := &HandlerSpec{
		ToolName:     "createPet",
		Method:       http.MethodPost,
		PathTemplate: "/pets/{petId}/toys",
		BaseURL:      srv.URL,
		Parameters: []tool.Parameter{
			{Name: "petId", Location: tool.InPath, Required: true, Schema: strSchema()},
			{Name: "verbose", Location: tool.InQuery, Schema: &tool.Schema{Kind: tool.KindBoolean}},
			{Name: "X-Tenant", Location: tool.InHeader, Schema: strSchema()},
			{Name: "name", Location: tool.InBody, Required: true, Schema: strSchema()},
			{Name: "size", Location: tool.InBody, Schema: &tool.Schema{Kind: tool.KindInteger}},
		},
	}

	c := NewCaller(zap.NewNop())
	result, err := c.Call(context.Background(), spec, map[string]any{
		"petId":    "a/b", // must not split the path
		"verbose":  true,
		"X-Tenant": "acme",
		"name":     "ball",
		"size":     float64(3),
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeSuccess, result.Outcome)
	assert.Equal(t, http.StatusCreated, result.Status)
	assert.JSONEq(t, `{"id": "42"}`, string(result.Body))
	assert.False(t, result.IsError())

	assert.Equal(t, "/pets/a%2Fb/toys", gotPath)
	assert.Equal(t, "verbose=true", gotQuery)
	assert.Equal(t, "acme", gotHeader)
	assert.JSONEq(t, `{"name": "ball", "size": 3}`, gotBody)
}

func TestCallOmitsAbsentOptionalArguments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		data, _ := io.ReadAll(r.Body)
		assert.Empty(t, data)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	spec := &HandlerSpec{
		ToolName:     "listPets",
		Method:       http.MethodGet,
		PathTemplate: "/pets",
		BaseURL:      srv.URL,
		Parameters: []tool.Parameter{
			{Name: "limit", Location: tool.InQuery, Schema: &tool.Schema{Kind: tool.KindInteger}},
		},
	}

	c := NewCaller(zap.NewNop())
	result, err := c.Call(context.Background(), spec, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, result.Outcome)
}

func TestCallPassthroughBody(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	// A single non-object "body" parameter is sent as the payload itself,
	// not wrapped in an envelope.
	spec := &HandlerSpec{
		ToolName:     "postEvent",
		Method:       http.MethodPost,
		PathTemplate: "/events",
		BaseURL:      srv.URL,
		Parameters: []tool.Parameter{
			{Name: "body", Location: tool.InBody, Required: true, Schema: &tool.Schema{
				Kind: tool.KindUnion,
				Variants: []*tool.Schema{
					{Kind: tool.KindObject, Properties: map[string]*tool.Schema{"click": strSchema()}},
				},
			}},
		},
	}

	c := NewCaller(zap.NewNop())
	_, err := c.Call(context.Background(), spec, map[string]any{
		"body": map[string]any{"click": "button-1"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"click": "button-1"}`, gotBody)
}

func TestCallAPIErrorExcerpt(t *testing.T) {
	big := strings.Repeat("x", 10_000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(big))
	}))
	defer srv.Close()

	spec := &HandlerSpec{
		ToolName:     "listPets",
		Method:       http.MethodGet,
		PathTemplate: "/pets",
		BaseURL:      srv.URL,
	}

	c := NewCaller(zap.NewNop())
	result, err := c.Call(context.Background(), spec, nil)
	require.NoError(t, err)

	assert.Equal(t, OutcomeAPIError, result.Outcome)
	assert.Equal(t, http.StatusUnprocessableEntity, result.Status)
	assert.True(t, result.IsError())
	// The body is an excerpt, never the whole payload.
	assert.Less(t, len(result.Body), len(big))
}

func TestCallUnreachable(t *testing.T) {
	spec := &HandlerSpec{
		ToolName:     "listPets",
		Method:       http.MethodGet,
		PathTemplate: "/pets",
		BaseURL:      "http://127.0.0.1:1",
	}

	c := NewCaller(zap.NewNop())
	result, err := c.Call(context.Background(), spec, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnreachable, result.Outcome)
	assert.NotEmpty(t, result.Message)
}

func TestCallTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer func() {
		close(release)
		srv.Close()
	}()

	spec := &HandlerSpec{
		ToolName:     "slow",
		Method:       http.MethodGet,
		PathTemplate: "/slow",
		BaseURL:      srv.URL,
	}

	c := NewCaller(zap.NewNop(), WithTimeout(50*time.Millisecond))
	start := time.Now()
	result, err := c.Call(context.Background(), spec, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimeout, result.Outcome)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCallMissingPathArgument(t *testing.T) {
	spec := &HandlerSpec{
		ToolName:     "getPet",
		Method:       http.MethodGet,
		PathTemplate: "/pets/{petId}",
		BaseURL:      "http://example.invalid",
		Parameters: []tool.Parameter{
			{Name: "petId", Location: tool.InPath, Required: true, Schema: strSchema()},
		},
	}

	c := NewCaller(zap.NewNop())
	_, err := c.Call(context.Background(), spec, map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "petId")
}

func TestHandlerSpecValidate(t *testing.T) {
	valid := &HandlerSpec{
		ToolName:     "getPet",
		Method:       http.MethodGet,
		PathTemplate: "/pets/{petId}",
		Parameters: []tool.Parameter{
			{Name: "petId", Location: tool.InPath, Required: true, Schema: strSchema()},
		},
	}
	require.NoError(t, valid.Validate())

	missing := &HandlerSpec{ToolName: "x", Method: "GET", PathTemplate: "/a/{b}"}
	err := missing.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "{b}")
}

func TestRedact(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{
			"Get https://x/y?api_key=abc123: dial failed",
			"Get https://x/y?api_key=[REDACTED]: dial failed",
		},
		{
			"header Authorization: Bearer sk-abcdef1234567890 rejected",
			"header Authorization: [REDACTED] [REDACTED] rejected",
		},
		{
			"no secrets here",
			"no secrets here",
		},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Redact(tc.in), tc.in)
	}
}

func TestRedactHeaderValue(t *testing.T) {
	assert.Equal(t, "[REDACTED]", RedactHeaderValue("authorization", "Bearer tok"))
	assert.Equal(t, "[REDACTED]", RedactHeaderValue("X-Api-Key", "k"))
	assert.Equal(t, "acme", RedactHeaderValue("X-Tenant", "acme"))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "3", formatValue(float64(3)))
	assert.Equal(t, "3.5", formatValue(3.5))
	assert.Equal(t, "true", formatValue(true))
	assert.Equal(t, "s", formatValue("s"))
	assert.Equal(t, `["a","b"]`, formatValue([]string{"a", "b"}))
}
