package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rfonseca85/mcp-generator/compile"
)

const petstoreJSON = `{
  "openapi": "3.0.0",
  "info": {"title": "Petstore", "version": "1.0.0"},
  "servers": [{"url": "https://api.example.com/v1"}],
  "paths": {
    "/pets": {
      "get": {
        "operationId": "listPets",
        "summary": "List pets",
        "responses": {"200": {"description": "ok"}}
      },
      "post": {
        "operationId": "createPet",
        "requestBody": {
          "required": true,
          "content": {"application/json": {"schema": {
            "type": "object",
            "properties": {"name": {"type": "string"}},
            "required": ["name"]
          }}}
        },
        "responses": {"201": {"description": "created"}}
      }
    }
  }
}`

func newTestGenerateHandler(t *testing.T) *GenerateHandler {
	t.Helper()
	return NewGenerateHandler(GenerateOptions{
		OutputDir: t.TempDir(),
		Author:    "tester",
	}, nil, zap.NewNop())
}

func postGenerate(t *testing.T, h *GenerateHandler, req GenerateRequest) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	payload, err := json.Marshal(req)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/generate", bytes.NewReader(payload))
	h.HandleGenerate(rec, r)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestGenerateInlineDocument(t *testing.T) {
	h := newTestGenerateHandler(t)
	rec, resp := postGenerate(t, h, GenerateRequest{Document: petstoreJSON})

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var gen GenerateResponse
	require.NoError(t, json.Unmarshal(data, &gen))

	require.NotNil(t, gen.Manifest)
	assert.Equal(t, "Petstore", gen.Manifest.Name)
	assert.Equal(t, 2, gen.Manifest.ToolsCount)
	assert.Equal(t, "https://api.example.com/v1", gen.Manifest.BaseURL)
	assert.Empty(t, gen.OutputDir)
}

func TestGenerateWritesProject(t *testing.T) {
	dir := t.TempDir()
	h := NewGenerateHandler(GenerateOptions{OutputDir: dir}, nil, zap.NewNop())

	rec, resp := postGenerate(t, h, GenerateRequest{Document: petstoreJSON, Write: true})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)

	data, _ := json.Marshal(resp.Data)
	var gen GenerateResponse
	require.NoError(t, json.Unmarshal(data, &gen))
	require.NotEmpty(t, gen.OutputDir)

	for _, name := range []string{compile.ManifestFile, "main.go", "go.mod", "README.md"} {
		_, err := os.Stat(filepath.Join(gen.OutputDir, name))
		assert.NoError(t, err, name)
	}
}

func TestGenerateRequiresExactlyOneInput(t *testing.T) {
	h := newTestGenerateHandler(t)

	rec, resp := postGenerate(t, h, GenerateRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidRequest, resp.Error.Code)

	rec, resp = postGenerate(t, h, GenerateRequest{Source: "https://example.com/spec.json", Document: petstoreJSON})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
}

func TestGenerateMalformedDocument(t *testing.T) {
	h := newTestGenerateHandler(t)

	rec, resp := postGenerate(t, h, GenerateRequest{Document: "{not valid"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeLoadFailed, resp.Error.Code)
}

func TestGenerateNoToolsFails(t *testing.T) {
	h := newTestGenerateHandler(t)
	empty := `{"openapi":"3.0.0","info":{"title":"Empty","version":"1.0.0"},"servers":[{"url":"https://x"}],"paths":{}}`

	rec, resp := postGenerate(t, h, GenerateRequest{Document: empty})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeCompileFailed, resp.Error.Code)
}

func TestGenerateRejectsGet(t *testing.T) {
	h := newTestGenerateHandler(t)
	rec := httptest.NewRecorder()
	h.HandleGenerate(rec, httptest.NewRequest(http.MethodGet, "/api/v1/generate", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestProjectDirName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Petstore API", "petstore-api"},
		{"my_server", "my_server"},
		{"///", "generated-mcp-server"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, projectDirName(tt.in), tt.in)
	}
}
