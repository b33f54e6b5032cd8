package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-pipeform/pkg/definition"
	"github.com/goliatone/go-pipeform/pkg/orchestrator"
	"github.com/goliatone/go-pipeform/pkg/reference"
	"github.com/goliatone/go-pipeform/pkg/testsupport"
	"github.com/goliatone/go-pipeform/pkg/validation"
)

const triggerDocument = `{
  "openapi": "3.0.3",
  "info": {"title": "p", "version": "v1"},
  "paths": {
    "/v1beta/pipelines/p/trigger": {
      "post": {
        "operationId": "Trigger",
        "summary": "Trigger p",
        "requestBody": {
          "content": {
            "application/json": {
              "schema": {
                "type": "object",
                "properties": {
                  "inputs": {
                    "type": "array",
                    "items": {
                      "type": "object",
                      "required": ["prompt"],
                      "properties": {"prompt": {"type": "string"}}
                    }
                  }
                }
              }
            }
          }
        },
        "responses": {"200": {"description": "OK"}}
      }
    }
  }
}`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	catalogue := testsupport.MustCatalogue(t, testsupport.MustDefinitions(t, "testdata/definitions.json")...)
	return New(orchestrator.New(orchestrator.WithCatalogue(catalogue)))
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthAndDefinitions(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","definitions":1}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/definitions/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var summaries []DefinitionSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "ai-test", summaries[0].ID)

	rec = do(t, s, http.MethodGet, "/definitions?type=data", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/definitions/ai-test", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var def definition.Definition
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &def))
	assert.Equal(t, "connector-definitions/ai-test", def.Name)

	rec = do(t, s, http.MethodGet, "/definitions/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var problem map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "not_found", problem["type"])
	assert.Equal(t, float64(http.StatusNotFound), problem["status"])
	assert.Equal(t, "/definitions/missing", problem["instance"])
	assert.Contains(t, problem["detail"], "missing")
}

func TestValidateConfiguration(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/definitions/ai-test/validate",
		`{"configuration":{"input":{"task":"TASK_IMAGE","image":"plain"}},"node_id":"ai_0"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ValidationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Valid)
	assert.Equal(t, map[string]string{"input.task": "TASK_IMAGE"}, resp.Selected)
	assert.Equal(t, validation.Issues{{
		Path:    "input.image",
		Code:    validation.CodeReferenceOnly,
		Message: validation.MessageReferenceOnly,
	}}, resp.Issues)

	rec = do(t, s, http.MethodPost, "/definitions/ai-test/validate",
		`{"configuration":{"input":{"task":"TASK_IMAGE","image":"${start.image}"}},"node_id":"ai_0"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = ValidationResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
	assert.Equal(t, []reference.Reference{{
		NodeID:           "ai_0",
		ReferencedNodeID: "start",
		Expression:       "start.image",
		Path:             "input.image",
	}}, resp.References)
}

func TestValidateConfiguration_Rejections(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/definitions/ai-test/validate", `{"hidden":["bogus"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/definitions/ai-test/validate", `{"configuration":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/definitions/ai-test/validate", `{"resource":true}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, s, http.MethodPost, "/definitions/nope/validate", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRenderForm(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/definitions/ai-test/form", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "ai-test", doc["id"])
	assert.Contains(t, doc, "tree")
	assert.NotContains(t, doc, "errors")

	rec = do(t, s, http.MethodPost, "/definitions/ai-test/form?format=markdown", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "# AI Test")
	assert.Contains(t, rec.Body.String(), "`input.task` = `TASK_IMAGE`")

	rec = do(t, s, http.MethodPost, "/definitions/ai-test/form?format=html", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtractReferences(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/references",
		`{"node_id":"ai_0","configuration":{"a":"${start.x} and ${ghost.y}"},"nodes":["start","ai_0"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ReferencesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.References, 2)
	assert.Equal(t, []reference.Edge{{ID: "start->ai_0", Source: "start", Target: "ai_0"}}, resp.Edges)

	rec = do(t, s, http.MethodPost, "/references", `{"configuration":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecipeEdges(t *testing.T) {
	s := newTestServer(t)
	recipe := `version: v1alpha
components:
  - id: start
    type: start
  - id: ai_0
    definition_name: connector-definitions/ai-test
    configuration:
      input:
        prompt: "${start.prompt}"
`
	rec := do(t, s, http.MethodPost, "/recipes/edges", recipe)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ReferencesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []reference.Edge{{ID: "start->ai_0", Source: "start", Target: "ai_0"}}, resp.Edges)

	rec = do(t, s, http.MethodPost, "/recipes/edges", "components:\n  - id: a\n  - id: a\n")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestTriggerForm(t *testing.T) {
	s := newTestServer(t)

	body, err := json.Marshal(map[string]any{
		"document": json.RawMessage(triggerDocument),
		"values":   map[string]any{},
	})
	require.NoError(t, err)

	rec := do(t, s, http.MethodPost, "/triggers/form", string(body))
	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "Trigger", doc["id"])
	assert.Equal(t, "Trigger p", doc["title"])

	body, err = json.Marshal(map[string]any{
		"document":     json.RawMessage(triggerDocument),
		"operation_id": "Missing",
	})
	require.NoError(t, err)
	rec = do(t, s, http.MethodPost, "/triggers/form", string(body))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/triggers/form", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t)

	do(t, s, http.MethodPost, "/definitions/ai-test/validate", `{"configuration":{"input":{"task":"TASK_IMAGE","image":"plain"}}}`)
	do(t, s, http.MethodGet, "/definitions/missing", "")

	rec := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := rec.Body.String()
	assert.Contains(t, out, `pipeform_derivations_total{outcome="invalid"} 1`)
	assert.Contains(t, out, `pipeform_validation_issues_total{code="`+string(validation.CodeReferenceOnly)+`"} 1`)
	assert.Contains(t, out, `pipeform_http_requests_total{method="GET",route="/definitions/:id",status="404"} 1`)
}
