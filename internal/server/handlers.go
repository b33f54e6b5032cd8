package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/goliatone/go-pipeform/pkg/definition"
	"github.com/goliatone/go-pipeform/pkg/orchestrator"
	pkgopenapi "github.com/goliatone/go-pipeform/pkg/openapi"
	"github.com/goliatone/go-pipeform/pkg/pipeline"
	"github.com/goliatone/go-pipeform/pkg/reference"
	"github.com/goliatone/go-pipeform/pkg/render"
	"github.com/goliatone/go-pipeform/pkg/validation"
	"github.com/goliatone/go-pipeform/pkg/visibility"
)

const maxBody = 4 << 20

// FormRequest is the body accepted by the form and validate routes.
type FormRequest struct {
	Configuration map[string]any    `json:"configuration,omitempty"`
	Selected      map[string]string `json:"selected,omitempty"`
	Resource      bool              `json:"resource,omitempty"`
	// Hidden names visibility predicates, e.g. "credentials".
	Hidden []string `json:"hidden,omitempty"`
	NodeID string   `json:"node_id,omitempty"`
}

// ValidationResponse reports the outcome of validating a configuration.
type ValidationResponse struct {
	Valid      bool                  `json:"valid"`
	Selected   map[string]string     `json:"selected,omitempty"`
	Issues     validation.Issues     `json:"issues,omitempty"`
	Errors     map[string][]string   `json:"errors,omitempty"`
	FormErrors []string              `json:"form_errors,omitempty"`
	References []reference.Reference `json:"references,omitempty"`
}

// DefinitionSummary is one entry of the definition listing.
type DefinitionSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Title  string `json:"title"`
	Type   string `json:"type,omitempty"`
	Vendor string `json:"vendor,omitempty"`
}

// ReferencesRequest asks for the references held by one configuration.
type ReferencesRequest struct {
	NodeID        string         `json:"node_id"`
	Configuration map[string]any `json:"configuration"`
	// Nodes lists the components on the pipeline; edges are only composed
	// towards them.
	Nodes []string `json:"nodes,omitempty"`
}

// ReferencesResponse carries extracted references and the edges they imply.
type ReferencesResponse struct {
	References []reference.Reference `json:"references"`
	Edges      []reference.Edge      `json:"edges"`
}

// TriggerRequest is the body of the trigger form route.
type TriggerRequest struct {
	Document    json.RawMessage   `json:"document"`
	OperationID string            `json:"operation_id,omitempty"`
	Values      map[string]any    `json:"values,omitempty"`
	Selected    map[string]string `json:"selected,omitempty"`
}

func Health(orch *orchestrator.Orchestrator) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":      "ok",
			"definitions": orch.Catalogue().Len(),
		})
	}
}

func ListDefinitions(orch *orchestrator.Orchestrator) echo.HandlerFunc {
	return func(c echo.Context) error {
		defs := orch.Catalogue().List(c.QueryParam("type"))
		out := make([]DefinitionSummary, 0, len(defs))
		for _, def := range defs {
			out = append(out, DefinitionSummary{
				ID:     def.ID,
				Name:   def.Name,
				Title:  def.Title,
				Type:   def.Type,
				Vendor: def.Vendor,
			})
		}
		return c.JSON(http.StatusOK, out)
	}
}

func GetDefinition(orch *orchestrator.Orchestrator) echo.HandlerFunc {
	return func(c echo.Context) error {
		def, err := orch.Catalogue().Get(c.Param("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, def)
	}
}

// RenderForm derives the form of a definition and renders it in the format
// named by the "format" query parameter (json by default).
func RenderForm(orch *orchestrator.Orchestrator, renderers *render.Registry, metrics *Metrics) echo.HandlerFunc {
	return func(c echo.Context) error {
		format := c.QueryParam("format")
		if format == "" {
			format = "json"
		}
		renderer, err := renderers.Get(format)
		if err != nil {
			return httpError(err)
		}

		body, err := decodeFormRequest(c)
		if err != nil {
			return err
		}
		req, err := body.request(c.Param("id"))
		if err != nil {
			return err
		}
		result, err := orch.Derive(c.Request().Context(), req)
		metrics.derived(result.Issues, err)
		if err != nil {
			return httpError(err)
		}

		form := render.FormFromDefinition(*result.Definition, result.Tree)
		opts := render.RenderOptions{Values: body.Configuration}
		if len(result.Issues) > 0 {
			opts.Errors = render.MapIssues(result.Tree, result.Issues).Fields
		}
		out, err := renderer.Render(c.Request().Context(), form, opts)
		if err != nil {
			return err
		}
		return c.Blob(http.StatusOK, renderer.ContentType(), out)
	}
}

func ValidateConfiguration(orch *orchestrator.Orchestrator, metrics *Metrics) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := decodeFormRequest(c)
		if err != nil {
			return err
		}
		if body.Configuration == nil {
			body.Configuration = map[string]any{}
		}
		req, err := body.request(c.Param("id"))
		if err != nil {
			return err
		}
		result, err := orch.Derive(c.Request().Context(), req)
		metrics.derived(result.Issues, err)
		if err != nil {
			return httpError(err)
		}

		mapping := render.MapIssues(result.Tree, result.Issues)
		return c.JSON(http.StatusOK, ValidationResponse{
			Valid:      result.Valid(),
			Selected:   result.Selected,
			Issues:     result.Issues,
			Errors:     mapping.Fields,
			FormErrors: mapping.Form,
			References: result.References,
		})
	}
}

func ExtractReferences() echo.HandlerFunc {
	return func(c echo.Context) error {
		var body ReferencesRequest
		if err := decodeJSON(c, &body); err != nil {
			return err
		}
		if strings.TrimSpace(body.NodeID) == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "node_id is required")
		}
		refs := reference.FromConfiguration(body.Configuration, body.NodeID)
		resp := ReferencesResponse{
			References: refs,
			Edges:      reference.ComposeEdges(refs, body.Nodes),
		}
		if resp.References == nil {
			resp.References = []reference.Reference{}
		}
		if resp.Edges == nil {
			resp.Edges = []reference.Edge{}
		}
		return c.JSON(http.StatusOK, resp)
	}
}

// RecipeEdges loads a JSON or YAML recipe into a fresh session and returns
// the edges its references imply.
func RecipeEdges(logger *slog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBody))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		recipe, err := pipeline.DecodeRecipe(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		session := pipeline.NewSession(pipeline.WithLogger(logger))
		if err := session.LoadRecipe(recipe); err != nil {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		edges := session.Edges()
		if edges == nil {
			edges = []reference.Edge{}
		}
		return c.JSON(http.StatusOK, ReferencesResponse{
			References: session.References(),
			Edges:      edges,
		})
	}
}

// TriggerForm derives the trigger form of a pipeline from its OpenAPI
// document.
func TriggerForm(orch *orchestrator.Orchestrator, renderers *render.Registry, metrics *Metrics) echo.HandlerFunc {
	return func(c echo.Context) error {
		format := c.QueryParam("format")
		if format == "" {
			format = "json"
		}
		renderer, err := renderers.Get(format)
		if err != nil {
			return httpError(err)
		}

		var body TriggerRequest
		if err := decodeJSON(c, &body); err != nil {
			return err
		}
		if len(body.Document) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "document is required")
		}
		result, op, err := orch.DeriveTrigger(c.Request().Context(), orchestrator.TriggerRequest{
			Document:    body.Document,
			OperationID: body.OperationID,
			Values:      body.Values,
			Selected:    body.Selected,
		})
		metrics.derived(result.Issues, err)
		if err != nil {
			if mapped := httpError(err); mapped != err {
				return mapped
			}
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error()).SetInternal(err)
		}

		form := render.Form{ID: op.ID, Title: op.Summary, Tree: result.Tree}
		opts := render.RenderOptions{Values: body.Values}
		if len(result.Issues) > 0 {
			opts.Errors = render.MapIssues(result.Tree, result.Issues).Fields
		}
		out, err := renderer.Render(c.Request().Context(), form, opts)
		if err != nil {
			return err
		}
		return c.Blob(http.StatusOK, renderer.ContentType(), out)
	}
}

func (r FormRequest) request(id string) (orchestrator.Request, error) {
	req := orchestrator.Request{
		Definition:    id,
		Resource:      r.Resource,
		Configuration: r.Configuration,
		Selected:      r.Selected,
		NodeID:        r.NodeID,
	}
	if len(r.Hidden) > 0 {
		hidden, unknown := visibility.Named(r.Hidden...)
		if len(unknown) > 0 {
			return req, echo.NewHTTPError(http.StatusBadRequest,
				fmt.Sprintf("unknown visibility predicate: %s", strings.Join(unknown, ", ")))
		}
		req.Hidden = hidden
	}
	return req, nil
}

func decodeFormRequest(c echo.Context) (FormRequest, error) {
	var body FormRequest
	if c.Request().ContentLength == 0 {
		return body, nil
	}
	if err := decodeJSON(c, &body); err != nil {
		return body, err
	}
	return body, nil
}

func decodeJSON(c echo.Context, dst any) error {
	dec := json.NewDecoder(io.LimitReader(c.Request().Body, maxBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("malformed request body: %v", err))
	}
	return nil
}

// httpError maps domain errors onto status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, definition.ErrNotFound),
		errors.Is(err, pkgopenapi.ErrOperationNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error()).SetInternal(err)
	case errors.Is(err, render.ErrUnknownRenderer):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	case errors.Is(err, definition.ErrMissingSpecification),
		errors.Is(err, pkgopenapi.ErrNoOperations),
		errors.Is(err, pkgopenapi.ErrNoRequestSchema):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error()).SetInternal(err)
	default:
		return err
	}
}
