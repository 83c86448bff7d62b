package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"finiate/internal/domain"
	"finiate/internal/engine"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"agenda 0198f8a2 not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Finiate API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Finiate API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerStatus(group, cfg.Engine)
	registerAgendas(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ve *engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
	var nfe *engine.NotFoundError
	if errors.As(err, &nfe) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	var ite *engine.InvalidTransitionError
	if errors.As(err, &ite) {
		return newAPIError(http.StatusConflict, "invalid_transition", err.Error(), map[string]any{
			"from": string(ite.From),
			"to":   string(ite.To),
		})
	}
	var dce *domain.DataCorruptionError
	if errors.As(err, &dce) {
		return newAPIError(http.StatusInternalServerError, "data_corruption", err.Error(), map[string]any{"field": dce.Field})
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerStatus(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Most urgent ongoing agendas",
	}, func(ctx context.Context, input *struct {
		Amount int `query:"amount" default:"1" minimum:"1" maximum:"5"`
	}) (*struct {
		Body []StatusEntryResponse `json:"body"`
	}, error) {
		entries, err := e.Status(ctx, input.Amount)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []StatusEntryResponse `json:"body"`
		}{Body: mapStatusEntries(entries)}, nil
	})
}

func registerAgendas(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-agendas",
		Method:      http.MethodGet,
		Path:        "/agendas",
		Summary:     "List agendas",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status"`
	}) (*struct {
		Body []AgendaResponse `json:"body"`
	}, error) {
		var filter *domain.Status
		if input.Status != "" {
			st, err := domain.ParseStatus(input.Status)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "unknown status "+input.Status, nil)
			}
			filter = &st
		}
		items, err := e.Store.GetAgendasByStatus(ctx, filter)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []AgendaResponse `json:"body"`
		}{Body: mapAgendas(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-agenda",
		Method:      http.MethodGet,
		Path:        "/agendas/{agenda_id}",
		Summary:     "Get agenda",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AgendaID string `path:"agenda_id"`
	}) (*struct {
		Body AgendaResponse `json:"body"`
	}, error) {
		a, err := e.Store.GetAgendaByID(ctx, input.AgendaID)
		if err != nil {
			return nil, handleError(err)
		}
		if a == nil {
			return nil, handleError(&engine.NotFoundError{ID: input.AgendaID})
		}
		return &struct {
			Body AgendaResponse `json:"body"`
		}{Body: agendaResponse(*a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-agenda-logs",
		Method:      http.MethodGet,
		Path:        "/agendas/{agenda_id}/logs",
		Summary:     "List an agenda's logs",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AgendaID string `path:"agenda_id"`
	}) (*struct {
		Body []LogResponse `json:"body"`
	}, error) {
		a, err := e.Store.GetAgendaByID(ctx, input.AgendaID)
		if err != nil {
			return nil, handleError(err)
		}
		if a == nil {
			return nil, handleError(&engine.NotFoundError{ID: input.AgendaID})
		}
		logs, err := e.Store.GetLogsByAgendaID(ctx, input.AgendaID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []LogResponse `json:"body"`
		}{Body: mapLogs(logs)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "append-note",
		Method:        http.MethodPost,
		Path:          "/agendas/{agenda_id}/notes",
		Summary:       "Append a note to an agenda",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		AgendaID string `path:"agenda_id"`
		Body     AppendNoteRequest
	}) (*struct {
		Body LogResponse `json:"body"`
	}, error) {
		if _, authErr := subjectFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		l, err := e.AppendNoteByID(ctx, input.AgendaID, input.Body.Content)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LogResponse `json:"body"`
		}{Body: logResponse(l)}, nil
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}
