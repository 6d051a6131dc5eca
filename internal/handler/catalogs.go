package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/agent-console/internal/model"
	"github.com/capitalize-ai/agent-console/internal/query"
	"github.com/capitalize-ai/agent-console/pkg/logger"
)

// Collection is the query surface every catalog shares.
type Collection[T any] interface {
	Current() query.Snapshot[T]
	UpdateFilters(partial query.Filters)
	UpdateSort(sort query.Sort)
	UpdatePage(n int) error
	UpdatePageSize(n int) error
	Reset()
	Refresh()
}

// AgentCatalog is the agent collection plus its mutations.
type AgentCatalog interface {
	Collection[model.Agent]
	Get(ctx context.Context, id string) (model.Agent, error)
	Invoke(ctx context.Context, id string, input any) (json.RawMessage, error)
	Delete(ctx context.Context, id string) error
	Register(ctx context.Context, reg model.AgentRegistration) (model.Agent, error)
	ValidateName(ctx context.Context, name string) (bool, error)
}

// ServerCatalog is the MCP server collection plus its mutations.
type ServerCatalog interface {
	Collection[model.McpServer]
	Add(ctx context.Context, serverID string) error
}

// ToolCatalog is the tool collection plus its mutations.
type ToolCatalog interface {
	Collection[model.Tool]
	Get(ctx context.Context, id string) (model.Tool, error)
	Add(ctx context.Context, toolID, agentID string) error
	Configure(ctx context.Context, toolID string, cfg model.ToolConfiguration) (model.Tool, error)
	Remove(ctx context.Context, toolID, agentID string) error
}

// CatalogHandler handles the /catalogs endpoints.
type CatalogHandler struct {
	agents  AgentCatalog
	servers ServerCatalog
	tools   ToolCatalog
	logger  *logger.Logger
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(agents AgentCatalog, servers ServerCatalog, tools ToolCatalog, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{
		agents:  agents,
		servers: servers,
		tools:   tools,
		logger:  logger.OrGlobal(log),
	}
}

// Routes mounts the catalog endpoints on r.
func (h *CatalogHandler) Routes(r chi.Router) {
	r.Route("/agents", func(r chi.Router) {
		collectionRoutes[model.Agent](r, h.agents, h.fail)
		r.Post("/", h.RegisterAgent)
		r.Get("/validate-name", h.ValidateAgentName)
		r.Get("/{id}", h.GetAgent)
		r.Delete("/{id}", h.DeleteAgent)
		r.Post("/{id}/invoke", h.InvokeAgent)
	})
	r.Route("/servers", func(r chi.Router) {
		collectionRoutes[model.McpServer](r, h.servers, h.fail)
		r.Post("/{id}/add", h.AddServer)
	})
	r.Route("/tools", func(r chi.Router) {
		collectionRoutes[model.Tool](r, h.tools, h.fail)
		r.Get("/{id}", h.GetTool)
		r.Post("/{id}/add", h.AddTool)
		r.Put("/{id}/configure", h.ConfigureTool)
		r.Delete("/{id}/agents/{agentId}", h.RemoveTool)
	})
}

type sortBody struct {
	Field     string          `json:"field"`
	Direction query.Direction `json:"direction"`
}

type pageBody struct {
	Page     *int `json:"page"`
	PageSize *int `json:"pageSize"`
}

type collectionView[T any] struct {
	Filters    map[string]string `json:"filters"`
	Sort       *sortBody         `json:"sort,omitempty"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	Items      []T               `json:"items"`
	TotalItems int               `json:"totalItems"`
	TotalPages int               `json:"totalPages"`
	Pending    bool              `json:"pending"`
	Error      string            `json:"error,omitempty"`
}

func viewOf[T any](snap query.Snapshot[T]) collectionView[T] {
	v := collectionView[T]{
		Filters:  snap.Query.Filters,
		Page:     snap.Query.Page.Number,
		PageSize: snap.Query.Page.Size,
		Items:    []T{},
		Pending:  snap.Pending,
	}
	if v.Filters == nil {
		v.Filters = map[string]string{}
	}
	if snap.Query.Sort.Field != "" {
		v.Sort = &sortBody{Field: snap.Query.Sort.Field, Direction: snap.Query.Sort.Direction}
	}
	if snap.Page != nil {
		v.Items = snap.Page.Items
		v.TotalItems = snap.Page.TotalItems
		v.TotalPages = snap.Page.TotalPages
	}
	if snap.Err != nil {
		v.Error = snap.Err.Error()
	}
	return v
}

// collectionRoutes mounts the query endpoints of c. Edits are debounced, so
// they answer 202 with the view as it stands.
func collectionRoutes[T any](r chi.Router, c Collection[T], fail func(http.ResponseWriter, string, error)) {
	accepted := func(w http.ResponseWriter) {
		writeJSON(w, http.StatusAccepted, viewOf(c.Current()))
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, viewOf(c.Current()))
	})

	r.Put("/filters", func(w http.ResponseWriter, r *http.Request) {
		var filters query.Filters
		if err := json.NewDecoder(r.Body).Decode(&filters); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		c.UpdateFilters(filters)
		accepted(w)
	})

	r.Put("/sort", func(w http.ResponseWriter, r *http.Request) {
		var body sortBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.Direction != query.Ascending && body.Direction != query.Descending {
			writeError(w, http.StatusBadRequest, "direction must be ASC or DESC")
			return
		}
		c.UpdateSort(query.Sort{Field: body.Field, Direction: body.Direction})
		accepted(w)
	})

	r.Put("/page", func(w http.ResponseWriter, r *http.Request) {
		var body pageBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.Page == nil && body.PageSize == nil {
			writeError(w, http.StatusBadRequest, "page or pageSize is required")
			return
		}
		// a size change returns to page 1, so it goes first
		if body.PageSize != nil {
			if err := c.UpdatePageSize(*body.PageSize); err != nil {
				fail(w, "failed to change page size", err)
				return
			}
		}
		if body.Page != nil {
			if err := c.UpdatePage(*body.Page); err != nil {
				fail(w, "failed to change page", err)
				return
			}
		}
		accepted(w)
	})

	r.Post("/reset", func(w http.ResponseWriter, r *http.Request) {
		c.Reset()
		accepted(w)
	})

	r.Post("/refresh", func(w http.ResponseWriter, r *http.Request) {
		c.Refresh()
		accepted(w)
	})
}

// RegisterAgent handles POST /catalogs/agents
func (h *CatalogHandler) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	var reg model.AgentRegistration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	agent, err := h.agents.Register(r.Context(), reg)
	if err != nil {
		h.fail(w, "failed to register agent", err)
		return
	}
	writeJSON(w, http.StatusCreated, agent)
}

// ValidateAgentName handles GET /catalogs/agents/validate-name?name=
func (h *CatalogHandler) ValidateAgentName(w http.ResponseWriter, r *http.Request) {
	ok, err := h.agents.ValidateName(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		h.fail(w, "failed to validate agent name", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": ok})
}

// GetAgent handles GET /catalogs/agents/{id}
func (h *CatalogHandler) GetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := h.agents.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "failed to get agent", err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

// DeleteAgent handles DELETE /catalogs/agents/{id}
func (h *CatalogHandler) DeleteAgent(w http.ResponseWriter, r *http.Request) {
	if err := h.agents.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "failed to delete agent", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// InvokeAgent handles POST /catalogs/agents/{id}/invoke, passing the body through.
func (h *CatalogHandler) InvokeAgent(w http.ResponseWriter, r *http.Request) {
	var input json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	out, err := h.agents.Invoke(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		h.fail(w, "failed to invoke agent", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// AddServer handles POST /catalogs/servers/{id}/add
func (h *CatalogHandler) AddServer(w http.ResponseWriter, r *http.Request) {
	if err := h.servers.Add(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "failed to add server", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetTool handles GET /catalogs/tools/{id}
func (h *CatalogHandler) GetTool(w http.ResponseWriter, r *http.Request) {
	tool, err := h.tools.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "failed to get tool", err)
		return
	}
	writeJSON(w, http.StatusOK, tool)
}

type toolAgentBody struct {
	AgentID string `json:"agentId"`
}

// AddTool handles POST /catalogs/tools/{id}/add
func (h *CatalogHandler) AddTool(w http.ResponseWriter, r *http.Request) {
	var body toolAgentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.AgentID == "" {
		writeError(w, http.StatusBadRequest, "agentId is required")
		return
	}
	if err := h.tools.Add(r.Context(), chi.URLParam(r, "id"), body.AgentID); err != nil {
		h.fail(w, "failed to add tool", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ConfigureTool handles PUT /catalogs/tools/{id}/configure
func (h *CatalogHandler) ConfigureTool(w http.ResponseWriter, r *http.Request) {
	var cfg model.ToolConfiguration
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tool, err := h.tools.Configure(r.Context(), chi.URLParam(r, "id"), cfg)
	if err != nil {
		h.fail(w, "failed to configure tool", err)
		return
	}
	writeJSON(w, http.StatusOK, tool)
}

// RemoveTool handles DELETE /catalogs/tools/{id}/agents/{agentId}
func (h *CatalogHandler) RemoveTool(w http.ResponseWriter, r *http.Request) {
	if err := h.tools.Remove(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "agentId")); err != nil {
		h.fail(w, "failed to remove tool", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, zap.Error(err))
	}
	writeError(w, status, err.Error())
}
