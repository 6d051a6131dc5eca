// Package catalog binds the agent, MCP server and tool collections to query
// controllers and exposes their mutations.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/agent-console/internal/model"
	"github.com/capitalize-ai/agent-console/internal/query"
	"github.com/capitalize-ai/agent-console/pkg/logger"
)

// Collection names, used as controller names and metric labels.
const (
	AgentsName  = "agents"
	ServersName = "servers"
	ToolsName   = "tools"
)

// ErrInvalidRegistration is returned for incomplete agent registrations.
var ErrInvalidRegistration = errors.New("invalid agent registration")

// AgentDefaults is the initial and reset state of the agent catalog.
func AgentDefaults() query.State {
	return query.State{
		Filters: query.Filters{},
		Sort:    query.Sort{Field: "createdAt", Direction: query.Descending},
		Page:    query.PageRequest{Number: 1, Size: 10},
	}
}

// ServerDefaults is the initial and reset state of the MCP server catalog.
func ServerDefaults() query.State {
	return query.State{
		Filters: query.Filters{},
		Sort:    query.Sort{Field: "name", Direction: query.Ascending},
		Page:    query.PageRequest{Number: 1, Size: 6},
	}
}

// ToolDefaults is the initial and reset state of the tool catalog.
func ToolDefaults() query.State {
	return query.State{
		Filters: query.Filters{},
		Page:    query.PageRequest{Number: 1, Size: 20},
	}
}

// AgentAPI is the remote side of the agent catalog.
type AgentAPI interface {
	GetAgent(ctx context.Context, id string) (model.Agent, error)
	InvokeAgent(ctx context.Context, id string, input any) (json.RawMessage, error)
	DeleteAgent(ctx context.Context, id string) error
	RegisterAgent(ctx context.Context, reg model.AgentRegistration) (model.Agent, error)
	AgentNameAvailable(ctx context.Context, name string) (bool, error)
	ListIntegrations(ctx context.Context) ([]model.Integration, error)
}

// ServerAPI is the remote side of the MCP server catalog.
type ServerAPI interface {
	AddServer(ctx context.Context, serverID string) error
}

// ToolAPI is the remote side of the tool catalog.
type ToolAPI interface {
	GetTool(ctx context.Context, id string) (model.Tool, error)
	AddTool(ctx context.Context, toolID, agentID string) error
	ConfigureTool(ctx context.Context, toolID string, cfg model.ToolConfiguration) (model.Tool, error)
	RemoveTool(ctx context.Context, toolID, agentID string) error
}

// Agents is the agent catalog view.
type Agents struct {
	*query.Controller[model.Agent]
	api AgentAPI
	log *logger.Logger
}

// NewAgents creates the agent catalog.
func NewAgents(fetcher query.Fetcher[model.Agent], api AgentAPI, log *logger.Logger) *Agents {
	log = logger.OrGlobal(log)
	return &Agents{
		Controller: query.New(AgentsName, fetcher, query.Options{Defaults: AgentDefaults(), Logger: log}),
		api:        api,
		log:        log.Named("catalog"),
	}
}

// Get fetches one agent.
func (a *Agents) Get(ctx context.Context, id string) (model.Agent, error) {
	return a.api.GetAgent(ctx, id)
}

// Invoke runs an agent and returns its raw result.
func (a *Agents) Invoke(ctx context.Context, id string, input any) (json.RawMessage, error) {
	return a.api.InvokeAgent(ctx, id, input)
}

// Delete removes an agent and refreshes the catalog.
func (a *Agents) Delete(ctx context.Context, id string) error {
	if err := a.api.DeleteAgent(ctx, id); err != nil {
		return fmt.Errorf("delete agent %s: %w", id, err)
	}
	a.log.Info("agent deleted", zap.String("agent_id", id))
	a.Refresh()
	return nil
}

// Register creates an agent and refreshes the catalog.
func (a *Agents) Register(ctx context.Context, reg model.AgentRegistration) (model.Agent, error) {
	if err := validateRegistration(reg); err != nil {
		return model.Agent{}, err
	}
	agent, err := a.api.RegisterAgent(ctx, reg)
	if err != nil {
		return model.Agent{}, fmt.Errorf("register agent: %w", err)
	}
	a.log.Info("agent registered", zap.String("agent_id", agent.ID), zap.String("name", agent.Name))
	a.Refresh()
	return agent, nil
}

// ValidateName reports whether name is still free.
func (a *Agents) ValidateName(ctx context.Context, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, nil
	}
	return a.api.AgentNameAvailable(ctx, name)
}

// Integrations lists the integrations offered at registration.
func (a *Agents) Integrations(ctx context.Context) ([]model.Integration, error) {
	return a.api.ListIntegrations(ctx)
}

func validateRegistration(reg model.AgentRegistration) error {
	var problems []string
	if strings.TrimSpace(reg.Metadata.Name) == "" {
		problems = append(problems, "name is required")
	}
	if strings.TrimSpace(reg.Metadata.Version) == "" {
		problems = append(problems, "version is required")
	}
	for i, s := range reg.McpServers {
		if s.ServerID == "" {
			problems = append(problems, fmt.Sprintf("mcp server %d has no id", i))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRegistration, strings.Join(problems, "; "))
	}
	return nil
}

// Servers is the MCP server catalog view.
type Servers struct {
	*query.Controller[model.McpServer]
	api ServerAPI
}

// NewServers creates the MCP server catalog.
func NewServers(fetcher query.Fetcher[model.McpServer], api ServerAPI, log *logger.Logger) *Servers {
	return &Servers{
		Controller: query.New(ServersName, fetcher, query.Options{Defaults: ServerDefaults(), Logger: log}),
		api:        api,
	}
}

// Add adds a server to the user's environment and refreshes the catalog.
func (s *Servers) Add(ctx context.Context, serverID string) error {
	if err := s.api.AddServer(ctx, serverID); err != nil {
		return fmt.Errorf("add server %s: %w", serverID, err)
	}
	s.Refresh()
	return nil
}

// Tools is the tool catalog view. Every mutation refreshes it.
type Tools struct {
	*query.Controller[model.Tool]
	api ToolAPI
}

// NewTools creates the tool catalog.
func NewTools(fetcher query.Fetcher[model.Tool], api ToolAPI, log *logger.Logger) *Tools {
	return &Tools{
		Controller: query.New(ToolsName, fetcher, query.Options{Defaults: ToolDefaults(), Logger: log}),
		api:        api,
	}
}

// Get fetches one tool.
func (t *Tools) Get(ctx context.Context, id string) (model.Tool, error) {
	return t.api.GetTool(ctx, id)
}

// Add attaches a tool to an agent.
func (t *Tools) Add(ctx context.Context, toolID, agentID string) error {
	if err := t.api.AddTool(ctx, toolID, agentID); err != nil {
		return fmt.Errorf("add tool %s: %w", toolID, err)
	}
	t.Refresh()
	return nil
}

// Configure replaces a tool's configuration.
func (t *Tools) Configure(ctx context.Context, toolID string, cfg model.ToolConfiguration) (model.Tool, error) {
	tool, err := t.api.ConfigureTool(ctx, toolID, cfg)
	if err != nil {
		return model.Tool{}, fmt.Errorf("configure tool %s: %w", toolID, err)
	}
	t.Refresh()
	return tool, nil
}

// Remove detaches a tool from an agent.
func (t *Tools) Remove(ctx context.Context, toolID, agentID string) error {
	if err := t.api.RemoveTool(ctx, toolID, agentID); err != nil {
		return fmt.Errorf("remove tool %s: %w", toolID, err)
	}
	t.Refresh()
	return nil
}
