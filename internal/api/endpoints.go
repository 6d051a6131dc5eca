package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/capitalize-ai/agent-console/internal/model"
)

// Conversations

// ListConversations returns every conversation of the user.
func (c *Client) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	var out []model.Conversation
	if err := c.getJSON(ctx, at("/chat/conversations"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetConversation fetches one conversation with its messages.
func (c *Client) GetConversation(ctx context.Context, id string) (model.Conversation, error) {
	var out model.Conversation
	err := c.getJSON(ctx, at("/chat/conversations/{id}", id), nil, &out)
	return out, err
}

// CreateConversation opens a conversation with an agent.
func (c *Client) CreateConversation(ctx context.Context, req model.CreateConversationRequest) (model.Conversation, error) {
	var out model.Conversation
	err := c.sendJSON(ctx, http.MethodPost, at("/chat/conversations"), req, &out)
	return out, err
}

// SendMessage posts a message and returns it as stored by the server.
func (c *Client) SendMessage(ctx context.Context, req model.SendMessageRequest) (model.Message, error) {
	var out model.Message
	err := c.sendJSON(ctx, http.MethodPost, at("/chat/messages"), req, &out)
	return out, err
}

// MarkAsRead marks every message of a conversation as read.
func (c *Client) MarkAsRead(ctx context.Context, conversationID string) error {
	return c.ack(ctx, http.MethodPut, at("/chat/conversations/{id}/read", conversationID), struct{}{})
}

// DeleteConversation removes a conversation.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	return c.ack(ctx, http.MethodDelete, at("/chat/conversations/{id}", conversationID), nil)
}

// Agents

// GetAgent fetches one agent.
func (c *Client) GetAgent(ctx context.Context, id string) (model.Agent, error) {
	var out model.Agent
	err := c.getJSON(ctx, at("/agents/{id}", id), nil, &out)
	return out, err
}

// InvokeAgent runs an agent with input and returns its raw result.
func (c *Client) InvokeAgent(ctx context.Context, id string, input any) (json.RawMessage, error) {
	var out struct {
		Result json.RawMessage `json:"result"`
	}
	if err := c.sendJSON(ctx, http.MethodPost, at("/agents/{id}/invoke", id), map[string]any{"input": input}, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

// DeleteAgent removes an agent from the catalog.
func (c *Client) DeleteAgent(ctx context.Context, id string) error {
	return c.ack(ctx, http.MethodDelete, at("/agents/{id}", id), nil)
}

// RegisterAgent creates a new agent.
func (c *Client) RegisterAgent(ctx context.Context, reg model.AgentRegistration) (model.Agent, error) {
	var out model.Agent
	err := c.sendJSON(ctx, http.MethodPost, at("/agents"), reg, &out)
	return out, err
}

// AgentNameAvailable reports whether no agent uses name yet.
func (c *Client) AgentNameAvailable(ctx context.Context, name string) (bool, error) {
	var out struct {
		Available bool `json:"available"`
	}
	if err := c.getJSON(ctx, at("/agents/validate-name"), url.Values{"name": {name}}, &out); err != nil {
		return false, err
	}
	return out.Available, nil
}

// ListIntegrations returns the integrations offered at registration.
func (c *Client) ListIntegrations(ctx context.Context) ([]model.Integration, error) {
	var out []model.Integration
	if err := c.getJSON(ctx, at("/integrations"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MCP servers

// AddServer adds an MCP server to the user's environment.
func (c *Client) AddServer(ctx context.Context, serverID string) error {
	return c.ack(ctx, http.MethodPost, at("/mcp-servers/{id}/add", serverID), struct{}{})
}

// Tools

type agentRef struct {
	AgentID string `json:"agentId"`
}

// GetTool fetches one tool.
func (c *Client) GetTool(ctx context.Context, id string) (model.Tool, error) {
	var out model.Tool
	err := c.getJSON(ctx, at("/tools/{id}", id), nil, &out)
	return out, err
}

// AddTool attaches a tool to an agent.
func (c *Client) AddTool(ctx context.Context, toolID, agentID string) error {
	return c.ack(ctx, http.MethodPost, at("/tools/{id}/add", toolID), agentRef{AgentID: agentID})
}

// ConfigureTool replaces a tool's configuration and returns the updated tool.
func (c *Client) ConfigureTool(ctx context.Context, toolID string, cfg model.ToolConfiguration) (model.Tool, error) {
	var out model.Tool
	err := c.sendJSON(ctx, http.MethodPut, at("/tools/{id}/configure", toolID), cfg, &out)
	return out, err
}

// RemoveTool detaches a tool from an agent.
func (c *Client) RemoveTool(ctx context.Context, toolID, agentID string) error {
	return c.ack(ctx, http.MethodDelete, at("/tools/{id}/remove", toolID), agentRef{AgentID: agentID})
}
