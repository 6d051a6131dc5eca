package model

import (
	"time"
)

// AgentCategory groups agents in the catalog.
type AgentCategory string

const (
	AgentCategorySales        AgentCategory = "SALES"
	AgentCategorySupport      AgentCategory = "SUPPORT"
	AgentCategoryMarketing    AgentCategory = "MARKETING"
	AgentCategoryDataAnalysis AgentCategory = "DATA_ANALYSIS"
	AgentCategoryDevelopment  AgentCategory = "DEVELOPMENT"
)

// Agent is an entry of the agent catalog.
type Agent struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Category    AgentCategory `json:"category"`
	Icon        string        `json:"icon"`
	Version     string        `json:"version"`
	Author      string        `json:"author"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	IsActive    bool          `json:"isActive"`
	Stats       *AgentStats   `json:"stats,omitempty"`
}

// AgentStats summarises agent usage.
type AgentStats struct {
	TotalInvocations    int64   `json:"totalInvocations"`
	SuccessRate         float64 `json:"successRate"`
	AverageResponseTime float64 `json:"averageResponseTime"`
}

// AgentRegistration is the payload that registers a new agent.
type AgentRegistration struct {
	Metadata     AgentMetadata  `json:"metadata"`
	McpServers   []McpServerRef `json:"mcpServers"`
	Integrations []Integration  `json:"integrations"`
}

// AgentMetadata describes an agent being registered.
type AgentMetadata struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Author      string `json:"author"`
}

// McpServerRef binds a registered agent to an MCP server.
type McpServerRef struct {
	ServerID   string         `json:"serverId"`
	ServerName string         `json:"serverName"`
	Config     map[string]any `json:"config"`
}

// Integration is a third-party integration toggled at registration.
type Integration struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	LogoURL string `json:"logoUrl"`
}

// ServerStatus is the availability of an MCP server.
type ServerStatus string

const (
	ServerStatusAvailable   ServerStatus = "AVAILABLE"
	ServerStatusInUse       ServerStatus = "IN_USE"
	ServerStatusMaintenance ServerStatus = "MAINTENANCE"
	ServerStatusOffline     ServerStatus = "OFFLINE"
)

// ServerCategory groups MCP servers.
type ServerCategory string

const (
	ServerCategoryCompute        ServerCategory = "COMPUTE"
	ServerCategoryDataProcessing ServerCategory = "DATA_PROCESSING"
	ServerCategoryStorage        ServerCategory = "STORAGE"
	ServerCategoryGPU            ServerCategory = "GPU"
	ServerCategoryResearch       ServerCategory = "RESEARCH"
)

// McpServer is an entry of the MCP server catalog.
type McpServer struct {
	ID             string                `json:"id"`
	Name           string                `json:"name"`
	Description    string                `json:"description"`
	Status         ServerStatus          `json:"status"`
	Category       ServerCategory        `json:"category"`
	Icon           string                `json:"icon"`
	Specifications *ServerSpecifications `json:"specifications,omitempty"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

// ServerSpecifications lists server hardware.
type ServerSpecifications struct {
	CPU     string `json:"cpu,omitempty"`
	Memory  string `json:"memory,omitempty"`
	Storage string `json:"storage,omitempty"`
	GPU     string `json:"gpu,omitempty"`
}

// ToolCategory groups integration tools.
type ToolCategory string

const (
	ToolCategoryDataSource      ToolCategory = "DATA_SOURCE"
	ToolCategoryCommunication   ToolCategory = "COMMUNICATION"
	ToolCategoryProductivity    ToolCategory = "PRODUCTIVITY"
	ToolCategoryPayments        ToolCategory = "PAYMENTS"
	ToolCategoryCustomerSupport ToolCategory = "CUSTOMER_SUPPORT"
	ToolCategoryMarketing       ToolCategory = "MARKETING"
)

// ToolStatus is the connection state of a tool.
type ToolStatus string

const (
	ToolStatusAvailable ToolStatus = "AVAILABLE"
	ToolStatusConnected ToolStatus = "CONNECTED"
	ToolStatusError     ToolStatus = "ERROR"
)

// Tool is an entry of the tool integration catalog.
type Tool struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Description   string             `json:"description"`
	Category      ToolCategory       `json:"category"`
	Status        ToolStatus         `json:"status"`
	LogoURL       string             `json:"logoUrl"`
	IsConfigured  bool               `json:"isConfigured"`
	Configuration *ToolConfiguration `json:"configuration,omitempty"`
}

// ToolConfiguration holds credentials and permissions of a tool.
type ToolConfiguration struct {
	APIKey      string           `json:"apiKey,omitempty"`
	APIToken    string           `json:"apiToken,omitempty"`
	WebhookURL  string           `json:"webhookUrl,omitempty"`
	Permissions []ToolPermission `json:"permissions"`
}

// ToolPermission is a single grant of a tool configuration.
type ToolPermission struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
	Required    bool   `json:"required"`
}
