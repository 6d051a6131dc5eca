// Package session builds and owns the components of one console session.
package session

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/capitalize-ai/agent-console/internal/api"
	"github.com/capitalize-ai/agent-console/internal/catalog"
	"github.com/capitalize-ai/agent-console/internal/channel"
	"github.com/capitalize-ai/agent-console/internal/chat"
	"github.com/capitalize-ai/agent-console/internal/config"
	"github.com/capitalize-ai/agent-console/internal/model"
	"github.com/capitalize-ai/agent-console/internal/query"
	"github.com/capitalize-ai/agent-console/pkg/logger"
)

// Session wires one API client, channel, store, tracker and the three catalogs.
type Session struct {
	ID string

	API     *api.Client
	Channel *channel.Manager
	Store   *chat.Store
	Typing  *chat.Tracker
	Agents  *catalog.Agents
	Servers *catalog.Servers
	Tools   *catalog.Tools

	log    *logger.Logger
	cancel context.CancelFunc
}

// New builds a session from cfg. dialer may be nil to choose one from the channel URL.
func New(id string, cfg *config.Config, dialer channel.Dialer, log *logger.Logger) (*Session, error) {
	log = logger.OrGlobal(log)
	var claims *api.Claims
	if cfg.APIToken != "" {
		var err error
		if claims, err = api.ParseToken(cfg.APIToken); err != nil {
			log.Debug("api token is opaque", zap.Error(err))
		}
	}
	if claims != nil {
		log = log.WithSession(id, claims.Subject)
		if claims.TenantID != "" {
			log = log.With(zap.String("tenant_id", claims.TenantID))
		}
		log.Debug("api token", zap.Strings("scopes", claims.Scopes))
		if err := claims.Check(time.Now()); err != nil {
			log.Warn("api token will be rejected", zap.Error(err))
		}
	} else {
		log = log.With(zap.String("session_id", id))
	}

	if dialer == nil {
		d, err := channel.DialerFor(cfg.ChannelURL, channel.TransportOptions{
			Token: cfg.APIToken,
			NATS: channel.NATSConfig{
				InboundSubject:  cfg.InboundSubject,
				OutboundSubject: cfg.OutboundSubject,
				CAFile:          cfg.NATSCAFile,
				CertFile:        cfg.NATSCertFile,
				KeyFile:         cfg.NATSKeyFile,
				Token:           cfg.NATSToken,
			},
			Log: log,
		})
		if err != nil {
			return nil, err
		}
		dialer = d
	}

	client := api.NewClient(cfg.APIBaseURL, api.Options{
		Token:   cfg.APIToken,
		Timeout: cfg.APITimeout,
		Logger:  log,
	})
	manager := channel.NewManager(channel.Config{
		URL:                  cfg.ChannelURL,
		ReconnectInterval:    cfg.ReconnectInterval,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		HandshakeTimeout:     cfg.HandshakeTimeout,
		WriteTimeout:         cfg.WriteTimeout,
	}, dialer, log)
	store := chat.NewStore(client, manager, log)

	return &Session{
		ID:      id,
		API:     client,
		Channel: manager,
		Store:   store,
		Typing:  chat.NewTracker(manager, store, log),
		Agents:  catalog.NewAgents(api.NewCollectionFetcher[model.Agent](client, "/agents", "agents"), client, log),
		Servers: catalog.NewServers(api.NewCollectionFetcher[model.McpServer](client, "/mcp-servers", "servers"), client, log),
		Tools:   catalog.NewTools(api.NewCollectionFetcher[model.Tool](client, "/tools", "tools"), client, log),
		log:     log,
	}, nil
}

// Start connects the channel, issues the initial catalog queries and loads the
// conversations. A failed conversation load is logged; the channel keeps running.
func (s *Session) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.Channel.Connect()
	s.Agents.Start(ctx)
	s.Servers.Start(ctx)
	s.Tools.Start(ctx)

	if err := s.loadConversations(ctx); err != nil {
		s.log.Warn("initial conversation load failed", zap.Error(err))
	}
	s.log.Info("session started")
}

// Initial conversation load retry policy for transient API failures.
var (
	loadRetryInterval = 500 * time.Millisecond
	loadRetries       = 3
)

func (s *Session) loadConversations(ctx context.Context) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(loadRetryInterval), uint64(loadRetries)),
		ctx,
	)
	return backoff.RetryNotify(func() error {
		_, err := s.Store.GetConversations(ctx)
		if err != nil && !api.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		s.log.Info("conversation load failed, retrying", zap.Duration("wait", wait), zap.Error(err))
	})
}

// Close disconnects the channel and stops every component.
func (s *Session) Close() {
	s.Channel.Disconnect()
	s.Typing.Close()
	s.Store.Close()
	s.Agents.Close()
	s.Servers.Close()
	s.Tools.Close()
	if s.cancel != nil {
		s.cancel()
	}
	s.log.Info("session closed")
}

// State is a point-in-time summary of the session.
type State struct {
	SessionID     string           `json:"sessionId"`
	Channel       channel.Status   `json:"channel"`
	Conversations int              `json:"conversations"`
	Unread        int              `json:"unread"`
	ActiveID      string           `json:"activeConversationId,omitempty"`
	AgentTyping   bool             `json:"agentTyping"`
	Catalogs      map[string]Query `json:"catalogs"`
}

// Query summarises one catalog controller.
type Query struct {
	Filters    map[string]string `json:"filters"`
	Sort       string            `json:"sort,omitempty"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	TotalItems int               `json:"totalItems"`
	TotalPages int               `json:"totalPages"`
	Pending    bool              `json:"pending"`
	Error      string            `json:"error,omitempty"`
}

// State returns the current summary.
func (s *Session) State() State {
	snap := s.Store.Snapshot()
	unread := 0
	for _, c := range snap.Conversations {
		unread += c.UnreadCount()
	}
	return State{
		SessionID:     s.ID,
		Channel:       s.Channel.Status(),
		Conversations: len(snap.Conversations),
		Unread:        unread,
		ActiveID:      snap.ActiveID(),
		AgentTyping:   s.Typing.IsTyping(),
		Catalogs: map[string]Query{
			catalog.AgentsName:  summarize(s.Agents.Current()),
			catalog.ServersName: summarize(s.Servers.Current()),
			catalog.ToolsName:   summarize(s.Tools.Current()),
		},
	}
}

func summarize[T any](snap query.Snapshot[T]) Query {
	q := Query{
		Filters:  snap.Query.Filters,
		Page:     snap.Query.Page.Number,
		PageSize: snap.Query.Page.Size,
		Pending:  snap.Pending,
	}
	if snap.Query.Sort.Field != "" {
		q.Sort = snap.Query.Sort.Field + " " + string(snap.Query.Sort.Direction)
	}
	if snap.Page != nil {
		q.TotalItems = snap.Page.TotalItems
		q.TotalPages = snap.Page.TotalPages
	}
	if snap.Err != nil {
		q.Error = snap.Err.Error()
	}
	return q
}
