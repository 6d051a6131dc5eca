package channel

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/capitalize-ai/agent-console/pkg/logger"
)

// TransportOptions configures the dialer chosen by DialerFor.
type TransportOptions struct {
	// Token is sent as a bearer token on websocket handshakes.
	Token string
	NATS  NATSConfig
	Log   *logger.Logger
}

// DialerFor picks a transport from the URL scheme.
func DialerFor(rawURL string, opts TransportOptions) (Dialer, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid channel url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
		d := WebSocketDialer{}
		if opts.Token != "" {
			d.Header = http.Header{"Authorization": {"Bearer " + opts.Token}}
		}
		return d, nil
	case "nats", "tls":
		return NATSDialer{Config: opts.NATS, Log: opts.Log}, nil
	default:
		return nil, fmt.Errorf("unsupported channel scheme %q", u.Scheme)
	}
}
