package channel

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/capitalize-ai/agent-console/pkg/logger"
)

// NATSConfig holds NATS transport settings.
type NATSConfig struct {
	// InboundSubject carries frames to the client, OutboundSubject commands from it.
	InboundSubject  string
	OutboundSubject string
	CAFile          string
	CertFile        string
	KeyFile         string
	Token           string
}

// NATSDialer opens links over core NATS publish/subscribe.
//
// Client-side reconnects are disabled: a dropped connection surfaces as a read
// error and the Manager runs its own reconnect cycle.
type NATSDialer struct {
	Config NATSConfig
	Log    *logger.Logger
}

// Dial implements Dialer.
func (d NATSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	if d.Config.InboundSubject == "" || d.Config.OutboundSubject == "" {
		return nil, errors.New("nats: inbound and outbound subjects are required")
	}
	log := logger.OrGlobal(d.Log).Named("nats")

	opts := []nats.Option{
		nats.Name("agent-console"),
		nats.NoReconnect(),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			log.Error("NATS error", zap.String("subject", subject), zap.Error(err))
		}),
	}
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}

	if d.Config.CAFile != "" && d.Config.CertFile != "" && d.Config.KeyFile != "" {
		tlsConfig, err := createTLSConfig(d.Config.CAFile, d.Config.CertFile, d.Config.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts = append(opts, nats.Secure(tlsConfig))
	}

	if d.Config.Token != "" {
		opts = append(opts, nats.Token(d.Config.Token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	if err := ctx.Err(); err != nil {
		nc.Close()
		return nil, err
	}

	sub, err := nc.SubscribeSync(d.Config.InboundSubject)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", d.Config.InboundSubject, err)
	}

	return &natsConn{nc: nc, sub: sub, outbound: d.Config.OutboundSubject}, nil
}

type natsConn struct {
	nc       *nats.Conn
	sub      *nats.Subscription
	outbound string
}

func (c *natsConn) Read(ctx context.Context) ([]byte, error) {
	msg, err := c.sub.NextMsgWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return msg.Data, nil
}

func (c *natsConn) Write(ctx context.Context, frame []byte) error {
	if err := c.nc.Publish(c.outbound, frame); err != nil {
		return err
	}
	return c.nc.FlushWithContext(ctx)
}

func (c *natsConn) Close() error {
	c.nc.Close()
	return nil
}

func createTLSConfig(caFile, certFile, keyFile string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client cert: %w", err)
	}

	return &tls.Config{
		RootCAs:      caCertPool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
