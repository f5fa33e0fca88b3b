// Package client streams a macro's states to a remote receiver and waits
// for its acknowledgement.
package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"

	"kafji.net/rekam/logging"
	"kafji.net/rekam/macro"
	"kafji.net/rekam/transport"
)

var slog = logging.NewLogger("rekam/transport/client")

type Config struct {
	Addr              string
	TLSCertPath       string
	TLSKeyPath        string
	ServerTLSCertPath string
}

func (c *Config) tlsEnabled() bool {
	return c.TLSCertPath != "" || c.TLSKeyPath != "" || c.ServerTLSCertPath != ""
}

func newTLSConfig(cfg *Config) (*tls.Config, error) {
	cert, err := os.ReadFile(cfg.TLSCertPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read tls cert file: %v", err)
	}

	key, err := os.ReadFile(cfg.TLSKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read tls key file: %v", err)
	}

	keyPair, err := tls.X509KeyPair(cert, key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key pair: %v", err)
	}

	serverCert, err := os.ReadFile(cfg.ServerTLSCertPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read server tls cert file: %v", err)
	}

	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(serverCert)

	return &tls.Config{
		Certificates:       []tls.Certificate{keyPair},
		RootCAs:            pool,
		InsecureSkipVerify: true,
		VerifyConnection: func(cs tls.ConnectionState) error {
			opts := x509.VerifyOptions{
				Roots: pool,
			}
			_, err := cs.PeerCertificates[0].Verify(opts)
			if err != nil {
				slog.Debug("failed to verify peer cert", "error", err)
			}
			return err
		},
	}, nil
}

// Send connects to the receiver, streams the states, and returns once the
// receiver acknowledged the whole macro.
func Send(ctx context.Context, cfg *Config, states []macro.State) error {
	netDialer := &net.Dialer{Timeout: transport.ConnectTimeout}

	slog.Info("connecting to receiver", "address", cfg.Addr)
	var conn net.Conn
	var err error
	if cfg.tlsEnabled() {
		tlsCfg, err2 := newTLSConfig(cfg)
		if err2 != nil {
			return err2
		}
		dialer := &tls.Dialer{NetDialer: netDialer, Config: tlsCfg}
		conn, err = dialer.DialContext(ctx, "tcp4", cfg.Addr)
	} else {
		conn, err = netDialer.DialContext(ctx, "tcp4", cfg.Addr)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to receiver: %v", err)
	}

	slog.Info("connected to receiver", "address", conn.RemoteAddr())
	sess := transport.NewSession(ctx, conn)
	defer sess.Close()

	for _, state := range states {
		frm, err := transport.StateFrame(state)
		if err != nil {
			return err
		}
		if err := sess.WriteFrame(frm); err != nil {
			return fmt.Errorf("failed to write state: %v", err)
		}
	}
	if err := sess.WriteFrame(transport.Frame{Tag: transport.TagDone}); err != nil {
		return fmt.Errorf("failed to write done: %v", err)
	}
	slog.Info("macro sent, waiting for acknowledgement", "states", len(states))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-sess.SendPingDeadline():
			slog.Debug("sending ping")
			if err := sess.SendPing(); err != nil {
				return fmt.Errorf("failed to write ping: %v", err)
			}

		case <-sess.RecvPingDeadline():
			return transport.ErrPingTimedOut

		case frm, ok := <-sess.Inbox():
			if !ok {
				err := sess.InboxErr()
				if err == nil {
					err = errors.New("connection closed before acknowledgement")
				}
				return err
			}

			switch frm.Tag {
			case transport.TagDone:
				slog.Info("macro acknowledged")
				return nil

			case transport.TagPing:
				slog.Debug("ping received")
				sess.SetRecvPingDeadline()

			default:
				slog.Warn("unexpected tag", "tag", frm.Tag)
			}
		}
	}
}
