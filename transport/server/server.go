// Package server receives macros streamed by a remote sender and hands each
// completed state sequence to the caller.
package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"

	"kafji.net/rekam/logging"
	"kafji.net/rekam/macro"
	"kafji.net/rekam/transport"
)

var slog = logging.NewLogger("rekam/transport/server")

type Config struct {
	Addr              string
	TLSCertPath       string
	TLSKeyPath        string
	ClientTLSCertPath string
}

func (c *Config) tlsEnabled() bool {
	return c.TLSCertPath != "" || c.TLSKeyPath != "" || c.ClientTLSCertPath != ""
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

	clientCert, err := os.ReadFile(cfg.ClientTLSCertPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read client cert file: %v", err)
	}

	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(clientCert)

	return &tls.Config{
		Certificates: []tls.Certificate{keyPair},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    pool,
	}, nil
}

type Handle struct {
	macros chan []macro.State
	addr   chan string
	err    error
}

// Addr yields the bound listen address once the listener is up.
func (h *Handle) Addr() <-chan string {
	return h.addr
}

// Macros yields one state sequence per macro a sender completed with
// TagDone.
func (h *Handle) Macros() <-chan []macro.State {
	return h.macros
}

func (h *Handle) Err() error {
	return h.err
}

func Start(ctx context.Context, cfg *Config) *Handle {
	h := &Handle{macros: make(chan []macro.State), addr: make(chan string, 1)}
	go func() {
		defer close(h.macros)
		h.err = run(ctx, cfg, h.macros, h.addr)
	}()
	return h
}

func run(ctx context.Context, cfg *Config, macros chan<- []macro.State, addr chan<- string) error {
	slog.Info("listening for connection", "address", cfg.Addr)
	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp4", cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %v", err)
	}
	if cfg.tlsEnabled() {
		tlsCfg, err := newTLSConfig(cfg)
		if err != nil {
			listener.Close()
			return err
		}
		listener = tls.NewListener(listener, tlsCfg)
	} else {
		slog.Warn("tls is not configured, connections are not authenticated")
	}
	defer listener.Close()
	addr <- listener.Addr().String()

	receptionist := newReceptionist(listener)

	sess := emptySession()
	defer func() {
		sess.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case conn, ok := <-receptionist.conns:
			if !ok {
				return receptionist.err
			}
			if !sess.Closed() {
				slog.Info("rejecting connection, active session exists", "address", conn.RemoteAddr())
				err := conn.Close()
				if err != nil {
					slog.Warn("failed to close connection", "address", conn.RemoteAddr(), "error", err)
				}
				continue
			}
			sess = newSession(ctx, conn)
			slog.Info("session established", "address", conn.RemoteAddr())
			runSession(ctx, sess, macros)

		case err := <-sess.done:
			slog.Error("session terminated", "error", err)
			sess.Close()
		}
	}
}

// receptionist handles incoming connections.
type receptionist struct {
	listener net.Listener
	conns    chan net.Conn
	err      error
}

func newReceptionist(listener net.Listener) *receptionist {
	r := &receptionist{
		listener: listener,
		conns:    make(chan net.Conn),
	}

	go func() {
		defer close(r.conns)

		for {
			conn, err := r.listener.Accept()
			if err != nil {
				r.err = fmt.Errorf("failed to accept connection: %v", err)
				return
			}
			slog.Info("connected to sender", "address", conn.RemoteAddr())
			r.conns <- conn
		}
	}()

	return r
}

type session struct {
	*transport.Session
	done chan error
}

func emptySession() *session {
	return &session{Session: transport.EmptySession(), done: make(chan error, 1)}
}

func newSession(ctx context.Context, conn net.Conn) *session {
	return &session{
		Session: transport.NewSession(ctx, conn),
		done:    make(chan error, 1),
	}
}

func runSession(ctx context.Context, sess *session, macros chan<- []macro.State) {
	go func() {
		err := func() error {
			var states []macro.State

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
						return sess.InboxErr()
					}

					switch frm.Tag {
					case transport.TagState:
						state, err := transport.UnmarshalState(frm.Value)
						if err != nil {
							slog.Warn("failed to unmarshal state", "error", err)
							continue
						}
						slog.Debug("state received", "state", state)
						states = append(states, state)

					case transport.TagDone:
						slog.Info("macro received", "states", len(states))
						select {
						case <-ctx.Done():
							return ctx.Err()
						case macros <- states:
						}
						states = nil
						if err := sess.WriteFrame(transport.Frame{Tag: transport.TagDone}); err != nil {
							return fmt.Errorf("failed to write ack: %v", err)
						}

					case transport.TagPing:
						slog.Debug("ping received")
						sess.SetRecvPingDeadline()

					default:
						slog.Warn("unexpected tag", "tag", frm.Tag)
					}
				}
			}
		}()

		sess.done <- err
	}()
}
