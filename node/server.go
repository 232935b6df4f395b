package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/go-faster/errors"
	"github.com/mdlayher/vsock"
	"go.uber.org/zap"
)

// Server accepts one JSON request per connection and answers with one
// JSON response. The client half-closes its side after writing.
type Server struct {
	node        *Node
	logger      *zap.Logger
	maxWorkers  int
	readTimeout time.Duration
}

// NewServer returns a server dispatching to node.
func NewServer(node *Node, logger *zap.Logger, maxWorkers int, readTimeout time.Duration) *Server {
	return &Server{node: node, logger: logger, maxWorkers: maxWorkers, readTimeout: readTimeout}
}

// Listen opens the listener named by cfg.
func Listen(cfg Config) (net.Listener, error) {
	switch cfg.Server.Network {
	case "vsock":
		l, err := vsock.Listen(cfg.Server.VsockPort, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create vsock listener: %w", err)
		}
		return l, nil
	default:
		l, err := net.Listen("tcp", cfg.Server.Addr)
		if err != nil {
			return nil, fmt.Errorf("failed to create tcp listener: %w", err)
		}
		return l, nil
	}
}

// Serve accepts connections until ctx ends or the listener fails.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	s.logger.Info("node listening",
		zap.Stringer("addr", listener.Addr()),
		zap.Int("max_workers", s.maxWorkers),
	)
	semaphore := make(chan struct{}, s.maxWorkers)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.logger.Error("accept failed", zap.Error(err))
			continue
		}

		select {
		case semaphore <- struct{}{}:
			go func(c net.Conn) {
				defer func() { <-semaphore }()
				s.handleConnection(ctx, c)
			}(conn)
		default:
			connectionsRejected.Inc()
			s.logger.Info("no workers available, rejecting connection")
			if err := conn.Close(); err != nil {
				s.logger.Error("close rejected connection", zap.Error(err))
			}
		}
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic recovered in handleConnection", zap.Any("panic", r))
		}
		if err := conn.Close(); err != nil {
			s.logger.Debug("close connection", zap.Error(err))
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, conn); err != nil {
		s.logger.Error("read request", zap.Error(err))
		return
	}

	resp := s.node.Handle(ctx, buf.Bytes())
	s.logger.Debug("request handled",
		zap.String("type", resp.Type),
		zap.String("request_id", resp.RequestID),
		zap.Bool("success", resp.Success),
	)
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}
