// Package rpc carries predictor calls between the web service and the
// predictor service as newline-delimited JSON over persistent TCP
// connections. A connection handles one request at a time; each request
// names a "Service.Method", carries an ID and raw params, and may carry the
// caller's remaining time budget. The response echoes the ID with either
// data or an error string.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// HandlerFunc answers one request. The returned value is JSON-encoded into
// Response.Data.
type HandlerFunc func(ctx context.Context, req json.RawMessage) (any, error)

// Request is the wire format for an RPC request.
type Request struct {
	Method string          `json:"method"`
	ID     string          `json:"id"`
	Params json.RawMessage `json:"params"`
	// TimeoutMs is the caller's remaining budget; 0 means none.
	TimeoutMs int64 `json:"timeout_ms,omitempty"`
}

// Response is the wire format for an RPC response.
type Response struct {
	ID    string `json:"id"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Server dispatches requests to registered handlers. Register every method
// before serving.
type Server struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	listener net.Listener
	conns    map[net.Conn]struct{}

	wg       sync.WaitGroup
	done     chan struct{}
	ready    chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger
}

var errUnknownMethod = errors.New("unknown method")

func NewServer() *Server {
	return &Server{
		handlers: make(map[string]HandlerFunc),
		conns:    make(map[net.Conn]struct{}),
		done:     make(chan struct{}),
		ready:    make(chan struct{}),
		logger:   slog.Default().With("component", "rpc-server"),
	}
}

func (s *Server) Register(method string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
}

func (s *Server) MethodCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers)
}

// Serve listens on addr and blocks until Stop.
func (s *Server) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.ServeListener(ln)
}

// ServeListener accepts on ln and blocks until Stop.
func (s *Server) ServeListener(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	close(s.ready)
	s.logger.Info("rpc server listening", "addr", ln.Addr().String(), "methods", s.MethodCount())

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

// Addr blocks until the server is listening.
func (s *Server) Addr() net.Addr {
	<-s.ready
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listener.Addr()
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			return
		}
		resp := s.dispatch(req)
		if err := enc.Encode(resp); err != nil {
			s.logger.Warn("writing response failed", "method", req.Method, "error", err)
			return
		}
	}
}

// dispatch runs the handler for req under the caller's time budget. A
// panicking handler becomes an error response.
func (s *Server) dispatch(req Request) (resp Response) {
	resp.ID = req.ID

	s.mu.RLock()
	handler, ok := s.handlers[req.Method]
	s.mu.RUnlock()
	if !ok {
		resp.Error = fmt.Sprintf("%v: %s", errUnknownMethod, req.Method)
		return resp
	}

	ctx := context.Background()
	if req.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("handler panicked", "method", req.Method, "panic", p)
			resp.Data = nil
			resp.Error = "internal error"
		}
		s.logger.Debug("rpc handled", "method", req.Method, "id", req.ID,
			"duration_ms", time.Since(start).Milliseconds(), "error", resp.Error)
	}()

	data, err := handler(ctx, req.Params)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.Data = data
	return resp
}

// Stop closes the listener and every open connection, then waits for
// in-flight handlers.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.mu.RLock()
		if s.listener != nil {
			s.listener.Close()
		}
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.RUnlock()
		s.wg.Wait()
		s.logger.Info("rpc server stopped")
	})
}
