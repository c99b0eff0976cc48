package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoParams struct {
	Text string `json:"text"`
}

func startServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer()
	s.Register("Echo.Say", func(ctx context.Context, req json.RawMessage) (any, error) {
		var p echoParams
		if err := json.Unmarshal(req, &p); err != nil {
			return nil, err
		}
		return echoParams{Text: "echo: " + p.Text}, nil
	})
	s.Register("Echo.Fail", func(ctx context.Context, req json.RawMessage) (any, error) {
		return nil, errors.New("nope")
	})
	s.Register("Echo.Slow", func(ctx context.Context, req json.RawMessage) (any, error) {
		select {
		case <-time.After(2 * time.Second):
			return echoParams{Text: "late"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go s.ServeListener(ln)
	t.Cleanup(s.Stop)
	return s
}

func TestCall_RoundTrip(t *testing.T) {
	s := startServer(t)
	assert.Equal(t, 3, s.MethodCount())

	c, err := Dial(s.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	var out echoParams
	require.NoError(t, c.Call(context.Background(), "Echo.Say", echoParams{Text: "hi"}, &out))
	assert.Equal(t, "echo: hi", out.Text)

	// connection is reused for a second call
	require.NoError(t, c.Call(context.Background(), "Echo.Say", echoParams{Text: "again"}, &out))
	assert.Equal(t, "echo: again", out.Text)
}

func TestCall_RemoteError(t *testing.T) {
	s := startServer(t)
	c, err := Dial(s.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	err = c.Call(context.Background(), "Echo.Fail", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")

	err = c.Call(context.Background(), "Echo.Missing", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown method")
}

func TestCall_DeadlineRespected(t *testing.T) {
	s := startServer(t)
	c, err := Dial(s.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = c.Call(ctx, "Echo.Slow", nil, nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)

	// the client recovers on the next call
	var out echoParams
	require.NoError(t, c.Call(context.Background(), "Echo.Say", echoParams{Text: "back"}, &out))
	assert.Equal(t, "echo: back", out.Text)
}

func TestDial_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = Dial(addr)
	assert.Error(t, err)
}

func TestNewClient_DialsLazily(t *testing.T) {
	s := startServer(t)
	c := NewClient(s.Addr().String())
	defer c.Close()

	var out echoParams
	require.NoError(t, c.Call(context.Background(), "Echo.Say", echoParams{Text: "lazy"}, &out))
	assert.Equal(t, "echo: lazy", out.Text)
}

func TestStop_ClosesIdleConnections(t *testing.T) {
	s := startServer(t)
	c := NewClient(s.Addr().String())
	defer c.Close()

	var out echoParams
	require.NoError(t, c.Call(context.Background(), "Echo.Say", echoParams{Text: "hi"}, &out))

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on an idle client connection")
	}

	assert.Error(t, c.Call(context.Background(), "Echo.Say", echoParams{Text: "gone"}, &out))
}

func TestDispatch_RecoversPanics(t *testing.T) {
	s := NewServer()
	s.Register("Echo.Panic", func(ctx context.Context, req json.RawMessage) (any, error) {
		panic("bad handler")
	})

	resp := s.dispatch(Request{Method: "Echo.Panic", ID: "7"})
	assert.Equal(t, "7", resp.ID)
	assert.Equal(t, "internal error", resp.Error)
	assert.Nil(t, resp.Data)
}
