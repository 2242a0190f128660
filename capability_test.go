package relay_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectorMux(t *testing.T) {
	t.Parallel()

	var got relay.TransportKind
	stdio := &mock.Connector{ConnectFn: func(_ context.Context, ep relay.Endpoint) (relay.Session, error) {
		got = ep.Transport
		return &mock.Session{}, nil
	}}
	mux := relay.ConnectorMux{relay.TransportStdio: stdio}

	_, err := mux.Connect(context.Background(), stdioEndpoint("math"))
	require.NoError(t, err)
	assert.Equal(t, relay.TransportStdio, got)

	_, err = mux.Connect(context.Background(), relay.Endpoint{ID: "remote", Transport: relay.TransportNATS})
	assert.ErrorIs(t, err, relay.ErrUnknownTransport)
}

func TestRemote(t *testing.T) {
	t.Parallel()

	t.Run("closes the session after a successful call", func(t *testing.T) {
		t.Parallel()
		closed := 0
		c := &mock.Connector{ConnectFn: func(context.Context, relay.Endpoint) (relay.Session, error) {
			return &mock.Session{
				InvokeFn: func(_ context.Context, name string, _ json.RawMessage) (json.RawMessage, error) {
					assert.Equal(t, "add", name)
					return json.RawMessage(`5`), nil
				},
				CloseFn: func() error { closed++; return errors.New("ignored") },
			}, nil
		}}
		out, err := relay.Remote(c, stdioEndpoint("math"), "add").Invoke(context.Background(), json.RawMessage(`{}`))
		require.NoError(t, err)
		assert.JSONEq(t, `5`, string(out))
		assert.Equal(t, 1, closed)
	})

	t.Run("closes the session when the call fails", func(t *testing.T) {
		t.Parallel()
		closed := 0
		wantErr := errors.New("Division by zero is not allowed")
		c := &mock.Connector{ConnectFn: func(context.Context, relay.Endpoint) (relay.Session, error) {
			return &mock.Session{
				InvokeFn: func(context.Context, string, json.RawMessage) (json.RawMessage, error) {
					return nil, wantErr
				},
				CloseFn: func() error { closed++; return nil },
			}, nil
		}}
		_, err := relay.Remote(c, stdioEndpoint("math"), "divide").Invoke(context.Background(), nil)
		assert.ErrorIs(t, err, wantErr)
		assert.Equal(t, 1, closed)
	})

	t.Run("connect failure is returned", func(t *testing.T) {
		t.Parallel()
		wantErr := errors.New("spawn failed")
		c := &mock.Connector{ConnectFn: func(context.Context, relay.Endpoint) (relay.Session, error) {
			return nil, wantErr
		}}
		_, err := relay.Remote(c, stdioEndpoint("math"), "add").Invoke(context.Background(), nil)
		assert.ErrorIs(t, err, wantErr)
	})
}
