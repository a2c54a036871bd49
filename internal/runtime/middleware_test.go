package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	configpkg "github.com/drblury/geobridge/internal/runtime/config"
	metadatapkg "github.com/drblury/geobridge/internal/runtime/metadata"
	transportpkg "github.com/drblury/geobridge/internal/runtime/transport"
)

func TestLogMessagesMiddleware(t *testing.T) {
	logger := newRecordingLogger()
	called := false
	h := logMessagesMiddleware(logger)(func(msg *message.Message) ([]*message.Message, error) {
		called = true
		return nil, nil
	})

	msg := message.NewMessage("m1", []byte{0x0a, 0x02})
	msg.Metadata.Set(metadatapkg.KeyQueryID, "q1")
	_, err := h(msg)
	require.NoError(t, err)
	assert.True(t, called)

	entry, ok := logger.find("Handling message")
	require.True(t, ok)
	assert.Equal(t, "trace", entry.level)
	assert.Equal(t, "m1", entry.fields["message_uuid"])
	assert.Equal(t, 2, entry.fields["payload_bytes"])
	assert.Equal(t, "q1", entry.fields["query_id"])
	assert.NotContains(t, entry.fields, "schema")
}

func TestTracerMiddlewarePassesThrough(t *testing.T) {
	wantErr := errors.New("handler failed")
	var seen *message.Message
	h := tracerMiddleware()(func(msg *message.Message) ([]*message.Message, error) {
		seen = msg
		return nil, wantErr
	})

	msg := message.NewMessage("m1", nil)
	_, err := h(msg)
	assert.ErrorIs(t, err, wantErr)
	assert.Same(t, msg, seen)
	assert.NotNil(t, seen.Context())
}

func TestRegisterMiddleware(t *testing.T) {
	ps := newChannelPubSub(t)
	svc, _ := newTestService(t, ps, ServiceDependencies{Resolver: &stubResolver{}})

	err := svc.RegisterMiddleware(MiddlewareRegistration{Name: "empty"})
	assert.ErrorIs(t, err, ErrEmptyMiddleware)

	builderErr := errors.New("boom")
	err = svc.RegisterMiddleware(MiddlewareRegistration{
		Builder: func(*Service) (message.HandlerMiddleware, error) { return nil, builderErr },
	})
	assert.ErrorIs(t, err, builderErr)

	assert.NoError(t, svc.RegisterMiddleware(MiddlewareRegistration{
		Builder: func(*Service) (message.HandlerMiddleware, error) { return nil, nil },
	}))

	var bare Service
	assert.ErrorIs(t, bare.RegisterMiddleware(RecovererMiddleware()), ErrRouterNotInitialised)
}

func TestCustomMiddlewareErrorFailsConstruction(t *testing.T) {
	ps := newChannelPubSub(t)
	_, err := NewService(configpkg.Default(), newRecordingLogger(), context.TODO(), ServiceDependencies{
		Resolver:         &stubResolver{},
		TransportFactory: transportpkg.Static(transportpkg.Transport{Publisher: ps, Subscriber: ps}),
		Middlewares: []MiddlewareRegistration{{
			Builder: func(*Service) (message.HandlerMiddleware, error) { return nil, errors.New("bad") },
		}},
		DisableDefaultMiddlewares: true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register middleware anonymous_middleware: bad")
}
