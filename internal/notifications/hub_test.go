package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_RegisterLimitsAndUnregister(t *testing.T) {
	hub := NewHub()

	var clients []*Client
	for i := 0; i < maxConnsPerActor; i++ {
		c, err := hub.Register(1, nil)
		require.NoError(t, err)
		clients = append(clients, c)
	}
	_, err := hub.Register(1, nil)
	assert.Error(t, err)
	assert.Equal(t, maxConnsPerActor, hub.Connections())

	hub.UnregisterClient(clients[0])
	hub.UnregisterClient(clients[0])
	assert.Equal(t, maxConnsPerActor-1, hub.Connections())

	require.NoError(t, hub.Shutdown(context.Background()))
	assert.Equal(t, 0, hub.Connections())

	_, err = hub.Register(2, nil)
	assert.Error(t, err)
}

func TestHub_BroadcastAllAndDropWhenFull(t *testing.T) {
	hub := NewHub()
	a, err := hub.Register(1, nil)
	require.NoError(t, err)
	b, err := hub.Register(2, nil)
	require.NoError(t, err)

	hub.BroadcastAll([]byte(`{"type":"notify"}`))
	assert.Equal(t, `{"type":"notify"}`, string(<-a.Send))
	assert.Equal(t, `{"type":"notify"}`, string(<-b.Send))

	for i := 0; i < cap(a.Send)+5; i++ {
		a.TrySend([]byte("x"))
	}
	assert.Len(t, a.Send, cap(a.Send))
}

func TestHub_StartWiringRelaysValidMessages(t *testing.T) {
	n, _ := newTestNotifier(t)
	hub := NewHub()
	client, err := hub.Register(1, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, hub.StartWiring(ctx, n))

	n.Notify(ctx, 77, "new reply", "")
	select {
	case payload := <-client.Send:
		assert.Contains(t, string(payload), `"user_id":77`)
	case <-time.After(time.Second):
		t.Fatal("message not relayed")
	}

	require.NoError(t, n.PublishUser(ctx, 77, "not json"))
	assert.Never(t, func() bool { return len(client.Send) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}
