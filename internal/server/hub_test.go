package server

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"meshdiag/internal/model"
)

func TestHub_RegisterQueuesFirstEventBeforeBroadcasts(t *testing.T) {
	t.Parallel()

	h := newHub(zap.NewNop())
	node := model.NodeID(0x1001)
	sub := &subscriber{send: make(chan []byte, sendBuffer), node: &node}

	var seen *model.NodeID
	require.NoError(t, h.register(sub, func(n *model.NodeID) ([]byte, error) {
		seen = n
		return []byte("first"), nil
	}))
	assert.Same(t, &node, seen)
	assert.Equal(t, 1, h.size())

	h.broadcast(func(*model.NodeID) ([]byte, error) { return []byte("reload"), nil })
	assert.Equal(t, "first", string(<-sub.send))
	assert.Equal(t, "reload", string(<-sub.send))
}

func TestHub_RegisterFailures(t *testing.T) {
	t.Parallel()

	h := newHub(zap.NewNop())
	boom := errors.New("boom")
	sub := &subscriber{send: make(chan []byte, sendBuffer)}
	err := h.register(sub, func(*model.NodeID) ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, h.size())

	h.close()
	err = h.register(sub, func(*model.NodeID) ([]byte, error) { return []byte("x"), nil })
	assert.ErrorIs(t, err, errHubClosed)
	assert.Equal(t, 0, h.size())
}

func TestHub_BroadcastDropsSlowSubscriber(t *testing.T) {
	t.Parallel()

	h := newHub(zap.NewNop())
	sub := &subscriber{send: make(chan []byte, 1)}
	require.NoError(t, h.register(sub, func(*model.NodeID) ([]byte, error) { return []byte("first"), nil }))

	h.broadcast(func(*model.NodeID) ([]byte, error) { return []byte("reload"), nil })
	assert.Equal(t, 0, h.size())

	assert.Equal(t, "first", string(<-sub.send))
	_, ok := <-sub.send
	assert.False(t, ok)
}
