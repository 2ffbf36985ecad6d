package notify

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannel(t *testing.T) {
	id := uuid.MustParse("6f1c1a52-36a4-4c1e-9a48-8c7b0b1f2d3e")
	assert.Equal(t, "notifications:user:6f1c1a52-36a4-4c1e-9a48-8c7b0b1f2d3e", Channel(id))
}

func TestRedisPubSub_WithoutRedis(t *testing.T) {
	ps := NewRedisPubSub(nil)

	assert.NoError(t, ps.Publish(context.Background(), Message{UserID: uuid.New(), Message: "hi"}))

	ch, closeFn, err := ps.Subscribe(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, ch)
	assert.NoError(t, closeFn())
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), Message{}))

	ch, closeFn, err := Nop{}.Subscribe(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, ch)
	assert.NoError(t, closeFn())
}
