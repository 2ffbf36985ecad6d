package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNilClient_FailsSafe(t *testing.T) {
	var c *Client
	ctx := context.Background()

	data, err := c.Get(ctx, "analytics:1")
	assert.NoError(t, err)
	assert.Nil(t, data)

	assert.NoError(t, c.Set(ctx, "analytics:1", []byte("x"), time.Minute))
	assert.NoError(t, c.Delete(ctx, "analytics:1"))
	assert.NoError(t, c.Publish(ctx, "notifications:user:1", []byte("{}")))
	assert.Nil(t, c.Subscribe(ctx, "notifications:user:1"))
	assert.NoError(t, c.Ping(ctx))
	assert.NoError(t, c.Close())
}

func TestUnreachableRedis_BehavesLikeMiss(t *testing.T) {
	c := New("127.0.0.1:1", "", 0)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := c.Get(ctx, "user:1")
	assert.NoError(t, err)
	assert.Nil(t, data)
	assert.NoError(t, c.Set(ctx, "user:1", []byte("x"), time.Minute))
	assert.Error(t, c.Ping(ctx))
}
