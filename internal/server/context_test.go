package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerContext_LoadsOnce(t *testing.T) {
	var loads atomic.Int32
	release := make(chan struct{})
	mail := newFakeMail()

	sc := NewServerContext(context.Background(), func(context.Context) (MailClient, error) {
		loads.Add(1)
		<-release
		return mail, nil
	}, nil, nil)
	assert.False(t, sc.HasClient())

	var wg sync.WaitGroup
	clients := make([]MailClient, 8)
	for i := range clients {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := sc.MailClient(context.Background())
			assert.NoError(t, err)
			clients[i] = c
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
	for _, c := range clients {
		assert.Same(t, mail, c)
	}
	assert.True(t, sc.HasClient())

	_, err := sc.MailClient(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), loads.Load(), "cached client is reused")
}

func TestServerContext_FailureIsNotCached(t *testing.T) {
	var loads atomic.Int32
	mail := newFakeMail()

	sc := NewServerContext(context.Background(), func(context.Context) (MailClient, error) {
		if loads.Add(1) == 1 {
			return nil, errors.New("open credentials.json: no such file or directory")
		}
		return mail, nil
	}, nil, nil)

	_, err := sc.MailClient(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize Gmail client")
	assert.False(t, sc.HasClient())

	c, err := sc.MailClient(context.Background())
	require.NoError(t, err)
	assert.Same(t, mail, c)
	assert.Equal(t, int32(2), loads.Load())
}

func TestServerContext_CallerCancellation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	sc := NewServerContext(context.Background(), func(context.Context) (MailClient, error) {
		<-release
		return newFakeMail(), nil
	}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sc.MailClient(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestServerContext_Shutdown(t *testing.T) {
	sc := NewServerContext(context.Background(), func(context.Context) (MailClient, error) {
		return newFakeMail(), nil
	}, nil, nil)

	_, err := sc.MailClient(context.Background())
	require.NoError(t, err)

	require.NoError(t, sc.Shutdown())
	require.NoError(t, sc.Shutdown(), "shutdown is idempotent")

	assert.True(t, sc.IsShutdown())
	assert.False(t, sc.HasClient())
	assert.Error(t, sc.Context().Err())

	_, err = sc.MailClient(context.Background())
	assert.ErrorIs(t, err, ErrShutdown)
}
