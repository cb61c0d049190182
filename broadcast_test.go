package authclient_test

import (
	"sync/atomic"
	"testing"
	"time"

	authclient "github.com/goliatone/go-auth-client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBusPair(t *testing.T) (*authclient.SignalBus, *authclient.SignalBus) {
	t.Helper()

	dir := t.TempDir()

	publisher, err := authclient.NewSignalBus(dir)
	require.NoError(t, err)
	t.Cleanup(func() { publisher.Close() })

	receiver, err := authclient.NewSignalBus(dir)
	require.NoError(t, err)
	t.Cleanup(func() { receiver.Close() })

	require.NotEqual(t, publisher.SenderID(), receiver.SenderID())

	return publisher, receiver
}

func TestSignalBusDeliversToSiblingInstance(t *testing.T) {
	publisher, receiver := newBusPair(t)

	received := make(chan struct{}, 4)
	receiver.Subscribe(authclient.TopicAuthClear, func() {
		received <- struct{}{}
	})

	require.NoError(t, publisher.Publish(authclient.TopicAuthClear))

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("signal never reached the sibling instance")
	}
}

func TestSignalBusSuppressesOwnSignals(t *testing.T) {
	publisher, receiver := newBusPair(t)

	var ownFired atomic.Int32
	publisher.Subscribe(authclient.TopicAuthClear, func() {
		ownFired.Add(1)
	})

	received := make(chan struct{}, 4)
	receiver.Subscribe(authclient.TopicAuthClear, func() {
		received <- struct{}{}
	})

	require.NoError(t, publisher.Publish(authclient.TopicAuthClear))

	// wait for the sibling to see it, then confirm the publisher did not
	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("signal never reached the sibling instance")
	}

	assert.Equal(t, int32(0), ownFired.Load())
}

func TestSignalBusRoutesByTopic(t *testing.T) {
	publisher, receiver := newBusPair(t)

	clears := make(chan struct{}, 4)
	updates := make(chan struct{}, 4)
	receiver.Subscribe(authclient.TopicAuthClear, func() { clears <- struct{}{} })
	receiver.Subscribe(authclient.TopicTokenUpdate, func() { updates <- struct{}{} })

	require.NoError(t, publisher.Publish(authclient.TopicTokenUpdate))

	select {
	case <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("token update signal never arrived")
	}

	select {
	case <-clears:
		t.Fatal("auth clear handler fired for a token update signal")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSignalBusUnsubscribeIsolation(t *testing.T) {
	publisher, receiver := newBusPair(t)

	first := make(chan struct{}, 4)
	second := make(chan struct{}, 4)

	unsubFirst := receiver.Subscribe(authclient.TopicAuthClear, func() { first <- struct{}{} })
	receiver.Subscribe(authclient.TopicAuthClear, func() { second <- struct{}{} })

	unsubFirst()

	require.NoError(t, publisher.Publish(authclient.TopicAuthClear))

	select {
	case <-second:
	case <-time.After(2 * time.Second):
		t.Fatal("remaining subscriber never fired")
	}

	select {
	case <-first:
		t.Fatal("unsubscribed handler fired")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSignalBusPublishValidatesTopic(t *testing.T) {
	publisher, _ := newBusPair(t)
	assert.Error(t, publisher.Publish(""))
}

func TestNoopBroadcaster(t *testing.T) {
	bus := authclient.NoopBroadcaster{}

	assert.NoError(t, bus.Publish(authclient.TopicAuthClear))

	unsub := bus.Subscribe(authclient.TopicAuthClear, func() {
		t.Fatal("noop broadcaster must never dispatch")
	})
	unsub()
}
