package notifier

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case key, ok := <-ch:
		require.True(t, ok, "channel closed")
		return key
	case <-time.After(100 * time.Millisecond):
		t.Fatal("no notification received")
		return ""
	}
}

func TestNotifier_SubscribeUnsubscribe(t *testing.T) {
	n := New()

	ch := n.Subscribe()
	require.NotNil(t, ch)
	assert.Equal(t, 1, n.Len())

	n.Unsubscribe(ch)
	assert.Equal(t, 0, n.Len())

	_, ok := <-ch
	assert.False(t, ok)

	// A second unsubscribe must not panic on a closed channel.
	assert.NotPanics(t, func() { n.Unsubscribe(ch) })
}

func TestNotifier_NotifyAll(t *testing.T) {
	n := New()
	ch1 := n.Subscribe()
	ch2 := n.Subscribe()
	defer n.Unsubscribe(ch1)
	defer n.Unsubscribe(ch2)

	n.Notify("file:/tmp/p.json")

	assert.Equal(t, "file:/tmp/p.json", receive(t, ch1))
	assert.Equal(t, "file:/tmp/p.json", receive(t, ch2))
}

func TestNotifier_NotifyNonBlocking(t *testing.T) {
	n := New()
	ch := n.Subscribe()
	defer n.Unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		n.Notify("first")
		n.Notify("second")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Notify blocked on a full listener")
	}

	// The pending key is kept, later ones are dropped.
	assert.Equal(t, "first", receive(t, ch))
}

func TestNotifier_Close(t *testing.T) {
	n := New()
	ch := n.Subscribe()

	n.Close()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, n.Len())

	late := n.Subscribe()
	_, ok = <-late
	assert.False(t, ok)

	assert.NotPanics(t, func() {
		n.Close()
		n.Notify("ignored")
		n.Unsubscribe(ch)
	})
}

func TestNotifier_Concurrent(t *testing.T) {
	n := New()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := n.Subscribe()
			n.Notify("k")
			n.Unsubscribe(ch)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, n.Len())
}
