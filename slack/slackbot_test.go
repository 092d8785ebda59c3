package latticeslack

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlackBot_ServeStopsWithContext(t *testing.T) {
	bot := NewSlackBot("xapp-test", "xoxb-test", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		bot.serve(ctx)
		close(done)
	}()

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestSlackBot_ServeStopsWhenEventsClose(t *testing.T) {
	bot := NewSlackBot("xapp-test", "xoxb-test", nil)
	close(bot.socketClient.Events)

	done := make(chan struct{})
	go func() {
		bot.serve(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("serve did not return after the event channel closed")
	}
}
