package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-battles/internal/killmails/models"
)

func TestBroadcasterFanout(t *testing.T) {
	b := NewBroadcaster(nil)

	ch1, cancel1 := b.Subscribe()
	ch2, cancel2 := b.Subscribe()
	defer cancel1()
	defer cancel2()

	b.fanout(models.KillmailEvent{KillmailID: 128000001})

	for _, ch := range []<-chan models.KillmailEvent{ch1, ch2} {
		select {
		case got := <-ch:
			assert.Equal(t, int64(128000001), got.KillmailID)
		default:
			t.Fatal("subscriber did not receive the event")
		}
	}
}

func TestBroadcasterUnsubscribe(t *testing.T) {
	b := NewBroadcaster(nil)

	ch, cancel := b.Subscribe()
	cancel()

	b.fanout(models.KillmailEvent{KillmailID: 1})

	select {
	case <-ch:
		t.Fatal("cancelled subscriber still receives events")
	default:
	}
}

func TestBroadcasterDropsOnFullBuffer(t *testing.T) {
	b := NewBroadcaster(nil)

	ch, cancel := b.Subscribe()
	defer cancel()

	// Fill the buffer and then some; fanout must never block.
	for i := 0; i < subscriberBuffer+10; i++ {
		b.fanout(models.KillmailEvent{KillmailID: int64(i)})
	}

	require.Len(t, ch, subscriberBuffer)
	first := <-ch
	assert.Equal(t, int64(0), first.KillmailID, "oldest delta kept, newest dropped")
}
