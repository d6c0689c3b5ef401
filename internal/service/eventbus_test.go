package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bnema/upscaler/internal/domain"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe("job-1")
	other := bus.Subscribe("job-2")

	bus.Publish("job-1", domain.Event{JobID: "job-1", State: domain.JobStateProcessing, Progress: 10})

	ev := <-ch
	assert.Equal(t, 10, ev.Progress)
	assert.Empty(t, other)
	assert.Equal(t, 1, bus.Subscribers("job-1"))
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe("job-1")

	bus.Unsubscribe("job-1", ch)

	_, open := <-ch
	assert.False(t, open, "channel is closed on unsubscribe")
	assert.Equal(t, 0, bus.Subscribers("job-1"))
	assert.NotPanics(t, func() { bus.Publish("job-1", domain.Event{}) })
}

func TestEventBus_SlowSubscriberDropsEvents(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe("job-1")

	for i := 0; i < 100; i++ {
		bus.Publish("job-1", domain.Event{Progress: i})
	}

	assert.Len(t, ch, cap(ch))
}
