package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestEventPublishingAndSubscribing creates EventEmitter objects, subscribes EventHandler callbacks to them,
// and ensures that events are received as intended, both by direct subscribers and by global ones.
func TestEventPublishingAndSubscribing(t *testing.T) {
	// Define some event types
	type installEvent struct{ module string }
	type dispatchEvent struct{ succeeded bool }

	// Create event emitters for both events.
	var installEmitter1, installEmitter2 EventEmitter[installEvent]
	var dispatchEmitter EventEmitter[dispatchEvent]

	// Track how many callbacks each subscription receives.
	var installCount1, installCount2, dispatchCount, globalInstallCount, globalDispatchCount int

	// Subscribe callbacks for each emitter, plus global subscriptions spanning all emitters of a type.
	installEmitter1.Subscribe(func(event installEvent) {
		installCount1++
	})
	installEmitter2.Subscribe(func(event installEvent) {
		installCount2++
	})
	dispatchEmitter.Subscribe(func(event dispatchEvent) {
		dispatchCount++
	})
	SubscribeAny(func(event installEvent) {
		globalInstallCount++
	})
	SubscribeAny(func(event dispatchEvent) {
		globalDispatchCount++
	})

	// Publish events a given amount of times.
	const (
		expectedInstallCount1 = 2
		expectedInstallCount2 = 5
		expectedDispatchCount = 9
	)
	for i := 0; i < expectedInstallCount1; i++ {
		installEmitter1.Publish(installEvent{module: "counter"})
	}
	for i := 0; i < expectedInstallCount2; i++ {
		installEmitter2.Publish(installEvent{module: "recorder"})
	}
	for i := 0; i < expectedDispatchCount; i++ {
		dispatchEmitter.Publish(dispatchEvent{succeeded: true})
	}

	// Assert we received the expected amount of callbacks.
	assert.EqualValues(t, expectedInstallCount1, installCount1)
	assert.EqualValues(t, expectedInstallCount2, installCount2)
	assert.EqualValues(t, expectedDispatchCount, dispatchCount)
	assert.EqualValues(t, expectedInstallCount1+expectedInstallCount2, globalInstallCount)
	assert.EqualValues(t, expectedDispatchCount, globalDispatchCount)
}

// TestEventSubscriberOrdering ensures subscribers are invoked in subscription order.
func TestEventSubscriberOrdering(t *testing.T) {
	type orderedEvent struct{}
	var emitter EventEmitter[orderedEvent]

	var order []int
	for i := 0; i < 3; i++ {
		index := i
		emitter.Subscribe(func(event orderedEvent) {
			order = append(order, index)
		})
	}

	emitter.Publish(orderedEvent{})
	assert.EqualValues(t, []int{0, 1, 2}, order)
}
