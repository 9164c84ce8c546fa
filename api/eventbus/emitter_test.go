package eventbus

import (
	"testing"
	"time"

	"github.com/bluetuith-org/gatt-exchange/api/bluetooth"
)

func TestEmitterPublishSubscribe(t *testing.T) {
	e := New()
	defer e.Close()

	sub := e.Subscribe(DeviceSeenEvent)
	defer sub.Unsubscribe()

	if !sub.Active() {
		t.Fatalf("subscription should be active")
	}

	adv := bluetooth.Advertisement{ID: "AA:BB:CC:DD:EE:FF", Name: "sensor"}
	e.Publish(DeviceSeenEvent, adv)
	e.Publish(TargetMatchedEvent, adv)

	select {
	case ev := <-sub.C:
		got, ok := ev.(bluetooth.Advertisement)
		if !ok || got.ID != adv.ID {
			t.Errorf("unexpected event data: %#v", ev)
		}

	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
	}

	select {
	case ev := <-sub.C:
		t.Errorf("received event from another topic: %#v", ev)

	case <-time.After(20 * time.Millisecond):
	}
}

func TestDisabledEmitter(t *testing.T) {
	e := Disabled()
	e.Publish(DeviceSeenEvent, nil)

	sub := e.Subscribe(DeviceSeenEvent)
	if sub.Active() {
		t.Errorf("disabled subscription should not be active")
	}
	if _, ok := <-sub.C; ok {
		t.Errorf("disabled subscription channel should be closed")
	}

	var nilEmitter *Emitter
	nilEmitter.Publish(DeviceSeenEvent, nil)
	if _, ok := <-nilEmitter.Subscribe(DeviceSeenEvent).C; ok {
		t.Errorf("nil emitter subscription channel should be closed")
	}
}

func TestEventNames(t *testing.T) {
	for ev := ScanStartedEvent; ev <= DisconnectedEvent; ev++ {
		if ev.String() == "none" {
			t.Errorf("event %d has no name", ev)
		}
	}
	if EventNone.String() != "none" {
		t.Errorf("EventNone.String() = %q", EventNone.String())
	}
}

func TestDisableEvents(t *testing.T) {
	e := New()
	defer e.Close()

	sub := e.Subscribe(StepCompletedEvent)
	sub.Unsubscribe()
	if sub.Active() {
		t.Errorf("subscription is active after Unsubscribe()")
	}
	sub.Unsubscribe()

	e.DisableEvents()
	e.Publish(StepCompletedEvent, StepData{Index: 0})

	disabled := e.Subscribe(StepCompletedEvent)
	if disabled.Active() {
		t.Errorf("subscription of a disabled emitter is active")
	}
	if _, ok := <-disabled.C; ok {
		t.Errorf("subscription channel of a disabled emitter should be closed")
	}
}
