package eventbus

import (
	"encoding/json"
	"testing"
)

func TestPublishDeliversInOrder(t *testing.T) {
	bus := NewBus()
	var got []EventType
	bus.Subscribe([]EventType{EventTurnsUpdated, EventWaitingChanged}, func(e *Event) {
		got = append(got, e.Type)
	})

	bus.Publish(NewEvent(EventTurnsUpdated))
	bus.Publish(NewEvent(EventAgentChanged))
	bus.Publish(NewEvent(EventWaitingChanged))

	if len(got) != 2 || got[0] != EventTurnsUpdated || got[1] != EventWaitingChanged {
		t.Errorf("delivered %v", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()
	calls := 0
	id := bus.Subscribe(nil, func(*Event) { calls++ })
	bus.Publish(NewEvent(EventTurnsUpdated))
	bus.Unsubscribe(id)
	bus.Publish(NewEvent(EventTurnsUpdated))

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestHistory(t *testing.T) {
	bus := NewBus()
	bus.historyLimit = 3
	bus.Publish(NewNotification(LevelInfo, "first"))
	bus.Publish(NewEvent(EventTurnsUpdated))
	bus.Publish(NewNotification(LevelWarning, "second"))
	bus.Publish(NewNotification(LevelError, "third"))

	all := bus.GetHistory(0)
	if len(all) != 3 || all[0].Type != EventTurnsUpdated {
		t.Fatalf("GetHistory(0) = %d events, oldest %v", len(all), all[0].Type)
	}
	if last := bus.GetHistory(1); len(last) != 1 || last[0].String("message") != "third" {
		t.Errorf("GetHistory(1) = %+v", last)
	}

	notes := bus.GetHistoryByType([]EventType{EventNotification}, 10)
	if len(notes) != 2 || notes[0].String("message") != "second" || notes[1].String("message") != "third" {
		t.Errorf("GetHistoryByType = %+v", notes)
	}
	if notes := bus.GetHistoryByType([]EventType{EventNotification}, 1); len(notes) != 1 || notes[0].String("level") != LevelError {
		t.Errorf("GetHistoryByType limit 1 = %+v", notes)
	}
}

func TestEventJSON(t *testing.T) {
	e := NewNotification(LevelError, "Could not load %s", "sessions").WithSource("chat")
	data, err := e.JSON()
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["type"] != "notification" || decoded["source"] != "chat" {
		t.Errorf("decoded = %v", decoded)
	}
	fields, _ := decoded["data"].(map[string]interface{})
	if fields["message"] != "Could not load sessions" || fields["level"] != "error" {
		t.Errorf("data = %v", fields)
	}
}
