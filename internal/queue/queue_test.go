package queue

import (
	"encoding/json"
	"testing"
)

func TestPushMessageValidate(t *testing.T) {
	msg := PushMessage{PushID: "p1", CorrelationID: "c1"}
	if err := msg.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	msg.PushID = ""
	if err := msg.Validate(); err == nil {
		t.Fatal("expected error for empty push id")
	}

	msg.PushID = "   "
	if err := msg.Validate(); err == nil {
		t.Fatal("expected error for blank push id")
	}

	msg = PushMessage{PushID: "p1"}
	if err := msg.Validate(); err != nil {
		t.Fatalf("correlation id must be optional, got error: %v", err)
	}
}

func TestPushMessageJSONShape(t *testing.T) {
	raw, err := json.Marshal(PushMessage{PushID: "p1", CorrelationID: "c1"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"pushId":"p1","correlationId":"c1"}`
	if string(raw) != want {
		t.Fatalf("payload = %s, want %s", raw, want)
	}

	raw, err = json.Marshal(PushMessage{PushID: "p1"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want = `{"pushId":"p1"}`
	if string(raw) != want {
		t.Fatalf("payload = %s, want %s", raw, want)
	}
}

func TestQueueNames(t *testing.T) {
	if WorkQueueName != "push" {
		t.Fatalf("WorkQueueName = %s, want push", WorkQueueName)
	}
	if DLQName != "dlq.push" {
		t.Fatalf("DLQName = %s, want dlq.push", DLQName)
	}
}
