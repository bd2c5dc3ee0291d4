package auditlog

import (
	"net"
	"testing"
	"time"
)

func sampleEvent() Event {
	return Event{
		OccurredAt:   time.Unix(1700000000, 0).UTC(),
		Actor:        "alice@example.com",
		Action:       ActionRunTriggered,
		ResourceType: "run",
		ResourceID:   "0191d7a2-0000-7000-8000-000000000001",
		RequestID:    "req-123",
		IP:           net.ParseIP("192.0.2.1"),
		UserAgent:    "flowlane-client/1.0",
	}
}

func TestComputeIntegritySHA256_Deterministic(t *testing.T) {
	payloadJSON := []byte(`{"pipeline":"training_pipeline","templateId":"tpl-1"}`)

	a, err := ComputeIntegritySHA256(sampleEvent(), payloadJSON)
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	b, err := ComputeIntegritySHA256(sampleEvent(), payloadJSON)
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	if a != b {
		t.Fatalf("integrity mismatch: %q vs %q", a, b)
	}
}

func TestComputeIntegritySHA256_ChangesOnPayload(t *testing.T) {
	a, err := ComputeIntegritySHA256(sampleEvent(), []byte(`{"kind":"cycle"}`))
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	b, err := ComputeIntegritySHA256(sampleEvent(), []byte(`{"kind":"type_mismatch"}`))
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	if a == b {
		t.Fatalf("expected integrity to differ")
	}
}

func TestEvent_Validate(t *testing.T) {
	if err := sampleEvent().Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}

	missing := sampleEvent()
	missing.Actor = "  "
	if err := missing.Validate(); err == nil {
		t.Fatalf("expected error for blank actor")
	}

	missing = sampleEvent()
	missing.Action = ""
	if err := missing.Validate(); err == nil {
		t.Fatalf("expected error for blank action")
	}
}
