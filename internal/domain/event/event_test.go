package event

import (
	"testing"
	"time"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{"created", TypeLiquidationCreated, true},
		{"submitted", TypeLiquidationSubmitted, true},
		{"resubmitted", TypeLiquidationResubmitted, true},
		{"endorsed to accounting", TypeEndorsedToAccounting, true},
		{"returned to hei", TypeReturnedToHEI, true},
		{"endorsed to coa", TypeEndorsedToCOA, true},
		{"returned to rc", TypeReturnedToRC, true},
		{"relocated", TypeTransmittalRelocated, true},
		{"unknown type", Type("unknown.type"), false},
		{"empty string", Type(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("Type.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	payload := map[string]interface{}{
		"status": "for_initial_review",
	}

	event := NewEvent(TypeLiquidationSubmitted, "liq-1", "user-9", "TES-2024-00001 submitted for review", payload)

	if event == nil {
		t.Fatal("NewEvent() returned nil")
	}

	if event.ID == "" {
		t.Error("Event ID should not be empty")
	}

	if event.Type != TypeLiquidationSubmitted {
		t.Errorf("Event Type = %v, want %v", event.Type, TypeLiquidationSubmitted)
	}

	if event.SubjectID != "liq-1" {
		t.Errorf("Event SubjectID = %v, want %v", event.SubjectID, "liq-1")
	}

	if event.ActorID != "user-9" {
		t.Errorf("Event ActorID = %v, want %v", event.ActorID, "user-9")
	}

	if event.Module != ModuleLiquidation {
		t.Errorf("Event Module = %v, want %v", event.Module, ModuleLiquidation)
	}

	if event.Payload["status"] != "for_initial_review" {
		t.Errorf("Event Payload[status] = %v, want %v", event.Payload["status"], "for_initial_review")
	}

	if event.CorrelationID != event.ID {
		t.Errorf("Event CorrelationID = %v, want it to default to the ID", event.CorrelationID)
	}

	if time.Since(event.Timestamp) > time.Second {
		t.Error("Event Timestamp should be recent")
	}
}

func TestNewEventWithCorrelation(t *testing.T) {
	event := NewEventWithCorrelation(TypeReturnedToRC, "liq-2", "user-1", "returned", nil, "corr-123")

	if event.CorrelationID != "corr-123" {
		t.Errorf("Event CorrelationID = %v, want %v", event.CorrelationID, "corr-123")
	}

	if event.SubjectID != "liq-2" {
		t.Errorf("Event SubjectID = %v, want %v", event.SubjectID, "liq-2")
	}
}

func TestEvent_WithPayload(t *testing.T) {
	original := NewEvent(TypeLiquidationCreated, "liq-1", "user-1", "created", map[string]interface{}{
		"key1": "value1",
	})

	modified := original.WithPayload("key2", "value2")

	if _, exists := original.Payload["key2"]; exists {
		t.Error("Original event should not be modified")
	}

	if modified.Payload["key1"] != "value1" || modified.Payload["key2"] != "value2" {
		t.Errorf("Modified payload = %v", modified.Payload)
	}

	if modified.ID != original.ID || modified.SubjectID != original.SubjectID {
		t.Error("Modified event should keep identity fields")
	}
}

func TestEvent_PayloadAccessors(t *testing.T) {
	event := NewEvent(TypeLiquidationCreated, "liq-1", "user-1", "created", map[string]interface{}{
		"status":  "draft",
		"int64":   int64(100),
		"int":     50,
		"float64": 75.5,
	})

	if got := event.GetPayloadString("status"); got != "draft" {
		t.Errorf("GetPayloadString(status) = %v", got)
	}
	if got := event.GetPayloadString("int"); got != "" {
		t.Errorf("GetPayloadString(int) = %v, want empty", got)
	}

	tests := []struct {
		key  string
		want int64
	}{
		{"int64", 100},
		{"int", 50},
		{"float64", 75},
		{"status", 0},
		{"missing", 0},
	}
	for _, tt := range tests {
		if got := event.GetPayloadInt(tt.key); got != tt.want {
			t.Errorf("GetPayloadInt(%v) = %v, want %v", tt.key, got, tt.want)
		}
	}
}
