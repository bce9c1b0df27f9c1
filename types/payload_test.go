package types

import (
	"encoding/json"
	"testing"
)

func TestTxLookupUnmarshal(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		validated bool
		ledgerIdx uint32
	}{
		{
			name:      "ledger_index field",
			body:      `{"validated": true, "ledger_index": 81000000}`,
			validated: true,
			ledgerIdx: 81000000,
		},
		{
			name:      "legacy inLedger field",
			body:      `{"validated": true, "inLedger": 81000001}`,
			validated: true,
			ledgerIdx: 81000001,
		},
		{
			name:      "ledger_index wins over inLedger",
			body:      `{"validated": true, "ledger_index": 5, "inLedger": 6}`,
			validated: true,
			ledgerIdx: 5,
		},
		{
			name:      "not yet validated",
			body:      `{"validated": false}`,
			validated: false,
			ledgerIdx: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var lookup TxLookup
			if err := json.Unmarshal([]byte(tt.body), &lookup); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if lookup.Validated != tt.validated {
				t.Errorf("Validated = %v, want %v", lookup.Validated, tt.validated)
			}
			if lookup.LedgerIndex != tt.ledgerIdx {
				t.Errorf("LedgerIndex = %d, want %d", lookup.LedgerIndex, tt.ledgerIdx)
			}
		})
	}
}

func TestStatusEventUnmarshalOptionalFields(t *testing.T) {
	var ev StatusEvent
	if err := json.Unmarshal([]byte(`{"opened": true}`), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Opened == nil || !*ev.Opened {
		t.Errorf("Opened = %v", ev.Opened)
	}
	if ev.Signed != nil || ev.ExpiresInSeconds != nil {
		t.Errorf("unexpected fields set: %+v", ev)
	}
}

func TestIsServiceError(t *testing.T) {
	se := &ServiceError{Code: "PAYLOAD_NOT_FOUND", Message: "payload not found", Status: 404}

	got, ok := IsServiceError(se)
	if !ok || got.Code != "PAYLOAD_NOT_FOUND" {
		t.Fatalf("IsServiceError = %v, %v", got, ok)
	}

	if _, ok := IsServiceError(json.Unmarshal([]byte("x"), &struct{}{})); ok {
		t.Fatal("plain error detected as service error")
	}
}
