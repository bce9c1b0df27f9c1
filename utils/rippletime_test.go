package utils

import (
	"testing"
	"time"
)

func TestRippleTimeRoundTrip(t *testing.T) {
	// 账本纪元起点
	if got := RippleTimeToTime(0); !got.Equal(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("RippleTimeToTime(0) = %v", got)
	}

	now := time.Now().Truncate(time.Second).UTC()
	if got := RippleTimeToTime(TimeToRippleTime(now)); !got.Equal(now) {
		t.Errorf("round trip: %v != %v", got, now)
	}
}

func TestMemoHexRoundTrip(t *testing.T) {
	encoded := EncodeMemoHex("signing-sdk-go")
	if encoded != "7369676E696E672D73646B2D676F" {
		t.Errorf("EncodeMemoHex = %q", encoded)
	}

	decoded, err := DecodeMemoHex(encoded)
	if err != nil || decoded != "signing-sdk-go" {
		t.Errorf("DecodeMemoHex = %q, %v", decoded, err)
	}

	if _, err := DecodeMemoHex("zz"); err == nil {
		t.Error("expected error for invalid hex")
	}
}
