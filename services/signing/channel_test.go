package signing

import (
	"fmt"
	"testing"
	"time"

	"github.com/bithomp/signing-sdk-go/types"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name     string
		ev       *types.StatusEvent
		want     *ChannelState
		terminal bool
	}{
		{
			name: "opened",
			ev:   &types.StatusEvent{Opened: boolPtr(true)},
			want: statePtr(ChannelOpen),
		},
		{
			name:     "signed",
			ev:       &types.StatusEvent{Signed: boolPtr(true)},
			want:     statePtr(ChannelSigned),
			terminal: true,
		},
		{
			name:     "rejected",
			ev:       &types.StatusEvent{Signed: boolPtr(false)},
			want:     statePtr(ChannelRejected),
			terminal: true,
		},
		{
			name:     "countdown zero",
			ev:       &types.StatusEvent{ExpiresInSeconds: intPtr(0)},
			want:     statePtr(ChannelExpired),
			terminal: true,
		},
		{
			name:     "expiry wins over signed",
			ev:       &types.StatusEvent{Signed: boolPtr(true), ExpiresInSeconds: intPtr(0)},
			want:     statePtr(ChannelExpired),
			terminal: true,
		},
		{
			name: "countdown running is not a transition",
			ev:   &types.StatusEvent{ExpiresInSeconds: intPtr(120)},
			want: nil,
		},
		{
			name: "empty event ignored",
			ev:   &types.StatusEvent{},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, terminal := translate(tt.ev)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("translate() = %v, want %v", got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("translate() = %v, want %v", got.String(), tt.want.String())
			}
			if terminal != tt.terminal {
				t.Errorf("terminal = %v, want %v", terminal, tt.terminal)
			}
		})
	}
}

func TestChannelStateTerminal(t *testing.T) {
	terminals := []ChannelState{ChannelSigned, ChannelRejected, ChannelExpired, ChannelErrored}
	for _, s := range terminals {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []ChannelState{ChannelConnecting, ChannelOpen} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestWatchStatusHappyPath(t *testing.T) {
	sub := newFakeSub()
	ch := watchStatus(sub)

	sub.push(&types.StatusEvent{Opened: boolPtr(true)})
	sub.push(&types.StatusEvent{Signed: boolPtr(true)})

	want := []ChannelState{ChannelConnecting, ChannelOpen, ChannelSigned}
	got := collectStates(t, ch, len(want))
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("update[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	// 终结后通道关闭且订阅被释放
	if _, ok := <-ch.Updates(); ok {
		t.Error("updates should be closed after terminal state")
	}
	if !sub.closed.Load() {
		t.Error("subscription should be closed after terminal state")
	}
}

func TestWatchStatusDeduplicatesOpen(t *testing.T) {
	sub := newFakeSub()
	ch := watchStatus(sub)

	// 钱包反复推送 opened 也只折叠为一次 Open 转移
	for i := 0; i < 5; i++ {
		sub.push(&types.StatusEvent{Opened: boolPtr(true)})
	}
	sub.push(&types.StatusEvent{Signed: boolPtr(false)})

	want := []ChannelState{ChannelConnecting, ChannelOpen, ChannelRejected}
	got := collectStates(t, ch, len(want))
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("update[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if _, ok := <-ch.Updates(); ok {
		t.Error("updates should be closed after terminal state")
	}
}

func TestWatchStatusTransportDrop(t *testing.T) {
	sub := newFakeSub()
	ch := watchStatus(sub)

	sub.drop(fmt.Errorf("connection reset"))

	want := []ChannelState{ChannelConnecting, ChannelErrored}
	got := collectStates(t, ch, len(want))
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("update[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func statePtr(s ChannelState) *ChannelState { return &s }

func collectStates(t *testing.T, ch *statusChannel, n int) []ChannelState {
	t.Helper()
	var got []ChannelState
	for len(got) < n {
		select {
		case s, ok := <-ch.Updates():
			if !ok {
				t.Fatalf("updates closed after %d states, want %d", len(got), n)
			}
			got = append(got, s)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d states, want %d", len(got), n)
		}
	}
	return got
}
