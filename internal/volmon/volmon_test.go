package volmon

import (
	"context"
	"os"
	"testing"

	"github.com/pilebones/go-udev/netlink"

	"attune/internal/logging"
)

func TestNewRequiresCallbacks(t *testing.T) {
	if m := New(logging.NewNop(), nil, nil); m != nil {
		t.Error("expected nil monitor without callbacks")
	}
	if m := New(logging.NewNop(), func() []string { return nil }, nil); m != nil {
		t.Error("expected nil monitor without handler")
	}
}

func TestNilMonitorIsSafe(t *testing.T) {
	var m *Monitor
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start on nil monitor: %v", err)
	}
	m.Stop()
	if m.Running() {
		t.Error("nil monitor must not report running")
	}
}

func TestStopUnstartedIsSafe(t *testing.T) {
	m := New(logging.NewNop(), func() []string { return nil }, func(string) {})
	m.Stop()
	m.Stop()
	if m.Running() {
		t.Error("unstarted monitor must not report running")
	}
}

func TestBuildMatcher(t *testing.T) {
	m := New(logging.NewNop(), func() []string { return nil }, func(string) {})
	matcher := m.buildMatcher()

	removeEvent := netlink.UEvent{
		Action: netlink.REMOVE,
		Env:    map[string]string{"SUBSYSTEM": "block"},
	}
	if !matcher.Evaluate(removeEvent) {
		t.Error("expected matcher to accept block remove event")
	}

	addEvent := netlink.UEvent{
		Action: netlink.ADD,
		Env:    map[string]string{"SUBSYSTEM": "block"},
	}
	if matcher.Evaluate(addEvent) {
		t.Error("expected matcher to reject add events")
	}

	otherSubsystem := netlink.UEvent{
		Action: netlink.REMOVE,
		Env:    map[string]string{"SUBSYSTEM": "usb"},
	}
	if matcher.Evaluate(otherSubsystem) {
		t.Error("expected matcher to reject non-block events")
	}
}

func TestHandleEventReportsMissingRoots(t *testing.T) {
	present := t.TempDir()
	absent := t.TempDir()
	if err := os.RemoveAll(absent); err != nil {
		t.Fatalf("remove: %v", err)
	}

	var reported []string
	m := New(logging.NewNop(),
		func() []string { return []string{present, absent} },
		func(root string) { reported = append(reported, root) })

	m.handleEvent(netlink.UEvent{
		Action: netlink.REMOVE,
		Env:    map[string]string{"SUBSYSTEM": "block", "DEVNAME": "/dev/sdb1"},
	})

	if len(reported) != 1 || reported[0] != absent {
		t.Fatalf("expected only the missing root to be reported, got %v", reported)
	}
}
