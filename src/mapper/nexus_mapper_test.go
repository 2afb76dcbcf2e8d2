package mapper

import (
	"testing"

	logger "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"orderexecutor/src/model"
)

func TestMapNexusStatusKnown(t *testing.T) {
	cases := map[string]string{
		"pending_new":      model.OrderStatusPending,
		"pending_cancel":   model.OrderStatusPending,
		"accepted":         model.OrderStatusSubmitted,
		"new":              model.OrderStatusSubmitted,
		"open":             model.OrderStatusSubmitted,
		"partially_filled": model.OrderStatusPartialFill,
		"filled":           model.OrderStatusFilled,
		"done":             model.OrderStatusFilled,
		"canceled":         model.OrderStatusCancelled,
		"rejected":         model.OrderStatusRejected,
		"expired":          model.OrderStatusExpired,
	}

	for vendor, want := range cases {
		if got := MapNexusStatus(vendor); got != want {
			t.Errorf("MapNexusStatus(%q) = %q, want %q", vendor, got, want)
		}
	}
}

func TestMapNexusStatusUnknownWarnsOnce(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	got := MapNexusStatus("halted_by_exchange")
	if got != model.OrderStatusPending {
		t.Fatalf("expected unmapped status to fall back to PENDING, got %q", got)
	}

	entries := hook.AllEntries()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	if entries[0].Level != logger.WarnLevel {
		t.Errorf("expected warning level, got %v", entries[0].Level)
	}
	if entries[0].Data["vendor_status"] != "halted_by_exchange" {
		t.Errorf("expected the original vendor status to be logged, got %v", entries[0].Data["vendor_status"])
	}
}
