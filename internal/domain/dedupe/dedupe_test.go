package dedupe

import (
	"context"
	"testing"
)

func TestSeenAndRecord(t *testing.T) {
	ctx := context.Background()
	d := New()

	if d.SeenAndRecord(ctx, "ev-1", "c-1") {
		t.Error("first registration should not be seen")
	}
	if !d.SeenAndRecord(ctx, "ev-1", "c-1") {
		t.Error("repeat registration should be seen")
	}

	// Same person under a different event is a distinct pair.
	if d.SeenAndRecord(ctx, "ev-2", "c-1") {
		t.Error("same constituent in another event should not be seen")
	}
	// Different person under the same event likewise.
	if d.SeenAndRecord(ctx, "ev-1", "c-2") {
		t.Error("another constituent in the same event should not be seen")
	}

	if got := d.Size(); got != 3 {
		t.Errorf("expected 3 recorded pairs, got %d", got)
	}
}
