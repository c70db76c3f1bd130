package ingestion_test

import (
	"testing"

	"stokenvault/internal/ingestion"
)

// ============================================================
// Command partition ordering
// ============================================================

func TestCommandSequenceAdvancesInOrder(t *testing.T) {
	sv := ingestion.NewSequenceValidator()

	for seq := int64(0); seq < 5; seq++ {
		if err := sv.ValidateCommandSequence("vault-a", seq, false); err != nil {
			t.Fatalf("sequence %d rejected: %v", seq, err)
		}
	}

	if got := sv.ExpectedSequence("vault-a"); got != 5 {
		t.Errorf("expected sequence got %d, want %d", got, 5)
	}
}

func TestCommandSequenceGapRejected(t *testing.T) {
	sv := ingestion.NewSequenceValidator()

	if err := sv.ValidateCommandSequence("vault-a", 0, false); err != nil {
		t.Fatalf("sequence 0 rejected: %v", err)
	}
	if err := sv.ValidateCommandSequence("vault-a", 3, false); err == nil {
		t.Error("gap (expected 1, got 3) was accepted")
	}
	if got := sv.Gaps("vault-a"); got != 1 {
		t.Errorf("gap count got %d, want %d", got, 1)
	}

	// The cursor must not advance past a rejected gap.
	if err := sv.ValidateCommandSequence("vault-a", 1, false); err != nil {
		t.Errorf("sequence 1 rejected after gap: %v", err)
	}
}

func TestCommandSequenceReplayOfDuplicateAccepted(t *testing.T) {
	sv := ingestion.NewSequenceValidator()

	if err := sv.ValidateCommandSequence("vault-a", 0, false); err != nil {
		t.Fatalf("sequence 0 rejected: %v", err)
	}

	// A redelivered, already-applied command may carry an old sequence.
	if err := sv.ValidateCommandSequence("vault-a", 0, true); err != nil {
		t.Errorf("duplicate replay rejected: %v", err)
	}

	// The same old sequence without the duplicate flag is out of order.
	if err := sv.ValidateCommandSequence("vault-a", 0, false); err == nil {
		t.Error("out-of-order non-duplicate was accepted")
	}
}

func TestCommandSequencePartitionsAreIndependent(t *testing.T) {
	sv := ingestion.NewSequenceValidator()

	if err := sv.ValidateCommandSequence("vault-a", 0, false); err != nil {
		t.Fatalf("vault-a sequence 0 rejected: %v", err)
	}
	if err := sv.ValidateCommandSequence("vault-b", 0, false); err != nil {
		t.Errorf("vault-b sequence 0 rejected: %v", err)
	}
}

// ============================================================
// Oracle price partition
// ============================================================

func TestPriceSequenceToleratesGaps(t *testing.T) {
	sv := ingestion.NewSequenceValidator()

	if stale := sv.ValidatePriceSequence("vault-a", 0); stale {
		t.Error("sequence 0 reported stale")
	}
	// A skipped quote is superseded by the next one.
	if stale := sv.ValidatePriceSequence("vault-a", 7); stale {
		t.Error("gapped sequence 7 reported stale")
	}
	if got := sv.Gaps("price:vault-a"); got != 1 {
		t.Errorf("gap count got %d, want %d", got, 1)
	}
}

func TestPriceSequenceDropsStaleQuotes(t *testing.T) {
	sv := ingestion.NewSequenceValidator()

	sv.ValidatePriceSequence("vault-a", 10)

	if stale := sv.ValidatePriceSequence("vault-a", 4); !stale {
		t.Error("stale quote (4 after 10) not reported")
	}
	if stale := sv.ValidatePriceSequence("vault-a", 11); stale {
		t.Error("in-order quote 11 reported stale")
	}
}

// ============================================================
// Recovery
// ============================================================

func TestCursorsRoundTripThroughCheckpoint(t *testing.T) {
	sv := ingestion.NewSequenceValidator()
	sv.ValidateCommandSequence("vault-a", 0, false)
	sv.ValidateCommandSequence("vault-a", 1, false)
	sv.ValidatePriceSequence("vault-a", 3)

	restored := ingestion.NewSequenceValidator()
	for partition, next := range sv.Cursors() {
		restored.SetExpectedSequence(partition, next)
	}

	if err := restored.ValidateCommandSequence("vault-a", 2, false); err != nil {
		t.Errorf("restored cursor rejected next command: %v", err)
	}
	if stale := restored.ValidatePriceSequence("vault-a", 2); !stale {
		t.Error("restored price cursor accepted a stale quote")
	}
}
