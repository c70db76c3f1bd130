package ingestion

import (
	"fmt"
)

// SequenceValidator enforces producer sequence ordering per partition. Each
// vault's command stream is one partition; oracle price pushes get their own
// tolerant partition because feeds resend and skip freely.
// Not thread-safe; only the dispatcher goroutine touches it.
type SequenceValidator struct {
	expectedNextSeq map[string]int64
	gaps            map[string]int64
	outOfOrder      map[string]int64
}

func NewSequenceValidator() *SequenceValidator {
	return &SequenceValidator{
		expectedNextSeq: make(map[string]int64),
		gaps:            make(map[string]int64),
		outOfOrder:      make(map[string]int64),
	}
}

// ValidateCommandSequence checks strict ordering on a vault partition.
func (sv *SequenceValidator) ValidateCommandSequence(
	partition string,
	sequence int64,
	isDuplicate bool,
) error {
	expected := sv.expectedNextSeq[partition]

	if sequence < expected {
		if isDuplicate {
			// Already applied; redelivery is fine.
			return nil
		}
		sv.outOfOrder[partition]++
		return fmt.Errorf("out-of-order command: partition=%s, expected=%d, got=%d",
			partition, expected, sequence)
	}

	if sequence == expected {
		sv.expectedNextSeq[partition] = expected + 1
		return nil
	}

	sv.gaps[partition]++
	return fmt.Errorf("sequence gap: partition=%s, expected=%d, got=%d",
		partition, expected, sequence)
}

// ValidatePriceSequence checks oracle price ordering. Stale pushes are
// reported so the caller can drop them without treating it as an error;
// gaps are accepted because a missed quote is superseded by the next one.
func (sv *SequenceValidator) ValidatePriceSequence(vaultID string, sequence int64) (stale bool) {
	partition := fmt.Sprintf("price:%s", vaultID)

	expected := sv.expectedNextSeq[partition]
	if sequence < expected {
		return true
	}

	if sequence > expected+1 {
		sv.gaps[partition]++
	}

	sv.expectedNextSeq[partition] = sequence + 1
	return false
}

// ExpectedSequence returns the next expected sequence for a partition.
func (sv *SequenceValidator) ExpectedSequence(partition string) int64 {
	return sv.expectedNextSeq[partition]
}

// Cursors returns a copy of every partition cursor, for checkpointing.
func (sv *SequenceValidator) Cursors() map[string]int64 {
	cursors := make(map[string]int64, len(sv.expectedNextSeq))
	for partition, next := range sv.expectedNextSeq {
		cursors[partition] = next
	}
	return cursors
}

// SetExpectedSequence initializes a partition cursor during recovery.
func (sv *SequenceValidator) SetExpectedSequence(partition string, seq int64) {
	sv.expectedNextSeq[partition] = seq
}

// Gaps returns the gap count observed on a partition.
func (sv *SequenceValidator) Gaps(partition string) int64 {
	return sv.gaps[partition]
}
