package selection

import (
	"errors"
	"fmt"

	"github.com/bytesize-travel/service-curation/internal/domain/bundle"
	"github.com/bytesize-travel/service-curation/internal/domain/content"
)

// ErrNoEligibleContent indicates an anchor stage found nothing to select,
// even after relaxation. Callers should treat it as "nothing to publish".
var ErrNoEligibleContent = errors.New("no eligible content")

// NoEligibleContentError names the category an anchor stage failed on.
type NoEligibleContentError struct {
	Category content.Category
}

func (e *NoEligibleContentError) Error() string {
	return fmt.Sprintf("%s: %s", ErrNoEligibleContent, e.Category)
}

func (e *NoEligibleContentError) Unwrap() error {
	return ErrNoEligibleContent
}

// DegradedSlot records a non-anchor slot left empty because no candidate
// qualified. It is surfaced in run diagnostics, never in the bundle.
type DegradedSlot struct {
	Slot     bundle.SlotName  `json:"slot"`
	Category content.Category `json:"category"`
	Reason   string           `json:"reason"`
}

// SkippedSlot records a stage that did not run because its precondition
// was not met (disabled capacity, worldwide destination, gate closed).
type SkippedSlot struct {
	Slot   bundle.SlotName `json:"slot"`
	Reason string          `json:"reason"`
}

// Diagnostics collects the non-fatal conditions of a run.
type Diagnostics struct {
	AnchorFallback bool           `json:"anchor_fallback"`
	DegradedSlots  []DegradedSlot `json:"degraded_slots,omitempty"`
	SkippedSlots   []SkippedSlot  `json:"skipped_slots,omitempty"`
}
