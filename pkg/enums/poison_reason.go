package enums

// PoisonReason records why a pending event was pulled out of the retry loop.
type PoisonReason string

const (
	PoisonReasonMaxAttempts   PoisonReason = "max_attempts"
	PoisonReasonNonReplayable PoisonReason = "non_replayable"
)

var validPoisonReasons = []PoisonReason{
	PoisonReasonMaxAttempts,
	PoisonReasonNonReplayable,
}

func (r PoisonReason) IsValid() bool {
	for _, candidate := range validPoisonReasons {
		if candidate == r {
			return true
		}
	}
	return false
}
