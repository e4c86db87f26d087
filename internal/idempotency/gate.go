// Package idempotency decides whether a generation request can reuse the latest stored record.
package idempotency

// Decision is the outcome of a gate check.
type Decision int

const (
	// Proceed means the input changed (or nothing is stored yet) and generation must run.
	Proceed Decision = iota
	// Skip means the latest record already reflects this exact input and mode.
	Skip
)

func (d Decision) String() string {
	if d == Skip {
		return "skip"
	}
	return "proceed"
}

// ModePrediction is the mode used for prediction records, which have no status of their own.
const ModePrediction = "prediction"

// Marker is the part of a persisted record the gate compares against.
type Marker struct {
	Fingerprint string
	Mode        string
}

// Check compares a freshly computed fingerprint with the latest record for the same user.
func Check(fingerprint, mode string, latest *Marker) Decision {
	if latest == nil || fingerprint == "" {
		return Proceed
	}
	if latest.Fingerprint == fingerprint && latest.Mode == mode {
		return Skip
	}
	return Proceed
}
