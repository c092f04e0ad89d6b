package testsession

import "time"

// Policy bundles the issuance knobs for new test sessions. Values come
// from config; defaults mirror the platform's historical behaviour.
type Policy struct {
	// TotalQuestions per test.
	TotalQuestions int

	// TimeLimit is the working-time budget once opened.
	TimeLimit time.Duration

	// Validity bounds how long the emailed link stays usable.
	Validity time.Duration

	// SubmitGrace extends the deadline at submission to absorb network
	// latency on the final request.
	SubmitGrace time.Duration
}

// DefaultPolicy returns the platform defaults: 15 questions, 20 minutes
// of working time, a 48-hour link, one minute of grace.
func DefaultPolicy() Policy {
	return Policy{
		TotalQuestions: 15,
		TimeLimit:      20 * time.Minute,
		Validity:       48 * time.Hour,
		SubmitGrace:    time.Minute,
	}
}
