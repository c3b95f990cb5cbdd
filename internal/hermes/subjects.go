package hermes

import "time"

const (
	subjectPrefix = "prioritizer.run."

	SubjectRunRequest = subjectPrefix + "request"

	StreamName   = "PRIORITIZER_EVENTS"
	StreamMaxAge = 30 * 24 * time.Hour
)

func SubjectRunCompleted(runID string) string { return subjectPrefix + runID + ".completed" }
func SubjectRunFailed(runID string) string    { return subjectPrefix + runID + ".failed" }

// StreamSubjects are the run outcome subjects retained by the event stream.
func StreamSubjects() []string {
	return []string{SubjectRunCompleted("*"), SubjectRunFailed("*")}
}

// durable reports whether subject belongs in the event stream.
func durable(subject string) bool {
	return subject != SubjectRunRequest
}
