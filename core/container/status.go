package container

const (
	StatusNone    Status = ""
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusError   Status = "error"
)

type Status string

func (s Status) String() string {
	return string(s)
}

// Reportable is false for StatusNone, which means nothing should be sent.
func (s Status) Reportable() bool {
	return s != StatusNone
}

// ExitedCleanly is true when the container state is present, the exit code
// is zero and docker recorded no error.
func ExitedCleanly(job *Job) bool {
	exitCode, ok := job.ExitCode()
	return ok && exitCode == 0 && job.StateError() == ""
}

// CalculateStatus maps a container lifecycle job to the status to report.
// Image builders only report failures, a successful build is implied by the
// absence of a status. Every other container reports success or error.
func CalculateStatus(job *Job) Status {
	exitedCleanly := ExitedCleanly(job)
	if job.Type() == TypeImageBuilderContainer {
		if !exitedCleanly {
			return StatusFailure
		}
		return StatusNone
	}

	if exitedCleanly {
		return StatusSuccess
	}
	return StatusError
}
