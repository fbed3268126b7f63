package port

import "github.com/bnema/scribe/internal/domain"

// Notifier delivers job state changes to interested observers. Within one
// job, progress calls arrive in non-decreasing order followed by exactly one
// terminal call (Completed or Failed), never both.
type Notifier interface {
	Progress(jobID string, progress int, message string)
	Completed(jobID string, result *domain.Result)
	Failed(jobID string, errMsg string)
}
