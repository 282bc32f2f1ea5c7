package jobs

// Step identifies the phase a sync run reports progress from. The set is
// closed; steps only select a job status for display and never decide the
// run's final disposition.
type Step string

const (
	StepFetchingInfo Step = "fetching_info"
	StepDownloading  Step = "downloading"
	StepImporting    Step = "importing"
	StepCompleted    Step = "completed"
	StepFailed       Step = "failed"
)

// statusForStep maps a reported step to the job status it displays as.
// Terminal steps are deliberately unmapped: success or failure comes from the
// run's return value, never from a progress tick, so a late tick cannot race
// the real result.
func statusForStep(step Step) (Status, bool) {
	switch step {
	case StepFetchingInfo:
		return StatusFetchingInfo, true
	case StepDownloading:
		return StatusDownloading, true
	case StepImporting:
		return StatusImporting, true
	default:
		return "", false
	}
}

// ProgressUpdate is one progress report from a sync run.
type ProgressUpdate struct {
	Step     Step
	Message  string
	Progress float64 // overall phase-weighted percentage, 0 when unknown
	Info     *ContentInfo
	Details  map[string]any
}

// ProgressFunc receives progress updates. It is invoked synchronously on the
// worker goroutine running the sync, so implementations must hand off before
// touching shared state.
type ProgressFunc func(ProgressUpdate)

// SyncResult is the structured outcome of a sync run.
type SyncResult struct {
	Success     bool
	Error       string
	ContentInfo *ContentInfo
	Stats       *DownloadStats
}

// Runner performs the actual fetch/download/tag work for one playlist URL.
// Implementations block until done, report progress through onProgress, and
// poll token between tracks and before each network call.
type Runner interface {
	Execute(url string, onProgress ProgressFunc, token *CancelToken, maxItems int) (*SyncResult, error)
}
