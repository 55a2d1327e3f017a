package testutil

import "sync"

// ProgressEvent is one progress report captured by RecordingSink.
type ProgressEvent struct {
	Percent int
	Label   string
}

// RecordingSink captures the operation lifecycle calls made by a pipeline.
type RecordingSink struct {
	mu        sync.Mutex
	Calls     []string
	Progress  []ProgressEvent
	Succeeded string
	Failed    error
}

// Begin records the start of an operation.
func (s *RecordingSink) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "begin")
}

// Report records a progress update.
func (s *RecordingSink) Report(percent int, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "progress")
	s.Progress = append(s.Progress, ProgressEvent{Percent: percent, Label: label})
}

// Succeed records a successful outcome.
func (s *RecordingSink) Succeed(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "succeed")
	s.Succeeded = message
}

// Fail records a failed outcome.
func (s *RecordingSink) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "fail")
	s.Failed = err
}

// End records the end of an operation.
func (s *RecordingSink) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "end")
}

// Percents returns the reported percentages in order.
func (s *RecordingSink) Percents() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.Progress))
	for _, p := range s.Progress {
		out = append(out, p.Percent)
	}
	return out
}

// Labels returns the non-empty reported labels in order.
func (s *RecordingSink) Labels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, p := range s.Progress {
		if p.Label != "" {
			out = append(out, p.Label)
		}
	}
	return out
}
