package domain

// StateEntry is one per-record outcome appended to the checkpoint store.
// Serialized forms: {"success": true}, {"fail": true} and
// {"is_updated": true, "success": true}.
type StateEntry struct {
	IsUpdated bool `json:"is_updated,omitempty"`
	Success   bool `json:"success,omitempty"`
	Fail      bool `json:"fail,omitempty"`
}

// Outcome labels used in logs and metrics.
const (
	OutcomeSuccess = "success"
	OutcomeFail    = "fail"
	OutcomeUpdated = "updated"
)

func SuccessEntry() StateEntry { return StateEntry{Success: true} }

func FailEntry() StateEntry { return StateEntry{Fail: true} }

func UpdatedEntry() StateEntry { return StateEntry{IsUpdated: true, Success: true} }

// Outcome classifies the entry for summaries and metrics.
func (e StateEntry) Outcome() string {
	switch {
	case e.Success && e.IsUpdated:
		return OutcomeUpdated
	case e.Success:
		return OutcomeSuccess
	default:
		return OutcomeFail
	}
}

// Summary counts outcomes per stream.
type Summary struct {
	Success  int `json:"success"`
	Fail     int `json:"fail"`
	Existing int `json:"existing"`
	Updated  int `json:"updated"`
}

// StreamState is the checkpoint of one stream: every outcome in append
// order plus running totals.
type StreamState struct {
	Bookmarks []StateEntry `json:"bookmarks"`
	Summary   Summary      `json:"summary"`
}

// Append records entries in order and bumps the summary.
func (s *StreamState) Append(entries ...StateEntry) {
	for _, e := range entries {
		s.Bookmarks = append(s.Bookmarks, e)
		switch e.Outcome() {
		case OutcomeUpdated:
			s.Summary.Updated++
		case OutcomeSuccess:
			s.Summary.Success++
		default:
			s.Summary.Fail++
		}
	}
}

// Trim drops the oldest bookmarks so at most limit remain. The summary is
// left untouched and keeps counting every entry ever appended. A limit of
// zero or less keeps everything.
func (s *StreamState) Trim(limit int) {
	if limit <= 0 || len(s.Bookmarks) <= limit {
		return
	}
	s.Bookmarks = append([]StateEntry(nil), s.Bookmarks[len(s.Bookmarks)-limit:]...)
}

// Clone returns a deep copy safe to hand to another goroutine or encoder.
func (s *StreamState) Clone() *StreamState {
	if s == nil {
		return nil
	}
	out := &StreamState{Summary: s.Summary}
	if s.Bookmarks != nil {
		out.Bookmarks = append(make([]StateEntry, 0, len(s.Bookmarks)), s.Bookmarks...)
	}
	return out
}

// TargetState is the singer STATE value: bookmarks and summaries keyed by
// stream name.
type TargetState struct {
	Bookmarks map[string][]StateEntry `json:"bookmarks"`
	Summary   map[string]Summary      `json:"summary"`
}

// NewTargetState returns an empty, non-nil TargetState.
func NewTargetState() *TargetState {
	return &TargetState{
		Bookmarks: make(map[string][]StateEntry),
		Summary:   make(map[string]Summary),
	}
}

// Set stores a stream's checkpoint in the combined state.
func (t *TargetState) Set(stream string, s *StreamState) {
	if s == nil {
		return
	}
	bookmarks := s.Bookmarks
	if bookmarks == nil {
		bookmarks = []StateEntry{}
	}
	t.Bookmarks[stream] = bookmarks
	t.Summary[stream] = s.Summary
}

// Stream extracts one stream's checkpoint, or nil when absent.
func (t *TargetState) Stream(stream string) *StreamState {
	b, ok := t.Bookmarks[stream]
	if !ok {
		return nil
	}
	return &StreamState{Bookmarks: b, Summary: t.Summary[stream]}
}
