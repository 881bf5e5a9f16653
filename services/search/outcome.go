package search

// Outcome is what a snapshot means to a consumer.
type Outcome interface {
	isOutcome()
}

// Running snapshots carry no action.
type Running struct {
	Loaded int
	Total  int
}

// PartialFailed is a terminal snapshot that never completed.
type PartialFailed struct {
	Reason string
}

// Succeeded is a complete, terminal snapshot.
type Succeeded struct {
	Raw       *RawResponse
	Satisfied bool
}

func (Running) isOutcome()       {}
func (PartialFailed) isOutcome() {}
func (Succeeded) isOutcome()     {}

func Classify(r *Response) Outcome {
	switch {
	case r.IsRunning:
		return Running{Loaded: r.Loaded, Total: r.Total}
	case r.IsPartial:
		return PartialFailed{Reason: r.Error}
	}
	raw := r.RawResponse
	if raw == nil {
		raw = &RawResponse{}
	}
	return Succeeded{Raw: raw, Satisfied: r.Satisfied}
}
