package music

import "strings"

// Rejection collects the reasons an event was dropped. Rejections are an
// expected outcome and are returned as values, not errors.
type Rejection struct {
	Reasons []string
}

// Add records a reason.
func (r *Rejection) Add(reason string) {
	r.Reasons = append(r.Reasons, reason)
}

// Rejected reports whether any reason has been recorded.
func (r *Rejection) Rejected() bool { return r != nil && len(r.Reasons) > 0 }

func (r *Rejection) String() string {
	if !r.Rejected() {
		return ""
	}
	return strings.Join(r.Reasons, "; ")
}
