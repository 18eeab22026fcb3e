package normalize

import "fmt"

// Reason classifies a rejected row.
type Reason string

// Reject reasons surfaced in audit detail.
const (
	BadDecimal        Reason = "bad-decimal"
	BadDate           Reason = "bad-date"
	BadInteger        Reason = "bad-integer"
	BadTaxID          Reason = "bad-tax-id"
	BadBoolean        Reason = "bad-boolean"
	BadEnum           Reason = "bad-enum"
	NullRequired      Reason = "null-required"
	UnresolvedCompany Reason = "unresolved-company"
)

// Reject describes a row that will not be written.
type Reject struct {
	Line   int
	Field  string
	Value  string
	Reason Reason
}

func (r *Reject) Error() string {
	return fmt.Sprintf("line %d: %s %s=%q", r.Line, r.Reason, r.Field, r.Value)
}

// Stats counts rows and rejects by reason.
type Stats struct {
	Read     int
	Rejected int
	Reasons  map[Reason]int
}

// Reject counts one rejected row.
func (s *Stats) Reject(r *Reject) {
	s.Rejected++
	if s.Reasons == nil {
		s.Reasons = make(map[Reason]int)
	}
	s.Reasons[r.Reason]++
}

// Histogram returns the reason counts keyed by string.
func (s *Stats) Histogram() map[string]int {
	out := make(map[string]int, len(s.Reasons))
	for k, n := range s.Reasons {
		out[string(k)] = n
	}
	return out
}

// Merge adds o's counts into s.
func (s *Stats) Merge(o Stats) {
	s.Read += o.Read
	s.Rejected += o.Rejected
	for k, n := range o.Reasons {
		if s.Reasons == nil {
			s.Reasons = make(map[Reason]int)
		}
		s.Reasons[k] += n
	}
}
