package reputation

import "fmt"

// AuditIssueKind identifies what an audit check found wrong.
type AuditIssueKind string

const (
	// IssueOutOfBounds means a recorded score is outside [0, 100] or off the 0.1 grid.
	IssueOutOfBounds AuditIssueKind = "out_of_bounds"
	// IssueBadArithmetic means after != ClampScore(before + delta).
	IssueBadArithmetic AuditIssueKind = "bad_arithmetic"
	// IssueBrokenChain means an event's before differs from the previous
	// event's after, usually the trace of a lost update.
	IssueBrokenChain AuditIssueKind = "broken_chain"
	// IssueScoreMismatch means the persisted score differs from the last event.
	IssueScoreMismatch AuditIssueKind = "score_mismatch"
)

// AuditIssue describes a single inconsistency in a shop's history.
type AuditIssue struct {
	Index   int            `json:"index"` // position in the history, -1 for the persisted score
	EventID int64          `json:"eventId"`
	Kind    AuditIssueKind `json:"kind"`
	Detail  string         `json:"detail"`
}

// AuditReport summarizes a history verification.
type AuditReport struct {
	ShopID int64        `json:"shopId"`
	Events int          `json:"events"`
	Issues []AuditIssue `json:"issues"`
}

// OK reports whether no issues were found.
func (r *AuditReport) OK() bool {
	return len(r.Issues) == 0
}

// VerifyChain checks a shop's history, oldest event first, against the
// ledger invariants. current is the persisted score, nil if never set.
func VerifyChain(shopID int64, events []Event, current *float64) *AuditReport {
	report := &AuditReport{
		ShopID: shopID,
		Events: len(events),
	}

	addIssue := func(index int, eventID int64, kind AuditIssueKind, format string, args ...any) {
		report.Issues = append(report.Issues, AuditIssue{
			Index:   index,
			EventID: eventID,
			Kind:    kind,
			Detail:  fmt.Sprintf(format, args...),
		})
	}

	for i, event := range events {
		for _, score := range []float64{event.Before, event.After} {
			if ClampScore(score) != score {
				addIssue(i, event.ID, IssueOutOfBounds, "score %.2f is not a valid score", score)
			}
		}

		if expected := ClampScore(event.Before + event.Delta); expected != event.After {
			addIssue(i, event.ID, IssueBadArithmetic,
				"%.1f %+g should give %.1f, recorded %.1f", event.Before, event.Delta, expected, event.After)
		}

		if i > 0 && events[i-1].After != event.Before {
			addIssue(i, event.ID, IssueBrokenChain,
				"before %.1f does not follow previous after %.1f", event.Before, events[i-1].After)
		}
	}

	if len(events) > 0 {
		last := events[len(events)-1]
		persisted := DefaultScore
		if current != nil {
			persisted = *current
		}

		if persisted != last.After {
			addIssue(-1, 0, IssueScoreMismatch,
				"persisted score %.1f does not match last event %.1f", persisted, last.After)
		}
	}

	return report
}
