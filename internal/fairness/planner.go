package fairness

import (
	"errors"
	"time"

	"github.com/maxton76/stall-bokning-sub003/internal/routine"
)

// Assignee identifies the member an instance will be created for.
type Assignee struct {
	MemberID    string
	DisplayName string
}

// Slot is one planned date with its suggested assignee and, after review, an
// optional caller override. A nil Suggested means the instance is created
// open (unassigned and self-booked modes).
type Slot struct {
	Date       time.Time
	Suggested  *Assignee
	Overridden *Assignee
}

// Assignee resolves the effective assignee for the slot, with an override
// taking precedence over the suggestion.
func (s Slot) Assignee() *Assignee {
	if s.Overridden != nil {
		return s.Overridden
	}
	return s.Suggested
}

// Plan is the ephemeral date-to-assignee mapping produced between preview and
// publish. It is never persisted independently of the instances it produces.
type Plan struct {
	PointsValue int
	Slots       []Slot
}

// ErrUnknownDate indicates an override referenced a date outside the plan.
var ErrUnknownDate = errors.New("fairness: date not in plan")

// BuildPlan maps chronological dates to suggested assignees according to the
// assignment policy. For auto assignment it runs a greedy simulation: each
// date goes to the candidate with the lowest simulated score at that point,
// and the candidate's simulated score grows by pointsValue before the next
// date is evaluated. A single batch therefore spreads across candidates
// instead of repeatedly picking the historically lowest member.
//
// Planning is a one-shot pass. Overrides applied afterwards never trigger
// recomputation of other slots.
func BuildPlan(dates []time.Time, policy routine.AssignmentPolicy, ranked []MemberScore, pointsValue int) Plan {
	slots := make([]Slot, 0, len(dates))

	switch p := policy.(type) {
	case routine.ManualAssign:
		fixed := &Assignee{MemberID: p.AssigneeID, DisplayName: p.AssigneeName}
		for _, date := range dates {
			slots = append(slots, Slot{Date: date, Suggested: fixed})
		}
	case routine.AutoAssign:
		slots = simulate(dates, ranked, pointsValue)
	default:
		// Unassigned and self-booked instances are created open.
		for _, date := range dates {
			slots = append(slots, Slot{Date: date})
		}
	}

	return Plan{PointsValue: pointsValue, Slots: slots}
}

// simulate folds a running-score accumulator across the chronological date
// list. The simulated scores are local to this pass; persisted history is
// untouched.
func simulate(dates []time.Time, ranked []MemberScore, pointsValue int) []Slot {
	slots := make([]Slot, 0, len(dates))
	if len(ranked) == 0 {
		for _, date := range dates {
			slots = append(slots, Slot{Date: date})
		}
		return slots
	}

	simulated := make([]MemberScore, len(ranked))
	copy(simulated, ranked)

	for _, date := range dates {
		best := 0
		for i := 1; i < len(simulated); i++ {
			if lessLoaded(simulated[i], simulated[best]) {
				best = i
			}
		}
		slots = append(slots, Slot{Date: date, Suggested: &Assignee{
			MemberID:    simulated[best].MemberID,
			DisplayName: simulated[best].DisplayName,
		}})
		simulated[best].Points += pointsValue
	}

	return slots
}

func lessLoaded(a, b MemberScore) bool {
	if a.Points == b.Points {
		return a.MemberID < b.MemberID
	}
	return a.Points < b.Points
}

// Override replaces the suggestion for a single date. The override is final;
// no other slot is recomputed.
func (p *Plan) Override(date time.Time, assignee *Assignee) error {
	date = routine.DateOf(date)
	for i := range p.Slots {
		if p.Slots[i].Date.Equal(date) {
			p.Slots[i].Overridden = assignee
			return nil
		}
	}
	return ErrUnknownDate
}
