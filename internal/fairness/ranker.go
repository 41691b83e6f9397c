// Package fairness holds the pure workload-balancing algorithms: historical
// score ranking and the greedy assignment simulation used for auto-assigned
// schedules. The package never touches persistence; candidate eligibility and
// historical points arrive pre-resolved.
package fairness

import "sort"

// Candidate identifies a member eligible for assignment.
type Candidate struct {
	MemberID    string
	DisplayName string
}

// MemberScore pairs a candidate with their accumulated workload points.
type MemberScore struct {
	Candidate
	Points int
}

// Rank orders candidates ascending by historical points, so the least loaded
// member comes first. Points are the sum of pointsValue over the member's
// completed instances within the caller's lookback window; a candidate with
// no history scores zero. Ties resolve by member identifier, keeping the
// output reproducible for a fixed snapshot.
func Rank(candidates []Candidate, history map[string]int) []MemberScore {
	ranked := make([]MemberScore, 0, len(candidates))
	for _, candidate := range candidates {
		ranked = append(ranked, MemberScore{
			Candidate: candidate,
			Points:    history[candidate.MemberID],
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Points == ranked[j].Points {
			return ranked[i].MemberID < ranked[j].MemberID
		}
		return ranked[i].Points < ranked[j].Points
	})

	return ranked
}
