package routine

// Status enumerates the lifecycle states of a routine instance.
type Status string

const (
	// StatusScheduled is the initial state of every materialized instance.
	StatusScheduled Status = "scheduled"
	// StatusStarted indicates an assignee has begun working the instance.
	StatusStarted Status = "started"
	// StatusInProgress indicates step execution is underway.
	StatusInProgress Status = "in_progress"
	// StatusCompleted is terminal; the instance counts toward fairness history.
	StatusCompleted Status = "completed"
	// StatusCancelled is terminal; a cancelled instance can only be superseded
	// by a newly created one.
	StatusCancelled Status = "cancelled"
	// StatusMissed is terminal; applied by the sweep when a scheduled instance's
	// date passes without it being started.
	StatusMissed Status = "missed"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusStarted, StatusInProgress, StatusCompleted, StatusCancelled, StatusMissed:
		return true
	default:
		return false
	}
}

// Terminal reports whether s permits no further lifecycle transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusMissed:
		return true
	default:
		return false
	}
}

// Action enumerates the lifecycle operations callers may request.
type Action string

const (
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
	ActionDelete   Action = "delete"
	ActionReassign Action = "reassign"
	ActionMiss     Action = "miss"
)

// transitions is the exhaustive table of legal status changes. A transition
// absent from this table is rejected; status is never a free-form field write.
var transitions = map[Action]map[Status]Status{
	ActionStart: {
		StatusScheduled: StatusStarted,
	},
	ActionComplete: {
		StatusStarted:    StatusCompleted,
		StatusInProgress: StatusCompleted,
	},
	ActionCancel: {
		StatusScheduled:  StatusCancelled,
		StatusStarted:    StatusCancelled,
		StatusInProgress: StatusCancelled,
	},
	ActionMiss: {
		StatusScheduled: StatusMissed,
	},
}

// NextStatus resolves the target status for an action applied in the given
// state. The second return value is false when the transition is not
// enumerated.
func NextStatus(action Action, from Status) (Status, bool) {
	targets, ok := transitions[action]
	if !ok {
		return "", false
	}
	next, ok := targets[from]
	return next, ok
}

// TransitionSources lists the statuses from which an action is legal, in a
// stable order suitable for conditional persistence writes.
func TransitionSources(action Action) []Status {
	targets, ok := transitions[action]
	if !ok {
		return nil
	}
	ordered := make([]Status, 0, len(targets))
	for _, candidate := range []Status{StatusScheduled, StatusStarted, StatusInProgress, StatusCompleted, StatusCancelled, StatusMissed} {
		if _, ok := targets[candidate]; ok {
			ordered = append(ordered, candidate)
		}
	}
	return ordered
}

// Deletable reports whether an instance in the given state may be hard
// deleted. Instances that left these states are retained permanently as
// fairness history.
func Deletable(s Status) bool {
	return s == StatusScheduled || s == StatusCancelled
}

// Reassignable reports whether the assignee may still be changed.
func Reassignable(s Status) bool {
	return s == StatusScheduled
}
