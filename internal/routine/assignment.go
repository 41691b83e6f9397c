package routine

// AssignmentMode enumerates how a schedule distributes its instances.
type AssignmentMode string

const (
	// AssignUnassigned creates instances with no assignee.
	AssignUnassigned AssignmentMode = "unassigned"
	// AssignAuto distributes instances across eligible members by fairness score.
	AssignAuto AssignmentMode = "auto"
	// AssignManual pins every instance to the schedule's default assignee.
	AssignManual AssignmentMode = "manual"
	// AssignSelfBooked creates instances open for members to claim themselves.
	AssignSelfBooked AssignmentMode = "selfBooked"
)

// AssignmentPolicy is the sealed variant set keyed by assignment mode. The
// manual variant is the only one carrying an assignee, so a default assignee
// on any other mode is unrepresentable once validated.
type AssignmentPolicy interface {
	Mode() AssignmentMode
}

// Unassigned leaves every planned date open.
type Unassigned struct{}

// AutoAssign distributes planned dates using the fairness simulation.
type AutoAssign struct{}

// ManualAssign pins every planned date to a fixed member.
type ManualAssign struct {
	AssigneeID   string
	AssigneeName string
}

// SelfBooked leaves every planned date open for members to claim.
type SelfBooked struct{}

func (Unassigned) Mode() AssignmentMode   { return AssignUnassigned }
func (AutoAssign) Mode() AssignmentMode   { return AssignAuto }
func (ManualAssign) Mode() AssignmentMode { return AssignManual }
func (SelfBooked) Mode() AssignmentMode   { return AssignSelfBooked }

// ValidAssignmentMode reports whether the mode is a known value.
func ValidAssignmentMode(mode AssignmentMode) bool {
	switch mode {
	case AssignUnassigned, AssignAuto, AssignManual, AssignSelfBooked:
		return true
	default:
		return false
	}
}
