package bakery

import "strconv"

// Step names a point between the sub-steps of Acquire where a Hook runs.
type Step uint8

const (
	// StepDoorway runs after the choosing flag is raised, before the
	// ticket scan.
	StepDoorway Step = iota
	// StepPublish runs after the maximum ticket has been read, before the
	// new ticket is written. Holding participants here makes them publish
	// equal tickets.
	StepPublish
	// StepPublished runs after the ticket is written, before the choosing
	// flag is cleared.
	StepPublished
	// StepWait runs after the choosing flag is cleared, before the scan of
	// the other participants.
	StepWait
	// StepCompare runs after a peer's ticket has been read and before it is
	// compared. A delay here makes the compared value stale.
	StepCompare
)

func (s Step) String() string {
	switch s {
	case StepDoorway:
		return "doorway"
	case StepPublish:
		return "publish"
	case StepPublished:
		return "published"
	case StepWait:
		return "wait"
	case StepCompare:
		return "compare"
	}
	return "Step(" + strconv.Itoa(int(s)) + ")"
}

// Hook is called by participant id at the given step of Acquire.
// It exists to widen race windows in tests and demos; the protocol does not
// depend on it and a nil Hook costs one branch per step.
type Hook func(id int, step Step)
