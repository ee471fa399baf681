package controller

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseBinding
	PhaseRunning
	PhaseWaiting
	PhaseStopping
	PhaseDone
	PhaseInterrupted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseBinding:
		return "binding"
	case PhaseRunning:
		return "running"
	case PhaseWaiting:
		return "waiting"
	case PhaseStopping:
		return "stopping"
	case PhaseDone:
		return "done"
	case PhaseInterrupted:
		return "interrupted"
	case PhaseFailed:
		return "failed"
	default:
		return "invalid"
	}
}
