package trainer

// State is a position in the training state machine:
//
//	Idle → {ResampleNegatives → {{Forward → Loss → Backward}* → OptimizerStep}* → Checkpoint}* → Done
//
// Forward, Loss and Backward repeat once per example of a batch.
type State int

const (
	StateIdle State = iota
	StateResampleNegatives
	StateForward
	StateLoss
	StateBackward
	StateOptimizerStep
	StateCheckpoint
	StateDone
)

var stateNames = map[State]string{
	StateIdle:              "idle",
	StateResampleNegatives: "resample_negatives",
	StateForward:           "forward",
	StateLoss:              "loss",
	StateBackward:          "backward",
	StateOptimizerStep:     "optimizer_step",
	StateCheckpoint:        "checkpoint",
	StateDone:              "done",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
