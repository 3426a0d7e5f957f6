package swap

// State is a step of the swap lifecycle
type State string

const (
	StateIdle               State = "idle"
	StateValidating         State = "validating"
	StateApproving          State = "approving"
	StateConfirmingApproval State = "confirming_approval"
	StateRequoting          State = "requoting"
	StateSubmitting         State = "submitting"
	StateRecorded           State = "recorded"
	StateConfirmingSwap     State = "confirming_swap"
	StateSettled            State = "settled"
	StateSettledFailed      State = "settled_failed"
	StateError              State = "error"
)

// StateChange is delivered to the OnState hook on every transition
type StateChange struct {
	Account string
	State   State
	Message string
	Hash    string
}
