package workflow

// State is one stage of the pipeline lifecycle.
type State string

const (
	StateInitialized          State = "initialized"
	StateContextRetrieved     State = "context_retrieved"
	StateResponseGenerated    State = "response_generated"
	StateResponseVerified     State = "response_verified"
	StateConsensusReached     State = "consensus_reached"
	StateResponseReformed     State = "response_reformed"
	StateHumanValidation      State = "human_validation"
	StateTranslationCompleted State = "translation_completed"
	StateCompleted            State = "completed"
	StateFailed               State = "failed"
)

// validTransitions is the closed set of legal edges. Completed and
// Failed are terminal.
var validTransitions = map[State][]State{
	StateInitialized:          {StateContextRetrieved, StateFailed},
	StateContextRetrieved:     {StateResponseGenerated, StateFailed},
	StateResponseGenerated:    {StateResponseVerified, StateFailed},
	StateResponseVerified:     {StateConsensusReached, StateResponseReformed, StateHumanValidation, StateFailed},
	StateConsensusReached:     {StateTranslationCompleted, StateHumanValidation, StateCompleted},
	StateResponseReformed:     {StateResponseVerified, StateConsensusReached, StateFailed},
	StateHumanValidation:      {StateTranslationCompleted, StateCompleted, StateFailed},
	StateTranslationCompleted: {StateCompleted},
	StateCompleted:            {},
	StateFailed:               {},
}

// CanTransition reports whether the edge from -> to is legal.
func CanTransition(from, to State) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a state has no outgoing edges.
func IsTerminal(s State) bool {
	return len(validTransitions[s]) == 0
}
