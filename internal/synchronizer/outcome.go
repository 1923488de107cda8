package synchronizer

// Outcome tells the caller what an intent did. Only OutcomeApplied changed remote state.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	// OutcomeIgnored is a no-op such as marking the free cell or an already marked cell.
	OutcomeIgnored
	// OutcomeDenied means the caller lacks the role: not the host, or no player yet.
	OutcomeDenied
	// OutcomeInvalidState means the session is in the wrong lifecycle state.
	OutcomeInvalidState
	// OutcomeInvalid means the input was rejected, for example an empty name.
	OutcomeInvalid
	// OutcomeFailed accompanies an error: the store write did not happen.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeDenied:
		return "denied"
	case OutcomeInvalidState:
		return "invalid_state"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const (
	NotifyChanged       = "changed"
	NotifyStatusChanged = "status_changed"
	NotifyPlayerJoined  = "player_joined"
	NotifyPlayerLeft    = "player_left"
	NotifyBingo         = "bingo"
)

// Notification tells the presentation layer something changed. It carries no
// state; read Snapshot for that.
type Notification struct {
	Kind       string `json:"kind"`
	PlayerID   string `json:"player_id,omitempty"`
	PlayerName string `json:"player_name,omitempty"`
	Status     string `json:"status,omitempty"`
}
