package queue

import "fmt"

type Action string

const (
	ActionNext     Action = "next"
	ActionPrevious Action = "previous"
	ActionRepeat   Action = "repeat"
	ActionSet      Action = "set"
	ActionReset    Action = "reset"
)

func (a Action) Valid() bool {
	switch a {
	case ActionNext, ActionPrevious, ActionRepeat, ActionSet, ActionReset:
		return true
	}
	return false
}

// Command is one operator call action. Number is read only by ActionSet.
// ExpectedVersion, when non-zero, must match the stored clinic version.
type Command struct {
	Action          Action `json:"action" binding:"required,oneof=next previous repeat set reset"`
	Number          int    `json:"number" binding:"min=0"`
	ExpectedVersion int64  `json:"expected_version"`
}

// Transition computes the number a command leads to. It never touches the
// call token; every successful command issues a fresh one.
func Transition(current int, cmd Command) (int, error) {
	switch cmd.Action {
	case ActionNext:
		return current + 1, nil
	case ActionPrevious:
		if current <= 0 {
			return 0, nil
		}
		return current - 1, nil
	case ActionRepeat:
		return current, nil
	case ActionSet:
		if cmd.Number < 0 {
			return current, fmt.Errorf("number must not be negative: %d", cmd.Number)
		}
		return cmd.Number, nil
	case ActionReset:
		return 0, nil
	default:
		return current, fmt.Errorf("unknown call action %q", cmd.Action)
	}
}
