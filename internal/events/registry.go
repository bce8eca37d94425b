package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// problem
	"problem.created":            {},
	"problem.registered":         {},
	"problem.deregistered":       {},
	"problem.input_changed":      {},
	"problem.solver_changed":     {},
	"problem.state_changed":      {},
	"problem.subproblem_added":   {},
	"problem.subproblem_removed": {},
	"problem.solved":             {},
	"problem.failed":             {},

	// system
	"system.startup":  {},
	"system.shutdown": {},
	"system.error":    {},
}

// Validate rejects event names outside the allow-list.
func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
