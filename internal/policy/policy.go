// Package policy maps detection results to a binding allow/block action.
package policy

// Action is the verdict for an upload. There is deliberately no
// intermediate "warn" action.
type Action string

const (
	Allow Action = "allow"
	Block Action = "block"
)

// Decision is the outcome of Decide.
type Decision struct {
	Action       Action
	SecretsFound bool
}

// Decide blocks when the secret flag is set or any finding exists.
func Decide(findings int, secrets bool) Decision {
	found := secrets || findings > 0
	if found {
		return Decision{Action: Block, SecretsFound: true}
	}
	return Decision{Action: Allow}
}

// EmptyFile is the decision for a zero-byte upload. It never reaches a
// detector and is never treated as safe.
func EmptyFile() Decision {
	return Decision{Action: Block}
}
