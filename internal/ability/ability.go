// Package ability implements a small rule-based authorization checker.
package ability

import "sync"

// Wildcards matching any action or any subject.
const (
	ActionManage = "manage"
	SubjectAll   = "all"
)

// Rule grants, or when Inverted denies, Action on Subject.
type Rule struct {
	Action   string `json:"action"`
	Subject  string `json:"subject"`
	Inverted bool   `json:"inverted,omitempty"`
}

func (r Rule) matches(action, subject string) bool {
	return (r.Action == action || r.Action == ActionManage) &&
		(r.Subject == subject || r.Subject == SubjectAll)
}

// Ability holds the rules of the current user. It is safe for concurrent use.
type Ability struct {
	mu    sync.RWMutex
	rules []Rule
}

// New creates an Ability from rules.
func New(rules ...Rule) *Ability {
	a := &Ability{}
	a.Update(rules)
	return a
}

// Update replaces all rules.
func (a *Ability) Update(rules []Rule) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rules = append([]Rule(nil), rules...)
}

// Rules returns a copy of the current rules.
func (a *Ability) Rules() []Rule {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]Rule(nil), a.rules...)
}

// Can reports whether action is allowed on subject. Later rules take
// precedence over earlier ones; nothing is allowed without a matching rule.
func (a *Ability) Can(action, subject string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for i := len(a.rules) - 1; i >= 0; i-- {
		if a.rules[i].matches(action, subject) {
			return !a.rules[i].Inverted
		}
	}
	return false
}

// Cannot is the negation of Can.
func (a *Ability) Cannot(action, subject string) bool {
	return !a.Can(action, subject)
}

// RulesForRole returns the default rules of a role.
func RulesForRole(role string) []Rule {
	switch role {
	case "admin":
		return []Rule{{Action: ActionManage, Subject: SubjectAll}}
	case "user":
		return []Rule{
			{Action: "read-all", Subject: "Share"},
			{Action: "create-all", Subject: "Share"},
			{Action: "read-all", Subject: "Drive"},
		}
	case "guest":
		return []Rule{{Action: "read-all", Subject: "Drive"}}
	default:
		return nil
	}
}
