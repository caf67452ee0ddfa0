package pipeline

import (
	"github.com/slipwayci/slipway/internal/domain"
)

// Matches reports whether a trigger event activates the given rule.
// An empty Events list matches every event kind; an empty Branches list
// matches every branch. Both dimensions must match for activation.
func Matches(rule domain.TriggerRule, event domain.TriggerEvent) bool {
	if !matchesKind(rule, event) {
		return false
	}
	return matchesBranch(rule, event)
}

// matchesKind checks the event kind against the rule's event list.
func matchesKind(rule domain.TriggerRule, event domain.TriggerEvent) bool {
	if len(rule.Events) == 0 {
		return true
	}
	for _, ev := range rule.Events {
		if ev == event.Kind.String() {
			return true
		}
	}
	return false
}

// matchesBranch checks the event branch against the rule's branch list.
func matchesBranch(rule domain.TriggerRule, event domain.TriggerEvent) bool {
	if len(rule.Branches) == 0 {
		return true
	}
	for _, b := range rule.Branches {
		if b == event.Branch {
			return true
		}
	}
	return false
}

// Select returns the jobs of the pipeline whose trigger predicate matches
// the event, in declaration order. Dependency edges are preserved: a
// selected job whose dependency was not selected is treated by the engine
// as having an unsatisfied dependency and is skipped.
func Select(p *domain.Pipeline, event domain.TriggerEvent) []domain.JobDefinition {
	selected := make([]domain.JobDefinition, 0, len(p.Jobs))
	for _, job := range p.Jobs {
		if Matches(job.On, event) {
			selected = append(selected, job)
		}
	}
	return selected
}
