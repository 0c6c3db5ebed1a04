package dispatch

import (
	"context"
	"strings"
)

type actionFunc func(context.Context, Event) error

type actionFactory struct {
	byAction map[string]actionFunc
}

func newActionFactory(onAssigned, onWithdrawn actionFunc) *actionFactory {
	return &actionFactory{
		byAction: map[string]actionFunc{
			"":           onAssigned,
			"assigned":   onAssigned,
			"reassigned": onAssigned,
			"withdrawn":  onWithdrawn,
			"unassigned": onWithdrawn,
			"canceled":   onWithdrawn,
		},
	}
}

func (f *actionFactory) get(action string) (actionFunc, bool) {
	action = strings.ToLower(strings.TrimSpace(action))
	fn, ok := f.byAction[action]
	return fn, ok
}
