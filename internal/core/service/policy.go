package service

import (
	"github.com/jmoanes1/phonebook/internal/core/domain"
)

// Operation names an operation with a fallback policy.
// The value doubles as the metric label.
type Operation string

const (
	OpRegister      Operation = "register"
	OpLogin         Operation = "login"
	OpLogout        Operation = "logout"
	OpRefresh       Operation = "refresh"
	OpUpdateProfile Operation = "update_profile"
	OpListContacts  Operation = "contacts.list"
	OpAddContact    Operation = "contacts.add"
	OpDeleteContact Operation = "contacts.delete"
)

// Action is what an operation does with a classified remote failure.
type Action int

const (
	// ActionSurface returns the error to the caller, state unchanged.
	ActionSurface Action = iota

	// ActionFallback replays the operation against the local store.
	ActionFallback

	// ActionInvalidate clears the session, then surfaces the error.
	ActionInvalidate

	// ActionIgnore drops the error.
	ActionIgnore
)

func (a Action) String() string {
	switch a {
	case ActionFallback:
		return "fallback"
	case ActionInvalidate:
		return "invalidate"
	case ActionIgnore:
		return "ignore"
	default:
		return "surface"
	}
}

// Policy maps an error kind to an action. Kinds not listed are surfaced.
type Policy map[domain.Kind]Action

// policies is the single fallback table. Storage and unclassified
// failures are never listed and always surface.
var policies = map[Operation]Policy{
	OpRegister: {
		domain.KindTransport: ActionFallback,
	},
	OpLogin: {
		domain.KindTransport: ActionFallback,
	},
	OpLogout: {
		domain.KindTransport:  ActionIgnore,
		domain.KindAuth:       ActionIgnore,
		domain.KindValidation: ActionIgnore,
		domain.KindServer:     ActionIgnore,
	},
	OpRefresh: {
		domain.KindTransport: ActionFallback,
		domain.KindAuth:      ActionInvalidate,
	},
	OpUpdateProfile: {
		domain.KindTransport: ActionFallback,
		domain.KindAuth:      ActionInvalidate,
	},
	OpListContacts: {
		domain.KindTransport: ActionFallback,
		domain.KindAuth:      ActionInvalidate,
	},
	OpAddContact: {
		domain.KindTransport: ActionFallback,
		domain.KindAuth:      ActionInvalidate,
	},
	OpDeleteContact: {
		domain.KindTransport: ActionFallback,
		domain.KindAuth:      ActionInvalidate,
	},
}

// Decide returns the action for err under op.
func Decide(op Operation, err error) Action {
	if err == nil {
		return ActionIgnore
	}
	return policies[op][domain.KindOf(err)]
}

// decider applies the configuration on top of the table.
type decider struct {
	fallback bool
}

func (d decider) decide(op Operation, err error) Action {
	a := Decide(op, err)
	if a == ActionFallback && !d.fallback {
		return ActionSurface
	}
	return a
}
