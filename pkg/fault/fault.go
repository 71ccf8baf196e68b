// Package fault defines the error kinds shared by the simulation packages.
//
// Packages wrap these sentinels with context, e.g.
//
//	fmt.Errorf("%w: guard %q has no patrol route", fault.ErrConfiguration, id)
//
// and callers classify with errors.Is.
package fault

import "errors"

var (
	// ErrConfiguration marks a missing route, reference or malformed data table found at init.
	// The offending entity is disabled; the rest of the simulation keeps running.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidTransition marks a command that is illegal in the current state.
	// The command is rejected and state is left unchanged.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrTransientSensor marks a failed spatial query. It is treated as "not visible" for that poll.
	ErrTransientSensor = errors.New("transient sensor failure")
)
