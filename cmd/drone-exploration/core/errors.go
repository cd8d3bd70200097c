package core

import "errors"

var (
	// ErrInvalidParams is returned when engine or field parameters are unusable
	ErrInvalidParams = errors.New("invalid simulation parameters")

	// ErrTargetOutOfBounds is returned for a target outside the field
	ErrTargetOutOfBounds = errors.New("target out of bounds")

	// ErrUnknownAgent is returned for a command naming an agent that does not exist
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrNothingToResolve is returned when accept/discard targets an exploring agent
	ErrNothingToResolve = errors.New("agent has no detection to resolve")

	// ErrUnknownCommand is returned for command values the engine cannot apply
	ErrUnknownCommand = errors.New("unknown command")
)
