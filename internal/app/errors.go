package app

import "errors"

var (
	// ErrNoEvent is returned when no event is in the state the operation needs.
	ErrNoEvent = errors.New("no active event")
	// ErrRoomNotFound is returned for an unknown room index.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomCancelled is returned when the addressed room was cancelled.
	ErrRoomCancelled = errors.New("room was cancelled")
	// ErrOnCooldown is returned when the identity acted too recently.
	ErrOnCooldown = errors.New("identity is on cooldown")
	// ErrEventClosed is returned when registration has already ended.
	ErrEventClosed = errors.New("event registration is closed")
	// ErrUnknownSetting is returned for a setting key the service does not expose.
	ErrUnknownSetting = errors.New("unknown setting")
	// ErrBadSettingValue is returned when a setting value fails validation.
	ErrBadSettingValue = errors.New("invalid setting value")
)
