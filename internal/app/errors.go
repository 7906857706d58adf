package service

import "errors"

var (
	// ErrPlayerUnavailable is returned when a requested player could not be fetched.
	ErrPlayerUnavailable = errors.New("player data unavailable")
	// ErrExportDisabled is returned when no export directory is configured.
	ErrExportDisabled = errors.New("export disabled")
	// ErrNoPlayers is returned when a request names no players.
	ErrNoPlayers = errors.New("no players requested")
)
