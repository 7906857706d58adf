package scheduler

import "errors"

var (
	// ErrInvalidSchedule is returned for a cron expression that does not parse.
	ErrInvalidSchedule = errors.New("invalid refresh schedule")
	// ErrEmptyWatchlist is returned when there is nothing to refresh.
	ErrEmptyWatchlist = errors.New("empty watchlist")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("scheduler already started")
)
