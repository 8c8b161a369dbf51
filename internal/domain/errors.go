package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrVenueUnknown    = errors.New("unknown venue")
	ErrStaleQuote      = errors.New("quote too old")
	ErrStaleOpp        = errors.New("opportunity too old")
	ErrBelowThreshold  = errors.New("profit below threshold")
	ErrSymbolEngaged   = errors.New("symbol already has an active engagement")
	ErrWSDisconnect    = errors.New("websocket disconnected")
	ErrNotConnected    = errors.New("not connected")
	ErrAlreadyRunning  = errors.New("already running")
	ErrSimulatorClosed = errors.New("simulator closed")
)
