package model

import "errors"

var (
	// ErrInvalidInput rejects malformed structured input at the staging boundary.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownChain rejects operations for a chain with no configuration.
	ErrUnknownChain = errors.New("unknown chain")

	// ErrPoolNotRegistered blocks pledges and claims against pools missing
	// from the registry.
	ErrPoolNotRegistered = errors.New("pool not registered")

	// ErrDecisionExists signals that an epoch already has a finalized decision.
	ErrDecisionExists = errors.New("epoch decision already exists")

	// ErrNotFinalized signals that no decision has been recorded for an epoch.
	ErrNotFinalized = errors.New("epoch not finalized")

	// ErrEpochNotReached rejects claims against an epoch that has not ended.
	ErrEpochNotReached = errors.New("epoch not finished yet")

	// ErrNoBuyback rejects claims against a burn epoch.
	ErrNoBuyback = errors.New("no buyback available")

	// ErrNoPledge signals that no confirmed pledge exists for the key.
	ErrNoPledge = errors.New("no pledge found")

	// ErrNothingToClaim signals a zero total or non-positive computed share.
	ErrNothingToClaim = errors.New("nothing to claim")

	// ErrAlreadyClaimed signals that the user already claimed this epoch.
	ErrAlreadyClaimed = errors.New("epoch already claimed")
)
