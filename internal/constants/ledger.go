package constants

import "time"

// Ledger read/write bounds. Every RPC call is individually bounded; a read
// that exhausts its retry budget is skipped and reported, never fatal.
const (
	DefaultCallTimeout    = 15 * time.Second
	DefaultConfirmTimeout = 2 * time.Minute
	DefaultRetryInterval  = 250 * time.Millisecond
	DefaultMaxRetries     = 3
)

// DefaultScanConcurrency bounds the projection-read fan-out during index
// construction.
const DefaultScanConcurrency = 8
