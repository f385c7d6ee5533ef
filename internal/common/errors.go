// Package common defines shared sentinel errors used across the sync
// pipeline. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// ErrNotFound indicates the remote object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrIntegrity indicates a downloaded file failed size or digest
	// verification against the remote descriptor.
	ErrIntegrity = errors.New("integrity verification failed")

	// ErrInsufficientSpace indicates the local volume cannot hold the
	// object about to be downloaded.
	ErrInsufficientSpace = errors.New("insufficient disk space")
)
