package backend

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every backend. Callers distinguish failure
// modes with errors.Is; io.EOF marks end of stream and is not an error.
var (
	ErrOpenFailed       = errors.New("backend: open failed")
	ErrUnsupportedCodec = errors.New("backend: unsupported codec")
	ErrIO               = errors.New("backend: i/o error")
	ErrSeekFailed       = errors.New("backend: seek failed")
	ErrDecode           = errors.New("backend: decode error")
	ErrConversion       = errors.New("backend: conversion failed")
	ErrAllocFailed      = errors.New("backend: allocation failed")
	ErrOutOfMemory      = errors.New("backend: out of memory")
	ErrPacketCopy       = errors.New("backend: packet copy failed")
)

// StageError records which pipeline stage produced a fatal error.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
