// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package stationerr defines the error kinds spec §7 enumerates for the
// connection state machine and data path, generalizing the teacher's own
// sentinel-error style (plain errors.New in eapol/keywrap) with a Kind a
// caller can recover via errors.As, so the state machine can react to
// *why* a transition failed without string-matching.
package stationerr

import "fmt"

// Kind names one of the error categories spec §7 enumerates.
type Kind int

const (
	Timeout Kind = iota
	NotSupported
	DataLengthMismatch
	InvalidAddress
	OutOfResources
	VersionMismatch
	Unsuccessful
	OperationCancelled
	AccessDenied
)

func (k Kind) String() string {
	switch k {
	case Timeout:
		return "timeout"
	case NotSupported:
		return "not supported"
	case DataLengthMismatch:
		return "data length mismatch"
	case InvalidAddress:
		return "invalid address"
	case OutOfResources:
		return "out of resources"
	case VersionMismatch:
		return "version mismatch"
	case Unsuccessful:
		return "unsuccessful"
	case OperationCancelled:
		return "operation cancelled"
	case AccessDenied:
		return "access denied"
	default:
		return "unknown"
	}
}

// Error pairs a Kind with the specific context of one failure.
type Error struct {
	Kind Kind
	Op   string // the operation that failed, e.g. "associate", "parse-rsn"
	Err  error  // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a *Error with no wrapped cause.
func New(kind Kind, op string) error {
	return &Error{Kind: kind, Op: op}
}

// Wrap builds a *Error wrapping err.
func Wrap(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is a *Error of the given kind, unwrapping
// through any wrapping chain.
func Is(err error, kind Kind) bool {
	for err != nil {
		if se, ok := err.(*Error); ok {
			if se.Kind == kind {
				return true
			}
			err = se.Err
			continue
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
