// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors for the graph package.
var (
	// ErrNilNode is returned when a nil node is registered.
	ErrNilNode = errors.New("node must not be nil")

	// ErrDuplicateNode is returned when the same node is registered twice.
	ErrDuplicateNode = errors.New("node already registered")

	// ErrNodeNotFound is returned when a referenced node was never registered.
	ErrNodeNotFound = errors.New("node not found")

	// ErrCycleDetected is returned when the dependencies form a cycle.
	ErrCycleDetected = errors.New("cycle detected in dependency graph")

	// ErrIsolatedDependent is returned when a dependent declares no parents.
	ErrIsolatedDependent = errors.New("dependent has no parents")

	// ErrNotParameter is returned when a dependent is used where a parameter is required.
	ErrNotParameter = errors.New("node is not a parameter")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTransactionActive is returned by Begin while another transaction is open.
	ErrTransactionActive = errors.New("a transaction is already open")

	// ErrTransactionClosed is returned when a committed or rolled back transaction is used.
	ErrTransactionClosed = errors.New("transaction already closed")

	// ErrNotPropagated is returned by Commit before Propagate has run.
	ErrNotPropagated = errors.New("transaction has not been propagated")

	// ErrAlreadyPropagated is returned when Propagate runs twice in one transaction.
	ErrAlreadyPropagated = errors.New("transaction already propagated")

	// ErrUnexpectedNotification is returned when a parent change is routed to a parameter.
	ErrUnexpectedNotification = errors.New("parameter received a parent change notification")

	// ErrDanglingState is returned when a node still carries iteration state outside a transaction.
	ErrDanglingState = errors.New("node carries state from an unfinished iteration")
)

// NodeError wraps an error with the node that caused it.
type NodeError struct {
	NodeName string
	Err      error
}

// Error returns the error message.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q: %v", e.NodeName, e.Err)
}

// Unwrap returns the underlying error.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// NewNodeError creates a NodeError.
func NewNodeError(nodeName string, err error) *NodeError {
	return &NodeError{
		NodeName: nodeName,
		Err:      err,
	}
}

// CycleError provides details about a detected cycle.
type CycleError struct {
	Path []string
}

// Error returns the cycle description.
func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %v", e.Path)
}

// Unwrap lets errors.Is match ErrCycleDetected.
func (e *CycleError) Unwrap() error {
	return ErrCycleDetected
}

// NewCycleError creates a CycleError.
func NewCycleError(path []string) *CycleError {
	return &CycleError{Path: path}
}
