// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package security

import "crypto/subtle"

// SecureString holds a run password with best-effort scrubbing on Clear.
//
// The garbage collector may copy memory at any time and every call to String
// creates an immutable copy, so Clear only shortens the window in which the
// plaintext sits in the heap.
type SecureString struct {
	data []byte
}

// NewSecureString copies s into a mutable byte slice
func NewSecureString(s string) *SecureString {
	data := make([]byte, len(s))
	copy(data, s)
	return &SecureString{data: data}
}

// String returns the plaintext. Each call creates a copy that Clear cannot reach.
func (ss *SecureString) String() string {
	if ss == nil {
		return ""
	}
	return string(ss.data)
}

// IsEmpty reports whether ss is nil, cleared or holds the empty string
func (ss *SecureString) IsEmpty() bool {
	return ss == nil || len(ss.data) == 0
}

// Equal compares two values in constant time
func (ss *SecureString) Equal(other *SecureString) bool {
	if ss.IsEmpty() || other.IsEmpty() {
		return ss.IsEmpty() && other.IsEmpty()
	}
	return subtle.ConstantTimeCompare(ss.data, other.data) == 1
}

// Redacted never exposes the value, for use in fmt verbs and logs
func (ss *SecureString) Redacted() string {
	if ss.IsEmpty() {
		return ""
	}
	return "********"
}

// Clear overwrites the internal bytes with zeros and releases them
func (ss *SecureString) Clear() {
	if ss == nil || ss.data == nil {
		return
	}
	clear(ss.data)
	ss.data = nil
}
