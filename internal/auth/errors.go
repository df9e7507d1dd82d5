// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested account does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailTaken is returned by repositories when an account with the same
// email already exists.
var ErrEmailTaken = errors.New("email already registered")

// Error codes for failures the caller can act on. Anything else is unexpected.
const (
	CodeInvalidInput            = "AUTH_INVALID_INPUT"
	CodeEmailTaken              = "AUTH_EMAIL_TAKEN"
	CodeAccountNotFound         = "AUTH_ACCOUNT_NOT_FOUND"
	CodeInvalidCredentials      = "AUTH_INVALID_CREDENTIALS"
	CodeEmailNotVerified        = "AUTH_EMAIL_NOT_VERIFIED"
	CodeAlreadyVerified         = "AUTH_ALREADY_VERIFIED"
	CodeInvalidVerificationCode = "AUTH_INVALID_VERIFICATION_CODE"
	CodeInvalidToken            = "AUTH_INVALID_TOKEN"
)

// ErrorKind classifies an error for transport mapping.
type ErrorKind int

// Error kinds.
const (
	KindUnexpected ErrorKind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindAuthentication
	KindInvalidToken
)

// String returns the kind name used in logs and metric labels.
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindAuthentication:
		return "authentication"
	case KindInvalidToken:
		return "invalid_token"
	default:
		return "unexpected"
	}
}

// KindOf returns the ErrorKind for err based on its oops code.
// Errors without a recognised code are KindUnexpected.
func KindOf(err error) ErrorKind {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return KindUnexpected
	}
	switch oopsErr.Code() {
	case CodeInvalidInput:
		return KindValidation
	case CodeEmailTaken:
		return KindConflict
	case CodeAccountNotFound:
		return KindNotFound
	case CodeInvalidCredentials, CodeEmailNotVerified, CodeAlreadyVerified, CodeInvalidVerificationCode:
		return KindAuthentication
	case CodeInvalidToken:
		return KindInvalidToken
	default:
		return KindUnexpected
	}
}

func invalidInput(msg string) error {
	return oops.Code(CodeInvalidInput).Errorf("%s", msg)
}
