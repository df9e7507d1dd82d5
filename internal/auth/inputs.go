// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package auth

import "strings"

// RegisterInput is the request to create an account.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks required fields and the email format.
func (in RegisterInput) Validate() error {
	if blank(in.Email) || blank(in.Password) {
		return invalidInput("Email and password are required")
	}
	return ValidateEmail(in.Email)
}

// LoginInput is the request to exchange credentials for a session token.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks required fields.
func (in LoginInput) Validate() error {
	if blank(in.Email) || blank(in.Password) {
		return invalidInput("Email and password are required")
	}
	return nil
}

// VerifyEmailInput is the request to confirm an email with the code sent to it.
type VerifyEmailInput struct {
	Email            string `json:"email"`
	VerificationCode string `json:"verificationCode"`
}

// Validate checks required fields.
func (in VerifyEmailInput) Validate() error {
	if blank(in.Email) || blank(in.VerificationCode) {
		return invalidInput("Email and verification code are required")
	}
	return nil
}

// ForgotPasswordInput is the request for a password reset token.
type ForgotPasswordInput struct {
	Email string `json:"email"`
}

// Validate checks required fields.
func (in ForgotPasswordInput) Validate() error {
	if blank(in.Email) {
		return invalidInput("Email is required")
	}
	return nil
}

// ResetPasswordInput is the request to replace a password using a reset token.
type ResetPasswordInput struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// Validate checks required fields.
func (in ResetPasswordInput) Validate() error {
	if blank(in.Token) || blank(in.NewPassword) {
		return invalidInput("Token and new password are required")
	}
	return nil
}

// blank treats whitespace-only values as missing. Non-blank values are used
// as given, so a password keeps any surrounding spaces.
func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
