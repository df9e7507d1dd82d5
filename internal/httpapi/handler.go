// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

// Package httpapi exposes the account workflows as a JSON HTTP API.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/authkeep/authkeep/internal/auth"
	"github.com/authkeep/authkeep/pkg/errutil"
)

const tracerName = "github.com/authkeep/authkeep/internal/httpapi"

// Operation names used in routes, logs and metrics.
const (
	OpRegister       = "register"
	OpLogin          = "login"
	OpVerify         = "verify"
	OpForgotPassword = "forgot_password"
	OpResetPassword  = "reset_password"
)

// Success messages.
const (
	msgUserCreated   = "User created successfully"
	msgLoginOK       = "Login successful"
	msgVerified      = "User verified successfully"
	msgResetLinkSent = "Password reset link sent"
	msgPasswordReset = "Password reset successfully"
)

// Authenticator is the workflow surface the API drives. *auth.Service implements it.
type Authenticator interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Account, error)
	Login(ctx context.Context, in auth.LoginInput) (string, error)
	VerifyEmail(ctx context.Context, in auth.VerifyEmailInput) error
	ForgotPassword(ctx context.Context, in auth.ForgotPasswordInput) (string, error)
	ResetPassword(ctx context.Context, in auth.ResetPasswordInput) error
}

// RequestRecorder receives per-request outcomes, typically for metrics.
type RequestRecorder interface {
	RecordRequest(operation, status string, elapsed time.Duration)
}

// Handler serves the account API.
type Handler struct {
	auth     Authenticator
	logger   *slog.Logger
	recorder RequestRecorder
	tracer   trace.Tracer
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithRecorder reports request outcomes.
func WithRecorder(recorder RequestRecorder) Option {
	return func(h *Handler) {
		h.recorder = recorder
	}
}

// WithTracerProvider sets where request spans are created.
// Defaults to the global otel provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(h *Handler) {
		if tp != nil {
			h.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewHandler creates a Handler over the given workflows.
func NewHandler(authenticator Authenticator, opts ...Option) *Handler {
	h := &Handler{
		auth:   authenticator,
		logger: slog.New(slog.DiscardHandler),
		tracer: otel.GetTracerProvider().Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the API mux. Routes only accept POST.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /register", h.instrument(OpRegister, h.register))
	mux.Handle("POST /login", h.instrument(OpLogin, h.login))
	mux.Handle("POST /verify", h.instrument(OpVerify, h.verify))
	mux.Handle("POST /forgot-password", h.instrument(OpForgotPassword, h.forgotPassword))
	mux.Handle("POST /reset-password", h.instrument(OpResetPassword, h.resetPassword))
	return mux
}

type userView struct {
	Email string `json:"email"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type tokenResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

type registerResponse struct {
	Message string   `json:"message"`
	User    userView `json:"user"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if !h.decode(w, r, &in) {
		return
	}
	account, err := h.auth.Register(r.Context(), in)
	if err != nil {
		h.writeError(w, r, OpRegister, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{
		Message: msgUserCreated,
		User:    userView{Email: account.Email},
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in auth.LoginInput
	if !h.decode(w, r, &in) {
		return
	}
	token, err := h.auth.Login(r.Context(), in)
	if err != nil {
		h.writeError(w, r, OpLogin, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Message: msgLoginOK, Token: token})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	var in auth.VerifyEmailInput
	if !h.decode(w, r, &in) {
		return
	}
	if err := h.auth.VerifyEmail(r.Context(), in); err != nil {
		h.writeError(w, r, OpVerify, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msgVerified})
}

func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var in auth.ForgotPasswordInput
	if !h.decode(w, r, &in) {
		return
	}
	token, err := h.auth.ForgotPassword(r.Context(), in)
	if err != nil {
		h.writeError(w, r, OpForgotPassword, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Message: msgResetLinkSent, Token: token})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var in auth.ResetPasswordInput
	if !h.decode(w, r, &in) {
		return
	}
	if err := h.auth.ResetPassword(r.Context(), in); err != nil {
		h.writeError(w, r, OpResetPassword, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msgPasswordReset})
}

// writeError maps a workflow error to a response. Classified errors are
// client errors and their message is public; anything else is a 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	kind := auth.KindOf(err)
	if kind == auth.KindUnexpected {
		h.logger.ErrorContext(r.Context(), "request failed",
			append([]any{"operation", operation}, errutil.Attrs(err)...)...)
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: err.Error()})
		return
	}
	h.logger.DebugContext(r.Context(), "request rejected",
		"operation", operation,
		"kind", kind.String(),
		"reason", err.Error())
	writeJSON(w, http.StatusBadRequest, messageResponse{Message: err.Error()})
}

// instrument wraps every request to operation in a span and records its
// status and latency.
func (h *Handler) instrument(operation string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := h.tracer.Start(r.Context(), "authkeep."+operation,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("authkeep.operation", operation)))
		defer span.End()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.response.status_code", sw.status))
		if sw.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(sw.status))
		}
		if h.recorder != nil {
			h.recorder.RecordRequest(operation, strconv.Itoa(sw.status), time.Since(start))
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Compile-time interface check.
var _ Authenticator = (*auth.Service)(nil)
