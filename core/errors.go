package core

import (
	"errors"
	"fmt"
)

// ErrorCode is the machine-readable value placed in the ?error= query of
// error redirects. The sign-in and error pages key their messages on it.
type ErrorCode string

const (
	CodeConfiguration         ErrorCode = "Configuration"
	CodeAccessDenied          ErrorCode = "AccessDenied"
	CodeVerification          ErrorCode = "Verification"
	CodeSignin                ErrorCode = "Signin"
	CodeOAuthSignin           ErrorCode = "OAuthSignin"
	CodeOAuthCallback         ErrorCode = "OAuthCallback"
	CodeOAuthCreateAccount    ErrorCode = "OAuthCreateAccount"
	CodeEmailCreateAccount    ErrorCode = "EmailCreateAccount"
	CodeCallback              ErrorCode = "Callback"
	CodeOAuthAccountNotLinked ErrorCode = "OAuthAccountNotLinked"
	CodeEmailSignin           ErrorCode = "EmailSignin"
	CodeCredentialsSignin     ErrorCode = "CredentialsSignin"
	CodeSessionRequired       ErrorCode = "SessionRequired"
	CodeDefault               ErrorCode = "Default"
)

// SignInErrorCodes are shown on the sign-in page itself rather than the
// error page.
var SignInErrorCodes = map[ErrorCode]bool{
	CodeSignin:                true,
	CodeOAuthSignin:           true,
	CodeOAuthCallback:         true,
	CodeOAuthCreateAccount:    true,
	CodeEmailCreateAccount:    true,
	CodeCallback:              true,
	CodeOAuthAccountNotLinked: true,
	CodeEmailSignin:           true,
	CodeCredentialsSignin:     true,
	CodeSessionRequired:       true,
}

// AuthError is a sign-in failure with a stable code. Two AuthErrors match
// under errors.Is when their codes are equal.
type AuthError struct {
	Code ErrorCode
	Err  error
}

func NewAuthError(code ErrorCode, err error) *AuthError {
	return &AuthError{Code: code, Err: err}
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Code == e.Code
}

// Sign-in flow errors
var (
	ErrOAuthSignin       = &AuthError{Code: CodeOAuthSignin}
	ErrOAuthCallback     = &AuthError{Code: CodeOAuthCallback}
	ErrAccountNotLinked  = &AuthError{Code: CodeOAuthAccountNotLinked}
	ErrCredentialsSignin = &AuthError{Code: CodeCredentialsSignin}
	ErrVerification      = &AuthError{Code: CodeVerification}
	ErrAccessDenied      = &AuthError{Code: CodeAccessDenied}
	ErrSessionRequired   = &AuthError{Code: CodeSessionRequired}
	ErrEmailSignin       = &AuthError{Code: CodeEmailSignin}
)

// Session errors
var (
	ErrInvalidToken    = errors.New("invalid session token")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// Storage errors
var (
	ErrUserExists    = errors.New("user already exists")
	ErrUserNotFound  = errors.New("user not found")
	ErrAccountExists = errors.New("account already linked")
)

// Config errors (server-side configuration)
var (
	ErrSecretRequired       = errors.New("secret is required")
	ErrSecretTooShort       = errors.New("secret too short")
	ErrAdapterRequired      = errors.New("email provider requires an adapter")
	ErrDatabaseAdapter      = errors.New("database session strategy requires an adapter")
	ErrAuthorizeRequired    = errors.New("credentials provider requires an authorize function")
	ErrUnsupportedStrategy  = errors.New("database session strategy cannot be used with credentials-only providers")
	ErrInvalidProvider      = errors.New("invalid provider configuration")
	ErrDuplicateProvider    = errors.New("duplicate provider id")
	ErrUnknownSessionConfig = errors.New("unknown session strategy")
	ErrInvalidURL           = errors.New("url must be absolute")
)

// ConfigurationError reports a misconfigured instance. It is never shown to
// end users; requests that hit one are redirected to ?error=Configuration.
type ConfigurationError struct {
	Err    error
	Detail string
}

func (e *ConfigurationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error: %v - %s", e.Err, e.Detail)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// AdapterError wraps any failure returned by an Adapter method. Name returns
// "<Method>Error", e.g. "CreateUserError".
type AdapterError struct {
	Method string
	Err    error
}

func (e *AdapterError) Name() string { return e.Method + "Error" }

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name(), e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// IsAdapterError reports whether err came from the named adapter method.
func IsAdapterError(err error, method string) bool {
	var ae *AdapterError
	return errors.As(err, &ae) && ae.Method == method
}

// ErrorCodeOf maps err to the ?error= code a redirect should carry.
func ErrorCodeOf(err error) ErrorCode {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code
	}
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return CodeConfiguration
	}
	return CodeDefault
}
