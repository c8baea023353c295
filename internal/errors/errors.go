// Package errors provides centralized error definitions and error handling utilities
// for lockreg. It defines the error kinds every component reports, domain error
// types carrying asset and caller context, and classification helpers.
//
// # Error Kinds
//
// Every failure returned by the registry components matches exactly one of the
// public kinds via errors.Is:
//   - ErrNotFound: the asset (or its owner) does not exist
//   - ErrUnauthorized: the caller lacks ownership or delegation
//   - ErrInvalidArgument: self-approval, non-future expiry, null owner, ...
//   - ErrAlreadyLocked: a second lock on an actively locked asset
//   - ErrAssetLocked: a transfer attempted on a locked asset
//   - ErrUnsupported: a transfer attempted on a bound certificate
//
// Refined sentinels such as ErrNotLocked or ErrExpiryNotFuture carry a more
// precise message but still unwrap to their kind.
//
// # Usage
//
//	err := errors.NewLockError("caller may not release this lock", errors.ErrUnauthorized).
//		WithOp("unlock").
//		WithAsset("42").
//		WithCaller("0xbeef")
//
//	if errors.Is(err, errors.ErrUnauthorized) { ... }
//
//	var lockErr *errors.LockError
//	if errors.As(err, &lockErr) { ... }
//
//	switch errors.Kind(err) {
//	case errors.ErrAssetLocked:
//	    ...
//	}
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Error kinds. Every error returned by lockreg components matches one of these.
var (
	// ErrNotFound indicates that an asset or its owner does not exist.
	ErrNotFound = New("not found")
	// ErrUnauthorized indicates that the caller lacks ownership or delegation.
	ErrUnauthorized = New("unauthorized")
	// ErrInvalidArgument indicates a malformed or disallowed argument.
	ErrInvalidArgument = New("invalid argument")
	// ErrAlreadyLocked indicates a lock attempt on an actively locked asset.
	ErrAlreadyLocked = New("asset already locked")
	// ErrAssetLocked indicates an ownership change attempted on a locked asset.
	ErrAssetLocked = New("asset is locked")
	// ErrUnsupported indicates an operation the target never supports.
	ErrUnsupported = New("unsupported operation")
)

// Refined sentinels. Each unwraps to exactly one kind.
var (
	// ErrNotLocked indicates an unlock of an asset without an active lock.
	ErrNotLocked = refine(ErrInvalidArgument, "asset is not locked")
	// ErrExpiryNotFuture indicates a lock expiry at or before the current time.
	ErrExpiryNotFuture = refine(ErrInvalidArgument, "expiry must be strictly in the future")
	// ErrLockTooLong indicates a lock expiry beyond the configured maximum duration.
	ErrLockTooLong = refine(ErrInvalidArgument, "lock duration exceeds the configured maximum")
	// ErrNullOwner indicates an asset whose owner is the null identity.
	ErrNullOwner = refine(ErrInvalidArgument, "asset owner is the null identity")
	// ErrSelfApproval indicates an owner naming itself as operator.
	ErrSelfApproval = refine(ErrInvalidArgument, "operator must differ from owner")
	// ErrNullIdentity indicates an identity argument that must not be null.
	ErrNullIdentity = refine(ErrInvalidArgument, "identity must not be null")
	// ErrCertificateNotTransferable indicates a transfer attempt on a bound certificate.
	ErrCertificateNotTransferable = refine(ErrUnsupported, "bound certificates cannot be transferred")
)

// kinds lists the public error kinds in classification order.
var kinds = []error{
	ErrNotFound,
	ErrUnauthorized,
	ErrInvalidArgument,
	ErrAlreadyLocked,
	ErrAssetLocked,
	ErrUnsupported,
}

// refinedError is a sentinel with its own message that unwraps to a kind.
type refinedError struct {
	message string
	kind    error
}

func refine(kind error, message string) error {
	return &refinedError{message: message, kind: kind}
}

func (e *refinedError) Error() string { return e.message }
func (e *refinedError) Unwrap() error { return e.kind }

// Kind returns the public error kind err belongs to, or nil if err does not
// match any kind.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if Is(err, k) {
			return k
		}
	}
	return nil
}

// Kinds returns the public error kinds.
func Kinds() []error {
	out := make([]error, len(kinds))
	copy(out, kinds)
	return out
}

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// LockregError is the base interface for all lockreg errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type LockregError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// severityFor picks the default severity for a cause. Rejections with a
// public kind are caller mistakes; anything else is a real failure.
func severityFor(cause error) Severity {
	if Kind(cause) != nil {
		return SeverityWarning
	}
	return SeverityError
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// LockError represents errors raised by the lock ledger, the approval store
// and the transfer guard.
//
// Example:
//
//	err := errors.NewLockError("caller is not the locker", errors.ErrUnauthorized)
//	err = err.WithOp("unlock").WithAsset("42").WithCaller("0xbeef")
//	fmt.Println(err) // "lock error [op=unlock, asset=42, caller=0xbeef]: caller is not the locker: unauthorized"
type LockError struct {
	baseError
	Op      string
	AssetID string
	Caller  string
}

// NewLockError creates a new LockError.
func NewLockError(message string, cause error) *LockError {
	return &LockError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   severityFor(cause),
			userFacing: true,
		},
	}
}

// WithOp adds the operation name to the error context.
func (e *LockError) WithOp(op string) *LockError {
	e.Op = op
	return e
}

// WithAsset adds an asset ID to the error context.
func (e *LockError) WithAsset(id string) *LockError {
	e.AssetID = id
	return e
}

// WithCaller adds the calling identity to the error context.
func (e *LockError) WithCaller(caller string) *LockError {
	e.Caller = caller
	return e
}

// WithSeverity sets the error severity.
func (e *LockError) WithSeverity(s Severity) *LockError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *LockError) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.AssetID != "" {
		parts = append(parts, fmt.Sprintf("asset=%s", e.AssetID))
	}
	if e.Caller != "" {
		parts = append(parts, fmt.Sprintf("caller=%s", e.Caller))
	}

	prefix := "lock error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("lock error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *LockError) Is(target error) bool {
	if _, ok := target.(*LockError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// CertificateError represents errors raised by the bound certificate manager.
//
// Example:
//
//	err := errors.NewCertificateError("metadata lookup failed", cause).WithAsset("42")
type CertificateError struct {
	baseError
	AssetID       string
	CertificateID string
}

// NewCertificateError creates a new CertificateError. Certificate failures
// abort the enclosing lock, so they default to SeverityError.
func NewCertificateError(message string, cause error) *CertificateError {
	return &CertificateError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithAsset adds an asset ID to the error context.
func (e *CertificateError) WithAsset(id string) *CertificateError {
	e.AssetID = id
	return e
}

// WithCertificate adds a certificate ID to the error context.
func (e *CertificateError) WithCertificate(id string) *CertificateError {
	e.CertificateID = id
	return e
}

// Error returns the formatted error message.
func (e *CertificateError) Error() string {
	var parts []string
	if e.AssetID != "" {
		parts = append(parts, fmt.Sprintf("asset=%s", e.AssetID))
	}
	if e.CertificateID != "" {
		parts = append(parts, fmt.Sprintf("certificate=%s", e.CertificateID))
	}

	prefix := "certificate error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("certificate error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *CertificateError) Is(target error) bool {
	if _, ok := target.(*CertificateError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
// It always matches ErrNotFound.
//
// Example:
//
//	err := errors.NewNotFoundError("asset", "42")
//	fmt.Println(err) // "asset '42' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	if target == ErrNotFound {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input. It always matches ErrInvalidArgument.
//
// Example:
//
//	err := errors.NewValidationError("asset ID cannot be empty")
//	err = err.WithField("assetID").WithValue("")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation error")
	if e.Field != "" {
		sb.WriteString(fmt.Sprintf(" [field=%s]", e.Field))
	}
	sb.WriteString(": ")
	sb.WriteString(e.message)
	if e.Value != nil {
		sb.WriteString(fmt.Sprintf(" (value: %v)", e.Value))
	}
	if e.cause != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.cause))
	}
	return sb.String()
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if target == ErrInvalidArgument {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsUserFacing returns true if the error message is safe to display to end users.
// This checks for:
//   - Errors implementing LockregError with IsUserFacing() returning true
//   - Errors matching one of the public kinds
//
// Example:
//
//	if errors.IsUserFacing(err) {
//	    fmt.Fprintln(os.Stderr, err)
//	} else {
//	    fmt.Fprintln(os.Stderr, "internal error")
//	}
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var lockregErr LockregError
	if As(err, &lockregErr) {
		return lockregErr.IsUserFacing()
	}

	return Kind(err) != nil
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement LockregError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var lockregErr LockregError
	if As(err, &lockregErr) {
		return lockregErr.Severity()
	}

	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to save snapshot")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
