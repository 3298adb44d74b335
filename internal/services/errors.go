package services

import (
	"errors"
	"fmt"

	"github.com/SAP-F-2025/cbt-service/internal/validator"
)

// ErrorKind classifies a failure for the transport layer.
type ErrorKind string

const (
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindPreconditionFailed ErrorKind = "PRECONDITION_FAILED"
	KindUnauthorized       ErrorKind = "UNAUTHORIZED"
	KindConflict           ErrorKind = "CONFLICT"
	KindInternal           ErrorKind = "INTERNAL"
)

// ServiceError is a typed domain error. Two ServiceErrors match under
// errors.Is when their codes are equal.
type ServiceError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	return ok && t.Code == e.Code
}

// Wrap returns a copy of e carrying err as its cause.
func (e *ServiceError) Wrap(err error) *ServiceError {
	return &ServiceError{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: err}
}

func newServiceError(kind ErrorKind, code, message string) *ServiceError {
	return &ServiceError{Kind: kind, Code: code, Message: message}
}

var (
	// Exams
	ErrExamNotFound     = newServiceError(KindNotFound, "EXAM_NOT_FOUND", "exam not found")
	ErrQuestionNotFound = newServiceError(KindNotFound, "QUESTION_NOT_FOUND", "question not found")

	// Students
	ErrStudentProfileNotFound = newServiceError(KindNotFound, "STUDENT_PROFILE_NOT_FOUND", "student profile not found")
	ErrStudentAlreadyExists   = newServiceError(KindConflict, "STUDENT_ALREADY_EXISTS", "student profile already exists")

	// Attempts
	ErrExamNotActive           = newServiceError(KindPreconditionFailed, "EXAM_NOT_ACTIVE", "exam is not currently available")
	ErrInvalidExamPassword     = newServiceError(KindUnauthorized, "INVALID_EXAM_PASSWORD", "invalid exam password")
	ErrMaxAttemptsReached      = newServiceError(KindPreconditionFailed, "MAX_ATTEMPTS_REACHED", "maximum number of attempts reached")
	ErrAttemptNotFound         = newServiceError(KindNotFound, "ATTEMPT_NOT_FOUND", "attempt not found")
	ErrAttemptAlreadySubmitted = newServiceError(KindConflict, "ATTEMPT_ALREADY_SUBMITTED", "attempt already submitted")

	// Results
	ErrResultNotFound    = newServiceError(KindNotFound, "RESULT_NOT_FOUND", "result not found")
	ErrResultNotReleased = newServiceError(KindPreconditionFailed, "RESULT_NOT_RELEASED", "result has not been released")

	// Spreadsheets
	ErrInvalidSpreadsheet = newServiceError(KindPreconditionFailed, "INVALID_SPREADSHEET", "spreadsheet could not be read")
)

// PermissionError reports that a user may not act on a resource.
type PermissionError struct {
	UserID     string
	ResourceID uint
	Resource   string
	Action     string
	Reason     string
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %d: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

// BusinessRuleError is a rule violation that is not a field validation.
type BusinessRuleError struct {
	Rule    string
	Message string
	Details map[string]interface{}
}

func NewBusinessRuleError(rule, message string, details map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message, Details: details}
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %s violated: %s", e.Rule, e.Message)
}

// KindOf resolves the kind of any error returned by a service.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}

	var permErr *PermissionError
	if errors.As(err, &permErr) {
		return KindUnauthorized
	}

	var ruleErr *BusinessRuleError
	if errors.As(err, &ruleErr) {
		return KindPreconditionFailed
	}

	var valErrs validator.ValidationErrors
	if errors.As(err, &valErrs) {
		return KindPreconditionFailed
	}

	return KindInternal
}

// CodeOf returns the stable error code used in responses.
func CodeOf(err error) string {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Code
	}

	var permErr *PermissionError
	if errors.As(err, &permErr) {
		return "PERMISSION_DENIED"
	}

	var ruleErr *BusinessRuleError
	if errors.As(err, &ruleErr) {
		return ruleErr.Rule
	}

	var valErrs validator.ValidationErrors
	if errors.As(err, &valErrs) {
		return "VALIDATION_FAILED"
	}

	return "INTERNAL_ERROR"
}
