// Package apperrors provides sentinel and custom error types for the application.
package apperrors

// ErrConfiguration represents a configuration error.
// Use for invalid experiment parameters detected before any work starts; these
// abort the run immediately.
var ErrConfiguration = &ConfigurationError{}

// ConfigurationError is a sentinel error for invalid configuration.
type ConfigurationError struct {
	Parameter string
	Message   string
}

// NewConfigurationError creates a ConfigurationError naming the violated precondition.
func NewConfigurationError(parameter, message string) *ConfigurationError {
	return &ConfigurationError{
		Parameter: parameter,
		Message:   message,
	}
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Message != "" {
		if e.Parameter != "" {
			return "invalid configuration for " + e.Parameter + ": " + e.Message
		}

		return e.Message
	}

	if e.Parameter != "" {
		return "invalid configuration for " + e.Parameter
	}

	return "configuration error"
}

// Is implements the error interface for error comparison.
func (e *ConfigurationError) Is(target error) bool {
	_, ok := target.(*ConfigurationError)

	return ok
}

// ErrValidation represents a validation error.
// Use when a generated response fails trial validation (wrong term count,
// duplicates, excluded terms).
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for validation failures.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is implements the error interface for error comparison.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}

// ErrNotFound represents a "not found" error.
// Use when a requested resource (run, vocabulary row) doesn't exist.
var ErrNotFound = &NotFoundError{}

// NotFoundError is a sentinel error for resources that are not found.
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new NotFoundError with a custom message.
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Resource != "" {
		return e.Resource + " not found"
	}

	return "resource not found"
}

// Is implements the error interface for error comparison.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}

// ErrOutOfVocabulary is the sentinel for terms with no embedding in the
// requested space. Out-of-vocabulary terms are excluded from pairwise
// computation; they never abort a trial on their own.
var ErrOutOfVocabulary = &OutOfVocabularyError{}

// OutOfVocabularyError reports a term missing from an embedding space.
type OutOfVocabularyError struct {
	Term  string
	Space string
}

// NewOutOfVocabularyError creates an OutOfVocabularyError for the given term and space.
func NewOutOfVocabularyError(term, space string) *OutOfVocabularyError {
	return &OutOfVocabularyError{Term: term, Space: space}
}

// Error implements the error interface.
func (e *OutOfVocabularyError) Error() string {
	if e.Term != "" {
		if e.Space != "" {
			return "term " + e.Term + " not in vocabulary of space " + e.Space
		}

		return "term " + e.Term + " not in vocabulary"
	}

	return "out of vocabulary"
}

// Is implements the error interface for error comparison.
func (e *OutOfVocabularyError) Is(target error) bool {
	_, ok := target.(*OutOfVocabularyError)

	return ok
}

// ErrCollaborator is the sentinel for external collaborator failures
// (generation or embedding API errors, timeouts).
var ErrCollaborator = &CollaboratorError{}

// CollaboratorError reports a failure from an external collaborator.
// Retryable failures are retried up to the orchestrator's cap before the
// trial is marked invalid.
type CollaboratorError struct {
	Collaborator string
	Message      string
	Retryable    bool
}

// NewCollaboratorError creates a retryable CollaboratorError.
func NewCollaboratorError(collaborator, message string) *CollaboratorError {
	return &CollaboratorError{
		Collaborator: collaborator,
		Message:      message,
		Retryable:    true,
	}
}

// Error implements the error interface.
func (e *CollaboratorError) Error() string {
	if e.Message != "" {
		if e.Collaborator != "" {
			return e.Collaborator + ": " + e.Message
		}

		return e.Message
	}

	return "collaborator error"
}

// Is implements the error interface for error comparison.
func (e *CollaboratorError) Is(target error) bool {
	_, ok := target.(*CollaboratorError)

	return ok
}
