package api

import (
	"errors"
	"fmt"
)

// NotFoundError represents a resource not found error with contextual
// information. It is returned by all API operations when a requested
// instance, template, or credential does not exist.
type NotFoundError struct {
	// ResourceType categorizes the resource that was not found
	// (e.g. "instance", "template", "credential").
	ResourceType string

	// ResourceName is the identifier of the resource that was not found.
	ResourceName string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.ResourceType, e.ResourceName)
}

// IsNotFound checks if an error is a NotFoundError using error unwrapping.
func IsNotFound(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// NewNotFoundError creates a new NotFoundError for the given resource.
func NewNotFoundError(resourceType, resourceName string) *NotFoundError {
	return &NotFoundError{
		ResourceType: resourceType,
		ResourceName: resourceName,
	}
}

// Convenience constructors for each resource type.
var (
	NewInstanceNotFoundError = func(id string) *NotFoundError {
		return NewNotFoundError("instance", id)
	}

	NewTemplateNotFoundError = func(id string) *NotFoundError {
		return NewNotFoundError("template", id)
	}

	NewCredentialNotFoundError = func(id string) *NotFoundError {
		return NewNotFoundError("credential", id)
	}
)

// ConfigError indicates an invalid instance configuration: an unknown or
// unresolvable template reference, an unknown or inactive credential
// reference, or a malformed field. It is raised synchronously at create or
// start time; a config that fails validation is never partially persisted.
type ConfigError struct {
	// Field names the configuration field that failed validation.
	Field string

	// Reason is the human-readable failure reason.
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// IsConfigError checks if an error is a ConfigError using error unwrapping.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

// NewConfigError creates a new ConfigError for the given field.
func NewConfigError(field, reason string) *ConfigError {
	return &ConfigError{Field: field, Reason: reason}
}

// ConnectError indicates that the chat gateway connection failed while an
// instance was starting. The instance enters the error state with the
// failure reason retained; it is never auto-retried.
type ConnectError struct {
	InstanceID string
	Err        error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("instance %s: gateway connect failed: %v", e.InstanceID, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// IsConnectError checks if an error is a ConnectError using error unwrapping.
func IsConnectError(err error) bool {
	var connectErr *ConnectError
	return errors.As(err, &connectErr)
}

// NewConnectError wraps a gateway connect failure for the given instance.
func NewConnectError(instanceID string, err error) *ConnectError {
	return &ConnectError{InstanceID: instanceID, Err: err}
}

// CrashError indicates a fault raised while a worker was running. It is
// produced by the supervising wrapper around the instance task; the instance
// is moved to the error state and is not automatically restarted.
type CrashError struct {
	InstanceID string
	Err        error
}

func (e *CrashError) Error() string {
	return fmt.Sprintf("instance %s: worker crashed: %v", e.InstanceID, e.Err)
}

func (e *CrashError) Unwrap() error {
	return e.Err
}

// IsCrashError checks if an error is a CrashError using error unwrapping.
func IsCrashError(err error) bool {
	var crashErr *CrashError
	return errors.As(err, &crashErr)
}

// NewCrashError wraps a worker fault for the given instance.
func NewCrashError(instanceID string, err error) *CrashError {
	return &CrashError{InstanceID: instanceID, Err: err}
}

// ErrTemplateInUse is returned when deleting a template that is still
// referenced by at least one instance config.
var ErrTemplateInUse = errors.New("template is referenced by existing instances")

// ErrInstanceManagerNotRegistered indicates the instance manager handler is
// not registered with the API layer.
var ErrInstanceManagerNotRegistered = errors.New("instance manager handler not registered")
