// errors.go: structured error definitions for the termite plugin runtime
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package termite

import (
	stderrors "errors"

	"github.com/agilira/go-errors"
)

// Error codes for the termite runtime
const (
	// Lifecycle errors (2100-2199)
	ErrCodePluginLifecycle = "LIFECYCLE_2101"
	ErrCodeHookResolution  = "LIFECYCLE_2102"
	ErrCodeHookFailure     = "LIFECYCLE_2103"

	// Dependency errors (2200-2299)
	ErrCodeUnsatisfiedDependency = "DEPENDENCY_2201"
	ErrCodeCyclicDependency      = "DEPENDENCY_2202"
	ErrCodeUnresolvedDependency  = "DEPENDENCY_2203"

	// Manifest errors (2300-2399)
	ErrCodeManifestParse = "MANIFEST_2301"

	// Loader errors (2400-2499)
	ErrCodeUnknownScheme    = "LOADER_2401"
	ErrCodeInvalidReference = "LOADER_2402"
	ErrCodeResourceNotFound = "LOADER_2403"
	ErrCodeResourceType     = "LOADER_2404"

	// Registry errors (2500-2599)
	ErrCodePluginNotFound     = "REGISTRY_2501"
	ErrCodeDuplicateReference = "REGISTRY_2502"

	// Configuration errors (2600-2699)
	ErrCodeConfigNotFound   = "CONFIG_2601"
	ErrCodeConfigParse      = "CONFIG_2602"
	ErrCodeConfigValidation = "CONFIG_2603"
	ErrCodeConfigWatcher    = "CONFIG_2604"

	// Discovery errors (2700-2799)
	ErrCodeDiscovery = "DISCOVERY_2701"

	// Platform errors (2800-2899)
	ErrCodePlatformState = "PLATFORM_2801"
)

// Lifecycle error constructors

func NewPluginLifecycleError(pluginID, operation string, state LifecycleState) *errors.Error {
	return errors.New(ErrCodePluginLifecycle, "Cannot "+operation+" plugin in state "+state.String()).
		WithUserMessage("The plugin lifecycle operation is not valid in the current state").
		WithContext("plugin_id", pluginID).
		WithContext("operation", operation).
		WithContext("state", state.String()).
		WithSeverity("error")
}

func NewHookResolutionError(pluginID, hookUnit string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeHookResolution, "Hook resolution failed").
		WithUserMessage("A hook unit declared by the plugin could not be created").
		WithContext("plugin_id", pluginID).
		WithContext("hook_unit", hookUnit).
		WithSeverity("error")
}

func NewHookFailureError(pluginID, operation string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeHookFailure, "Hook "+operation+" failed").
		WithUserMessage("A plugin hook reported an error").
		WithContext("plugin_id", pluginID).
		WithContext("operation", operation).
		WithSeverity("warning")
}

// Dependency error constructors

func NewUnsatisfiedDependencyError(pluginID, requirement, kind string) *errors.Error {
	return errors.New(ErrCodeUnsatisfiedDependency, "Required "+kind+" <"+requirement+"> stated in plugin ["+pluginID+"] cannot be satisfied").
		WithUserMessage("A declared plugin requirement cannot be satisfied").
		WithContext("plugin_id", pluginID).
		WithContext("requirement", requirement).
		WithContext("kind", kind).
		WithSeverity("error")
}

func NewCyclicDependencyError(cycle []string) *errors.Error {
	return errors.New(ErrCodeCyclicDependency, "Cyclic dependency detected: "+formatCycle(cycle)).
		WithUserMessage("Plugins depend on each other in a cycle; no install order exists").
		WithContext("cycle", formatCycle(cycle)).
		WithSeverity("error")
}

func NewUnresolvedDependencyError(pluginID, dependency string) *errors.Error {
	return errors.New(ErrCodeUnresolvedDependency, "Plugin ["+pluginID+"] depends on unknown plugin ["+dependency+"]").
		WithUserMessage("A plugin depends on a plugin that was never registered").
		WithContext("plugin_id", pluginID).
		WithContext("dependency", dependency).
		WithSeverity("error")
}

// Manifest error constructors

func NewManifestParseError(block, entry, message string) *errors.Error {
	return errors.New(ErrCodeManifestParse, "Manifest parse error: "+message).
		WithUserMessage("The plugin manifest is malformed").
		WithContext("block", block).
		WithContext("entry", entry).
		WithSeverity("error")
}

// Loader error constructors

func NewUnknownSchemeError(reference, scheme string) *errors.Error {
	return errors.New(ErrCodeUnknownScheme, "No handler registered for scheme "+scheme).
		WithUserMessage("The resource reference uses an unsupported scheme").
		WithContext("reference", reference).
		WithContext("scheme", scheme).
		WithSeverity("error")
}

func NewInvalidReferenceError(reference string) *errors.Error {
	return errors.New(ErrCodeInvalidReference, "Invalid resource reference").
		WithUserMessage("Resource references must have the form scheme:path").
		WithContext("reference", reference).
		WithSeverity("error")
}

func NewResourceNotFoundError(reference string, cause error) *errors.Error {
	if cause == nil {
		return errors.New(ErrCodeResourceNotFound, "Resource not found").
			WithUserMessage("The referenced resource does not exist").
			WithContext("reference", reference).
			WithSeverity("error")
	}
	return errors.Wrap(cause, ErrCodeResourceNotFound, "Resource not found").
		WithUserMessage("The referenced resource does not exist").
		WithContext("reference", reference).
		WithSeverity("error")
}

func NewResourceTypeError(reference, expected string) *errors.Error {
	return errors.New(ErrCodeResourceType, "Resource is not a "+expected).
		WithUserMessage("The resolved resource has an unexpected type").
		WithContext("reference", reference).
		WithContext("expected", expected).
		WithSeverity("error")
}

// Registry error constructors

func NewPluginNotFoundError(pluginID string) *errors.Error {
	return errors.New(ErrCodePluginNotFound, "Plugin with id "+pluginID+" is not registered").
		WithUserMessage("The requested plugin is not registered").
		WithContext("plugin_id", pluginID).
		WithSeverity("error")
}

func NewDuplicateReferenceError(reference string) *errors.Error {
	return errors.New(ErrCodeDuplicateReference, "Plugin with reference "+reference+" already added").
		WithUserMessage("The plugin reference has already been added").
		WithContext("reference", reference).
		WithSeverity("error")
}

// Configuration error constructors

func NewConfigNotFoundError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConfigNotFound, "Configuration file not found").
		WithUserMessage("The configuration file could not be read").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigParseError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConfigParse, "Configuration parse error").
		WithUserMessage("Failed to parse configuration file").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigValidationError(message string) *errors.Error {
	return errors.New(ErrCodeConfigValidation, "Configuration validation error: "+message).
		WithUserMessage("Configuration validation failed").
		WithSeverity("error")
}

func NewConfigWatcherError(message string, cause error) *errors.Error {
	if cause == nil {
		return errors.New(ErrCodeConfigWatcher, "Configuration watcher error: "+message).
			WithUserMessage("Configuration monitoring failed").
			WithSeverity("error")
	}
	return errors.Wrap(cause, ErrCodeConfigWatcher, "Configuration watcher error: "+message).
		WithUserMessage("Configuration monitoring failed").
		WithSeverity("error")
}

// Discovery error constructors

func NewDiscoveryError(message string, cause error) *errors.Error {
	if cause == nil {
		return errors.New(ErrCodeDiscovery, "Discovery error: "+message).
			WithUserMessage("Plugin discovery failed").
			WithSeverity("error")
	}
	return errors.Wrap(cause, ErrCodeDiscovery, "Discovery error: "+message).
		WithUserMessage("Plugin discovery failed").
		WithSeverity("error")
}

// Platform error constructors

func NewPlatformStateError(operation string, state PlatformState) *errors.Error {
	return errors.New(ErrCodePlatformState, "Cannot "+operation+" platform in state "+string(state)).
		WithUserMessage("The platform is not in a state that allows this operation").
		WithContext("operation", operation).
		WithContext("state", string(state)).
		WithSeverity("error")
}

// HasErrorCode reports whether err, or any error it wraps, is a structured
// error carrying the given code.
func HasErrorCode(err error, code string) bool {
	for err != nil {
		var coded *errors.Error
		if !stderrors.As(err, &coded) {
			return false
		}
		if coded.ErrorCode() == errors.ErrorCode(code) {
			return true
		}
		err = coded.Cause
	}
	return false
}

// IsPluginLifecycleError reports whether err is an invalid-state lifecycle error.
func IsPluginLifecycleError(err error) bool {
	return HasErrorCode(err, ErrCodePluginLifecycle)
}

// IsUnsatisfiedDependencyError reports whether err is a registration-time
// dependency failure.
func IsUnsatisfiedDependencyError(err error) bool {
	return HasErrorCode(err, ErrCodeUnsatisfiedDependency)
}

// IsCyclicDependencyError reports whether err is an install-order cycle.
func IsCyclicDependencyError(err error) bool {
	return HasErrorCode(err, ErrCodeCyclicDependency)
}

// IsUnresolvedDependencyError reports whether err names an unknown dependency.
func IsUnresolvedDependencyError(err error) bool {
	return HasErrorCode(err, ErrCodeUnresolvedDependency)
}

// IsManifestParseError reports whether err is a malformed manifest.
func IsManifestParseError(err error) bool {
	return HasErrorCode(err, ErrCodeManifestParse)
}
