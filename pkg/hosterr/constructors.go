package hosterr

import (
	"fmt"
	"path/filepath"
	"strings"
)

// RPCSourcePrefix marks manifest sources that are gRPC methods rather than
// files, as in "rpc:/inexor.tree.v1.TreeSync/GetManifest"
const RPCSourcePrefix = "rpc:"

// Common error constructors with helpful suggestions

// ErrInvalidName creates an error for a node name that contains a slash or
// does not match the node name pattern.
func ErrInvalidName(name string) *Error {
	return NewError(ErrorCodeInvalidName,
		fmt.Sprintf("Invalid node name '%s'", name)).
		WithContext("name", name).
		WithSuggestion("Node names may contain letters, digits, underscores and spaces; '/' is reserved as the path separator")
}

// ErrInvalidDatatype creates an error for an unrecognized node datatype
func ErrInvalidDatatype(datatype string) *Error {
	return NewError(ErrorCodeInvalidDatatype,
		fmt.Sprintf("Invalid datatype '%s'", datatype)).
		WithContext("datatype", datatype).
		WithSuggestion("Use one of: node, int32, int64, enum, string, float, bool, timestamp, object, link")
}

// ErrNotAContainer creates an error for child operations on a leaf node
func ErrNotAContainer(path string) *Error {
	return NewError(ErrorCodeNotAContainer,
		fmt.Sprintf("Node '%s' is not a container", path)).
		WithContext("path", path)
}

// ErrConversionFailed creates an error for a value that cannot be coerced
// into the requested datatype.
func ErrConversionFailed(datatype string, value interface{}, cause error) *Error {
	return NewError(ErrorCodeConversionFailed,
		fmt.Sprintf("Cannot convert value to '%s'", datatype)).
		WithContext("datatype", datatype).
		WithContext("value", value).
		WithCause(cause)
}

// ErrExecutableNotFound creates an error for a missing instance executable
func ErrExecutableNotFound(instanceType, execPath string) *Error {
	return NewError(ErrorCodeExecutableNotFound,
		fmt.Sprintf("Executable for instance type '%s' not found", instanceType)).
		WithContext("instance_type", instanceType).
		WithContext("executable_path", execPath).
		WithSuggestion(fmt.Sprintf(
			"Configure the executable path:\n"+
				"  executables:\n"+
				"    %s: /path/to/binary\n"+
				"and make sure the file exists and is executable (chmod +x)",
			instanceType))
}

// ErrProcessNotRunning creates an error for operations that require a
// running process handle.
func ErrProcessNotRunning(instanceID string) *Error {
	return NewError(ErrorCodeProcessNotRunning,
		fmt.Sprintf("Instance '%s' has no running process", instanceID)).
		WithContext("instance_id", instanceID).
		WithSuggestion("Start the instance before stopping it")
}

// ErrProcessStartFailed creates an error for process spawn failures
func ErrProcessStartFailed(instanceID string, cause error) *Error {
	return NewError(ErrorCodeProcessStartFailed,
		fmt.Sprintf("Failed to start process for instance '%s'", instanceID)).
		WithContext("instance_id", instanceID).
		WithCause(cause).
		WithSuggestion(
			"Common causes:\n" +
				"  1. Executable not runnable\n" +
				"  2. Missing shared libraries\n" +
				"  3. Insufficient permissions")
}

// ErrSchemaNotFound creates an error for a missing manifest source
func ErrSchemaNotFound(instanceType, source string) *Error {
	var suggestion string
	switch {
	case strings.HasPrefix(source, RPCSourcePrefix):
		suggestion = fmt.Sprintf(
			"Verify the game process answers %s for type '%s', or put %s.yaml into the manifests directory",
			strings.TrimPrefix(source, RPCSourcePrefix), instanceType, instanceType)
	case filepath.IsAbs(source) || filepath.Ext(source) != "":
		suggestion = fmt.Sprintf("Verify the manifest exists: ls -la %s", source)
	default:
		suggestion = "Configure a manifests directory or let the game process serve its manifest"
	}

	return NewError(ErrorCodeSchemaNotFound,
		fmt.Sprintf("Manifest for instance type '%s' not found", instanceType)).
		WithContext("instance_type", instanceType).
		WithContext("source", source).
		WithSuggestion(suggestion)
}

// ErrInvalidManifest creates an error for manifests that fail to parse or validate
func ErrInvalidManifest(source string, cause error) *Error {
	return NewError(ErrorCodeInvalidManifest,
		fmt.Sprintf("Manifest '%s' is invalid", source)).
		WithContext("source", source).
		WithCause(cause).
		WithSuggestion(
			"Every field needs:\n" +
				"  - key\n" +
				"  - path\n" +
				"  - type\n" +
				"  - event")
}

// ErrConnectionFailed creates an error for connector setup failures
func ErrConnectionFailed(instanceID, address string, cause error) *Error {
	return NewError(ErrorCodeConnectionFailed,
		fmt.Sprintf("Failed to connect to instance '%s'", instanceID)).
		WithContext("instance_id", instanceID).
		WithContext("address", address).
		WithCause(cause).
		WithSuggestion(fmt.Sprintf(
			"Verify the instance process is running and serving gRPC on %s", address))
}

// ErrInstanceExists creates an error for duplicate instance ids
func ErrInstanceExists(instanceID string) *Error {
	return NewError(ErrorCodeInstanceExists,
		fmt.Sprintf("Instance '%s' already exists", instanceID)).
		WithContext("instance_id", instanceID)
}

// ErrInstanceNotFound creates an error for unknown instance ids
func ErrInstanceNotFound(instanceID string) *Error {
	return NewError(ErrorCodeInstanceNotFound,
		fmt.Sprintf("Instance '%s' not found", instanceID)).
		WithContext("instance_id", instanceID)
}

// ErrInvalidTransition creates an error for a rejected state transition
func ErrInvalidTransition(instanceID, from, to string) *Error {
	return NewError(ErrorCodeInvalidTransition,
		fmt.Sprintf("Instance '%s' cannot transition from '%s' to '%s'", instanceID, from, to)).
		WithContext("instance_id", instanceID).
		WithContext("from", from).
		WithContext("to", to)
}

// ErrInvalidArgument creates an error for a malformed request
func ErrInvalidArgument(field string, value interface{}, reason string) *Error {
	return NewError(ErrorCodeInvalidArgument,
		fmt.Sprintf("Invalid argument: %s", reason)).
		WithContext("field", field).
		WithContext("value", value)
}

// ErrPersistenceFailed creates an error for instance list load/save failures
func ErrPersistenceFailed(path string, cause error) *Error {
	return NewError(ErrorCodePersistenceFailed,
		fmt.Sprintf("Failed to persist instance list to '%s'", path)).
		WithContext("path", path).
		WithCause(cause)
}
