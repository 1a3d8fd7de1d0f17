package hosterr

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestError(t *testing.T) {
	err := NewError(ErrorCodeInstanceNotFound, "Instance not found")

	assert.Equal(t, ErrorCodeInstanceNotFound, err.Code)
	assert.Equal(t, "Instance not found", err.Message)

	errStr := err.Error()
	assert.Contains(t, errStr, string(ErrorCodeInstanceNotFound))
	assert.Contains(t, errStr, "Instance not found")
}

func TestErrorWithContextIsSorted(t *testing.T) {
	err := NewError(ErrorCodeInstanceNotFound, "Instance not found").
		WithContext("zeta", 1).
		WithContext("alpha", "a")

	errStr := err.Error()
	assert.Contains(t, errStr, "Context: alpha=a, zeta=1")
}

func TestErrorWithCause(t *testing.T) {
	cause := errors.New("file not found")
	err := NewError(ErrorCodeExecutableNotFound, "Executable not found").
		WithCause(cause)

	assert.Contains(t, err.Error(), "file not found")
	assert.ErrorIs(t, err, cause)
}

func TestErrorWithSuggestion(t *testing.T) {
	err := NewError(ErrorCodeSchemaNotFound, "missing").
		WithSuggestion("create the manifest")

	assert.Contains(t, err.Error(), "Suggestion: create the manifest")
	assert.Equal(t, "create the manifest", GetSuggestion(err))
}

func TestIsErrorCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("start instance: %w", ErrExecutableNotFound("client", "/nope"))

	assert.True(t, IsErrorCode(err, ErrorCodeExecutableNotFound))
	assert.False(t, IsErrorCode(err, ErrorCodeProcessNotRunning))
	assert.Equal(t, ErrorCodeExecutableNotFound, GetErrorCode(err))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
}

func TestErrorsIsMatchesCode(t *testing.T) {
	err := fmt.Errorf("add child: %w", ErrInvalidName("a/b"))

	assert.True(t, errors.Is(err, &Error{Code: ErrorCodeInvalidName}))
	assert.False(t, errors.Is(err, &Error{Code: ErrorCodeNotAContainer}))
}

func TestConstructorsCarryContext(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		code ErrorCode
		key  string
	}{
		{"invalid name", ErrInvalidName("x/y"), ErrorCodeInvalidName, "name"},
		{"invalid datatype", ErrInvalidDatatype("uint8"), ErrorCodeInvalidDatatype, "datatype"},
		{"not a container", ErrNotAContainer("/a"), ErrorCodeNotAContainer, "path"},
		{"executable", ErrExecutableNotFound("server", "/bin/x"), ErrorCodeExecutableNotFound, "executable_path"},
		{"not running", ErrProcessNotRunning("7"), ErrorCodeProcessNotRunning, "instance_id"},
		{"schema", ErrSchemaNotFound("client", "/m/client.yaml"), ErrorCodeSchemaNotFound, "source"},
		{"connection", ErrConnectionFailed("7", "localhost:1", errors.New("boom")), ErrorCodeConnectionFailed, "address"},
		{"exists", ErrInstanceExists("7"), ErrorCodeInstanceExists, "instance_id"},
		{"transition", ErrInvalidTransition("7", "stopped", "running"), ErrorCodeInvalidTransition, "from"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Contains(t, tt.err.Context, tt.key)
		})
	}
}

func TestSchemaNotFoundSuggestion(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"/etc/inexor/manifests/client.yaml", "ls -la /etc/inexor/manifests/client.yaml"},
		{"rpc:/inexor.tree.v1.TreeSync/GetManifest", "answers /inexor.tree.v1.TreeSync/GetManifest"},
		{"no manifest sources configured", "Configure a manifests directory"},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			err := ErrSchemaNotFound("client", tt.source)
			assert.Contains(t, err.Suggestion, tt.want)
			if strings.HasPrefix(tt.source, RPCSourcePrefix) {
				assert.NotContains(t, err.Suggestion, "ls -la")
			}
		})
	}
}

func TestGRPCStatusMapsDistinctKinds(t *testing.T) {
	assert.Equal(t, codes.OK, GRPCCode(nil))
	assert.Equal(t, codes.InvalidArgument, GRPCCode(ErrInvalidName("a/b")))
	assert.Equal(t, codes.FailedPrecondition, GRPCCode(ErrProcessNotRunning("1")))
	assert.Equal(t, codes.NotFound, GRPCCode(ErrSchemaNotFound("client", "x")))
	assert.Equal(t, codes.Unavailable, GRPCCode(ErrConnectionFailed("1", "a", nil)))
	assert.Equal(t, codes.Unknown, GRPCCode(errors.New("plain")))

	st, ok := status.FromError(GRPCStatus(ErrInstanceExists("7")))
	require.True(t, ok)
	assert.Equal(t, codes.AlreadyExists, st.Code())
	assert.True(t, strings.Contains(st.Message(), "already exists"))
}
