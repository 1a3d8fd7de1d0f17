package hosterr

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var grpcCodes = map[ErrorCode]codes.Code{
	ErrorCodeInvalidName:        codes.InvalidArgument,
	ErrorCodeInvalidDatatype:    codes.InvalidArgument,
	ErrorCodeInvalidArgument:    codes.InvalidArgument,
	ErrorCodeConversionFailed:   codes.InvalidArgument,
	ErrorCodeNotAContainer:      codes.FailedPrecondition,
	ErrorCodeInvalidTransition:  codes.FailedPrecondition,
	ErrorCodeProcessNotRunning:  codes.FailedPrecondition,
	ErrorCodeExecutableNotFound: codes.NotFound,
	ErrorCodeInstanceNotFound:   codes.NotFound,
	ErrorCodeSchemaNotFound:     codes.NotFound,
	ErrorCodeInstanceExists:     codes.AlreadyExists,
	ErrorCodeInvalidManifest:    codes.DataLoss,
	ErrorCodeConnectionFailed:   codes.Unavailable,
	ErrorCodeProcessStartFailed: codes.Internal,
	ErrorCodePersistenceFailed:  codes.Internal,
}

// GRPCCode returns the gRPC status code an API layer should report for err.
// Errors without an ErrorCode map to codes.Unknown.
func GRPCCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if code, ok := grpcCodes[GetErrorCode(err)]; ok {
		return code
	}
	return codes.Unknown
}

// GRPCStatus converts err into a gRPC status error
func GRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	return status.Error(GRPCCode(err), err.Error())
}
