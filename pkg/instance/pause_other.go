//go:build !unix

package instance

import (
	"errors"

	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/procmgr"
)

const pauseSupported = false

var errPauseUnsupported = errors.New("suspending processes is not supported on this platform")

func suspendProcess(*procmgr.Process) error { return errPauseUnsupported }

func resumeProcess(*procmgr.Process) error { return errPauseUnsupported }
