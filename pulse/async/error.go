package async

import (
	"syscall"

	"github.com/teranos/fsasync/errors"
)

// Stages at which a file operation can fail
const (
	StageOpen  = "open"
	StageWrite = "write"
	StageSync  = "sync"
	StageClose = "close"
)

// ClassifyError maps a file operation failure to the status reported to the
// host. Out-of-memory conditions win at any stage; otherwise a failure to
// open is FILE_OPEN_ERROR and anything after that is FAILURE.
func ClassifyError(stage string, err error) Status {
	if err == nil {
		return StatusOK
	}
	if errors.Is(err, syscall.ENOMEM) {
		return StatusNoMemory
	}
	if stage == StageOpen {
		return StatusFileOpen
	}
	return StatusFailure
}
