package async

import "strconv"

// Status is the result vocabulary shared with the host's async file I/O
// layer. Host scripts branch on these integers, so the values are fixed.
type Status int

const (
	StatusNotMine    Status = -8 // Filename not part of this file system
	StatusRetryLater Status = -7 // Temporary failure, retry later
	StatusAlignment  Status = -6 // Read parameters invalid for unbuffered IO
	StatusFailure    Status = -5 // Hard subsystem failure
	StatusReadError  Status = -4 // Read error on file
	StatusNoMemory   Status = -3 // Out of memory
	StatusUnknownID  Status = -2 // Caller's id is not recognized
	StatusFileOpen   Status = -1 // Filename could not be opened (bad path, not exist, etc)
	StatusOK         Status = 0  // Operation is successful
	StatusPending    Status = 1  // Queued, waiting for service
	StatusInProgress Status = 2  // Being accessed
	StatusAborted    Status = 3  // Aborted by caller
	StatusUnserviced Status = 4  // Not yet queued
)

var statusNames = map[Status]string{
	StatusNotMine:    "FSASYNC_ERR_NOT_MINE",
	StatusRetryLater: "FSASYNC_ERR_RETRY_LATER",
	StatusAlignment:  "FSASYNC_ERR_ALIGNMENT",
	StatusFailure:    "FSASYNC_ERR_FAILURE",
	StatusReadError:  "FSASYNC_ERR_READING",
	StatusNoMemory:   "FSASYNC_ERR_NOMEMORY",
	StatusUnknownID:  "FSASYNC_ERR_UNKNOWNID",
	StatusFileOpen:   "FSASYNC_ERR_FILEOPEN",
	StatusOK:         "FSASYNC_OK",
	StatusPending:    "FSASYNC_STATUS_PENDING",
	StatusInProgress: "FSASYNC_STATUS_INPROGRESS",
	StatusAborted:    "FSASYNC_STATUS_ABORTED",
	StatusUnserviced: "FSASYNC_STATUS_UNSERVICED",
}

// String returns the host-facing constant name.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "FSASYNC(" + strconv.Itoa(int(s)) + ")"
}

// IsError reports whether s is one of the negative error codes.
func (s Status) IsError() bool { return s < StatusOK }

// Statuses returns the full vocabulary in ascending order, for hosts that
// export the constants to scripts.
func Statuses() []Status {
	out := make([]Status, 0, len(statusNames))
	for s := StatusNotMine; s <= StatusUnserviced; s++ {
		out = append(out, s)
	}
	return out
}
