// Package async performs file writes and appends off the host thread and
// delivers their results back to it.
//
// ARCHITECTURE: two scheduling domains
// - Host side: Module.Write/Append and the poll hook, only ever on the host thread
// - Worker side: WorkerPool goroutines performing blocking file I/O
// - The Bridge is the only path from workers back to the host
package async

import (
	"github.com/google/uuid"
	"github.com/teranos/fsasync/host"
)

// Mode selects truncate-write or append
type Mode int

const (
	ModeWrite Mode = iota
	ModeAppend
)

func (m Mode) String() string {
	if m == ModeAppend {
		return "append"
	}
	return "write"
}

// Job is one file operation plus its destiny.
//
// A Job with a nil Callback is fire-and-forget: its outcome is never observed.
// A Job with a Callback gets Result set by exactly one worker and is then
// delivered exactly once by the poll hook.
type Job struct {
	ID       string        // Log correlation only
	RawID    string        // Identifier as the host supplied it, reported back verbatim
	Path     string        // Sandboxed filesystem path
	Data     []byte        // Owned copy of the payload
	Mode     Mode          // Write (truncate) or append
	Callback host.Callback // nil = fire-and-forget
	Result   Status        // PENDING until a worker records the outcome; only read for jobs with a Callback
}

// NewJob creates a job for an already-validated path. The payload is copied
// so the host may reuse its buffer as soon as submission returns.
func NewJob(rawID, path string, data []byte, mode Mode, cb host.Callback) *Job {
	return &Job{
		ID:       uuid.NewString(),
		RawID:    rawID,
		Path:     path,
		Data:     append([]byte(nil), data...),
		Mode:     mode,
		Callback: cb,
		Result:   StatusPending,
	}
}

// HasCallback reports whether the job's outcome will be delivered to the host.
func (j *Job) HasCallback() bool { return j.Callback != nil }
