package process

import (
	"time"

	"github.com/smazurov/camrelay/internal/ffmpeg"
)

// Info describes a supervised encoder process.
type Info struct {
	RunID     string
	PID       int
	StartedAt time.Time
	Params    ffmpeg.StreamParams
	Running   bool
	ExitCode  int // valid once Running is false
}
