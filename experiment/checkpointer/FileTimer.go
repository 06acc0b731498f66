package checkpointer

import (
	"fmt"
	"time"
)

// fileTimer stamps filenames with the time in nanoseconds since the
// Unix epoch
type fileTimer struct {
	name      string
	extension string
	now       func() time.Time
	last      int64
}

// filename returns the name stamped with the current time. Stamps
// strictly increase across calls, even when the clock does not.
func (f *fileTimer) filename() string {
	stamp := f.now().UnixNano()
	if stamp <= f.last {
		stamp = f.last + 1
	}
	f.last = stamp
	return fmt.Sprintf("%v-%v%v", f.name, stamp, f.extension)
}

// FileTimer returns a function which will append to a filename the
// number of nanoseconds since January 1, 1970. Successive calls never
// return the same name.
func FileTimer(filename, extension string) func() string {
	timer := fileTimer{name: filename, extension: extension, now: time.Now}
	return timer.filename
}
