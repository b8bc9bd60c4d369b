// Package trace appends wire traffic to a capture file. Captures are the
// ground truth when a device disagrees with the codec; the format matches
// sysex.HexDump so a capture diffs cleanly against the test vectors.
package trace

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"lcxl3/sysex"
	"lcxl3/transport"
)

var (
	file    *os.File
	mu      sync.Mutex
	enabled bool
)

// Enable starts appending wire traffic to path, creating parent directories
// as needed. Enabling twice is a no-op.
func Enable(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		return nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	file = f
	enabled = true

	fmt.Fprintf(file, "[%s] ==== capture started ====\n", time.Now().Format("15:04:05.000"))
	file.Sync()
	return nil
}

// Disable stops capturing and closes the file.
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		file.Close()
		file = nil
	}
	enabled = false
}

// Frame records one frame with its direction ("send" or "recv").
func Frame(direction string, raw []byte) {
	mu.Lock()
	defer mu.Unlock()

	if !enabled || file == nil {
		return
	}

	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(file, "[%s] %s %d bytes\n%s", ts, direction, len(raw), sysex.HexDump(raw))
	file.Sync() // flush per frame so captures survive a crash
}

// Logf records a free-form annotation between frames.
func Logf(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()

	if !enabled || file == nil {
		return
	}

	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(file, "[%s] %s\n", ts, fmt.Sprintf(format, args...))
	file.Sync()
}

// Port wraps p so every frame in either direction lands in the capture.
// The wrapper owns the inner port after this call.
func Port(p transport.Port) transport.Port {
	t := &tracedPort{inner: p, frames: make(chan []byte, 16)}
	go t.pump()
	return t
}

type tracedPort struct {
	inner  transport.Port
	frames chan []byte
}

func (t *tracedPort) pump() {
	for f := range t.inner.Frames() {
		Frame("recv", f)
		t.frames <- f
	}
	close(t.frames)
}

func (t *tracedPort) Send(frame []byte) error {
	Frame("send", frame)
	return t.inner.Send(frame)
}

func (t *tracedPort) Frames() <-chan []byte {
	return t.frames
}

func (t *tracedPort) Close() error {
	return t.inner.Close()
}
