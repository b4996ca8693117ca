package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// ConsoleAppender writes events to stdout, grounded on the original's
// ConsoleAppender::append.
type ConsoleAppender struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleAppender writes to os.Stdout.
func NewConsoleAppender() *ConsoleAppender {
	return &ConsoleAppender{w: os.Stdout}
}

func (c *ConsoleAppender) Append(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "%s - %s - %s\n", ev.Timestamp.Format("2006-01-02 15:04:05"), ev.Level, ev.Message)
}

// FileAppender appends events to a file opened in append mode,
// grounded on the original's FileAppender.
type FileAppender struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileAppender opens (creating if needed) filename for appending.
func NewFileAppender(filename string) (*FileAppender, error) {
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &FileAppender{file: f}, nil
}

func (f *FileAppender) Append(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintf(f.file, "%s - %s - %s\n", ev.Timestamp.Format("2006-01-02 15:04:05"), ev.Level, ev.Message)
}

// Close closes the underlying file.
func (f *FileAppender) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.file.Close()
}
