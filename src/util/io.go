package util

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Writer buffers output from threads in a strings.Builder.
// When the Flush or Close method is called the buffer is emptied and sent to
// the assigned output writer through channel c. Writers without a channel keep
// their output, which is returned by String.
type Writer struct {
	sb strings.Builder
	c  chan string
}

// ---------------------
// ----- Constants -----
// ---------------------

// stdinTimeout is the time to wait for input on stdin.
const stdinTimeout = 500 * time.Millisecond

// -------------------
// ----- globals -----
// -------------------

var wc chan string  // Write channel used for receiving data from worker threads.
var done chan error // Closed by the listener when all output is written.

// ---------------------
// ----- Functions -----
// ---------------------

// Write writes a format string to the Writer's buffer.
func (w *Writer) Write(format string, args ...interface{}) {
	w.sb.WriteString(fmt.Sprintf(format, args...))
}

// Ins1 writes a one-line instruction using the operator and single operand.
func (w *Writer) Ins1(op, rs1 string) {
	w.sb.WriteString(fmt.Sprintf("\t%s\t%s\n", op, rs1))
}

// Ins2 writes a one-line instruction using the operator, destination and single source operand.
func (w *Writer) Ins2(op, rd, rs1 string) {
	w.sb.WriteString(fmt.Sprintf("\t%s\t%s, %s\n", op, rd, rs1))
}

// Ins writes a one-line instruction with any number of operands.
func (w *Writer) Ins(op string, operands ...string) {
	if len(operands) == 0 {
		w.sb.WriteString(fmt.Sprintf("\t%s\n", op))
		return
	}
	w.sb.WriteString(fmt.Sprintf("\t%s\t%s\n", op, strings.Join(operands, ", ")))
}

// Label writes a one-line label with the given name.
func (w *Writer) Label(name string) {
	w.sb.WriteString(fmt.Sprintf("\n%s:\n", name))
}

// Flush empties the Writer's buffer and sends the buffer data to the
// designated output writer over the Writer's channel.
func (w *Writer) Flush() {
	if w.c == nil {
		return
	}
	w.c <- w.sb.String()
	w.sb = strings.Builder{}
}

// Close flushes the Writer's buffer and detaches the Writer from the output channel.
func (w *Writer) Close() {
	w.Flush()
	w.c = nil
}

// String returns the buffered output.
func (w *Writer) String() string {
	return w.sb.String()
}

// NewWriter returns a new Writer to be used by worker threads to write strings concurrently to the output buffer.
// Must not be called before main thread has called ListenWrite.
func NewWriter() *Writer {
	return &Writer{c: wc}
}

// NewBufferWriter returns a Writer keeping its output in memory.
func NewBufferWriter() *Writer {
	return &Writer{}
}

// ReadSource reads a method description from file, or from stdin if path is empty or "-".
// Reading stdin waits for a short period. If no input on stdin is provided the function
// returns an error.
func ReadSource(path string) ([]byte, error) {
	if len(path) > 0 && path != "-" {
		b, err := os.ReadFile(path)
		return b, errors.Wrapf(err, "reading %s", path)
	}

	c := make(chan []byte)
	cerr := make(chan error)

	// Concurrently wait for input on stdin.
	go func(c chan []byte, cerr chan error) {
		defer close(c)
		defer close(cerr)
		b, err := io.ReadAll(bufio.NewReader(os.Stdin))
		if err == nil {
			c <- b
		} else {
			cerr <- err
		}
	}(c, cerr)

	// Select between input from stdin or timer expiry.
	select {
	case <-time.After(stdinTimeout):
		return nil, errors.New("expected input from stdin, got none")
	case err := <-cerr:
		return nil, errors.Wrap(err, "reading stdin")
	case b := <-c:
		return b, nil
	}
}

// ListenWrite listens for worker thread outputs. The received data is written to either file
// if File pointer f is not nil or stdout if File pointer f is nil. The function loops until
// Close is called.
func ListenWrite(t int, f *os.File) {
	wc = make(chan string, t)
	done = make(chan error)
	var w *bufio.Writer
	if f != nil {
		// Write output to file.
		w = bufio.NewWriter(f)
	} else {
		// Write output to stdout.
		w = bufio.NewWriter(os.Stdout)
	}

	go func(wc chan string, done chan error) {
		defer close(done)
		for s := range wc {
			if _, err := w.WriteString(s); err != nil {
				logrus.WithError(err).Error("writing output")
			}
		}
		if err := w.Flush(); err != nil {
			logrus.WithError(err).Error("flushing output")
		}
	}(wc, done)
}

// Close stops the writer listener once all pending output is written.
func Close() {
	close(wc)
	<-done
}
