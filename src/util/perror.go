package util

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Perror collects the errors reported by parallel worker threads, so that one failing method does not stop the
// others. The errors are retrieved once the parallel job has completed and the listener is stopped.
type Perror struct {
	listen     chan error    // Channel for receiving error messages from worker threads.
	stop       chan struct{} // Closed to make the listener stop.
	done       chan struct{} // Closed by the listener when it has stopped.
	errors     []error       // Buffer of error messages.
	sync.Mutex               // For synchronising writes and reads.
}

// ----------------------
// ----- Constants ------
// ----------------------

// defaultBufferSize defines the fallback buffer size of the error array.
const defaultBufferSize = 16

// maxListed is the number of errors spelled out by Err.
const maxListed = 8

// ---------------------
// ----- functions -----
// ---------------------

// NewPerror returns a listening Perror with n pre-allocated slots for errors in the buffer.
func NewPerror(n int) *Perror {
	if n < 1 {
		n = defaultBufferSize
	}
	pe := Perror{
		listen: make(chan error),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		errors: make([]error, 0, n),
	}
	go pe.run()
	return &pe
}

// run buffers the errors received on the listen channel until Stop is called.
func (pe *Perror) run() {
	defer close(pe.done)
	for {
		select {
		case err := <-pe.listen:
			pe.Lock()
			pe.errors = append(pe.errors, err)
			pe.Unlock()
		case <-pe.stop:
			return
		}
	}
}

// Append sends err to the listener. <nil> errors are ignored. Append must not be called after Stop.
func (pe *Perror) Append(err error) {
	if err != nil {
		pe.listen <- err
	}
}

// Stop stops the listener once every error appended so far is buffered.
func (pe *Perror) Stop() {
	close(pe.stop)
	<-pe.done
}

// Len returns the number of buffered errors.
func (pe *Perror) Len() int {
	pe.Lock()
	defer pe.Unlock()
	return len(pe.errors)
}

// Errors returns a copy of the buffered errors in the order they were received.
func (pe *Perror) Errors() []error {
	pe.Lock()
	defer pe.Unlock()
	res := make([]error, len(pe.errors))
	copy(res, pe.errors)
	return res
}

// Err returns <nil> if no error was reported, the error itself if exactly one was, and otherwise an error listing
// the first few.
func (pe *Perror) Err() error {
	errs := pe.Errors()
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	msgs := make([]string, 0, maxListed)
	for i1 := 0; i1 < len(errs) && i1 < maxListed; i1++ {
		msgs = append(msgs, errs[i1].Error())
	}
	if len(errs) > maxListed {
		msgs = append(msgs, "...")
	}
	return errors.Errorf("%d errors: %s", len(errs), strings.Join(msgs, "; "))
}
