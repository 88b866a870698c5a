package mapfile

import (
	"encoding/binary"
	"runtime"
	"sync"
	"sync/atomic"
	"unicode/utf16"
)

// fileSource produces the successor file on every roll. Implementations
// may keep a preallocated file hot; nextFile is only ever called by the
// single writer that won the allocating election.
type fileSource interface {
	nextFile() (MappedFile, error)

	// shutdown stops any background worker and disposes of a preallocated
	// file that was never handed out.
	shutdown() error
}

// fileSlot wraps a MappedFile so the rolling coordinator can swap and
// identity-compare files through an atomic.Pointer.
type fileSlot struct {
	file MappedFile
}

// rollingCoordinator owns the current file of a roll sequence and elects
// exactly one writer to perform each swap.
type rollingCoordinator struct {
	current    atomic.Pointer[fileSlot]
	allocating atomic.Bool
	closing    atomic.Bool

	source       fileSource
	yield        bool
	asyncClose   bool
	fileComplete FileCompleteFunc
	log          Logger

	closeWG sync.WaitGroup
}

func newRollingCoordinator(source fileSource, first MappedFile, yield, asyncClose bool, fileComplete FileCompleteFunc, log Logger) *rollingCoordinator {
	c := &rollingCoordinator{
		source:       source,
		yield:        yield,
		asyncClose:   asyncClose,
		fileComplete: fileComplete,
		log:          log,
	}
	c.current.Store(&fileSlot{file: first})
	return c
}

func (c *rollingCoordinator) pause() {
	if c.yield {
		runtime.Gosched()
	}
}

// fileForWrite returns the file the next reservation should target,
// rolling first if the current one is exhausted. Losers of the allocating
// election spin until the winner has installed the successor; a winner
// that finds current already swapped backs off without rolling again.
func (c *rollingCoordinator) fileForWrite() (MappedFile, error) {
	for {
		if c.closing.Load() {
			return nil, ErrClosed
		}
		slot := c.current.Load()
		if slot.file.HasAvailableCapacity() {
			return slot.file, nil
		}
		if !c.allocating.CompareAndSwap(false, true) {
			c.pause()
			continue
		}
		recheck := c.current.Load()
		if recheck != slot {
			c.allocating.Store(false)
			return recheck.file, nil
		}
		next, err := c.source.nextFile()
		if err != nil {
			c.allocating.Store(false)
			return nil, err
		}
		c.current.Store(&fileSlot{file: next})
		c.retire(slot.file)
		c.allocating.Store(false)
		return next, nil
	}
}

func (c *rollingCoordinator) retire(f MappedFile) {
	if c.asyncClose {
		c.closeWG.Add(1)
		go func() {
			defer c.closeWG.Done()
			c.closeRetired(f)
		}()
		return
	}
	c.closeRetired(f)
}

// closeRetired waits for outstanding commits on the retired file, closes
// it, and notifies the completion callback.
func (c *rollingCoordinator) closeRetired(f MappedFile) {
	for f.IsPending() {
		c.pause()
	}
	path := f.Path()
	if err := f.Close(); err != nil {
		c.log.Error("failed to close retired file", "path", path, "error", err)
		return
	}
	if c.fileComplete != nil {
		c.fileComplete(path)
	}
}

// close stops the source, drains async closes, and closes the current
// file synchronously.
func (c *rollingCoordinator) close() error {
	if c.closing.Swap(true) {
		return nil
	}
	firstErr := c.source.shutdown()
	c.closeWG.Wait()
	slot := c.current.Load()
	for slot.file.IsPending() {
		c.pause()
	}
	if err := slot.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// RollingFile is the writer surface over an unbounded sequence of files.
// Writes never return NullOffset: when the current file is out of room the
// write retries against the rolled successor. Offsets are relative to
// whichever file the payload landed in.
type RollingFile struct {
	coord *rollingCoordinator

	// capacity is the usable capacity of every file in the sequence;
	// frameOverhead is 4 when frames are enabled, 0 otherwise.
	capacity      int32
	frameOverhead int32
}

var _ ConcurrentFile = (*RollingFile)(nil)

func newRollingFile(coord *rollingCoordinator, capacity int32, framed bool) *RollingFile {
	r := &RollingFile{coord: coord, capacity: capacity}
	if framed {
		r.frameOverhead = frameHeaderSize
	}
	return r
}

// write runs the rolling retry loop: a NullOffset from the underlying
// file means it filled up between the capacity check and the reservation,
// so the loop rolls and tries again.
func (r *RollingFile) write(length int32, op func(MappedFile) (int32, error)) (int32, error) {
	if length+r.frameOverhead > r.capacity {
		return NullOffset, ErrLengthExceedsCapacity
	}
	for {
		f, err := r.coord.fileForWrite()
		if err != nil {
			return NullOffset, err
		}
		offset, err := op(f)
		if err != nil {
			return NullOffset, err
		}
		if offset != NullOffset {
			return offset, nil
		}
	}
}

func (r *RollingFile) Write(p []byte) (int32, error) {
	return r.write(int32(len(p)), func(f MappedFile) (int32, error) {
		return f.Write(p)
	})
}

func (r *RollingFile) WriteAscii(s string) (int32, error) {
	return r.write(int32(len([]rune(s))), func(f MappedFile) (int32, error) {
		return f.WriteAscii(s)
	})
}

func (r *RollingFile) WriteChars(s string, order binary.ByteOrder) (int32, error) {
	length := int32(2 * len(utf16.Encode([]rune(s))))
	return r.write(length, func(f MappedFile) (int32, error) {
		return f.WriteChars(s, order)
	})
}

func (r *RollingFile) WriteWith(length int32, fn WriteFunc) (int32, error) {
	return r.write(length, func(f MappedFile) (int32, error) {
		return f.WriteWith(length, fn)
	})
}

func (r *RollingFile) IsPending() bool {
	return r.coord.current.Load().file.IsPending()
}

// IsFinished always reports false: a rolling file has no final state, it
// rolls instead.
func (r *RollingFile) IsFinished() bool { return false }

// Finish finalizes the current file so the next write rolls to a fresh
// one.
func (r *RollingFile) Finish() {
	r.coord.current.Load().file.Finish()
}

// Path returns the path of the file currently being written.
func (r *RollingFile) Path() string {
	return r.coord.current.Load().file.Path()
}

func (r *RollingFile) Close() error {
	return r.coord.close()
}
