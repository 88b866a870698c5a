package mapfile

import (
	"errors"
	"io/fs"
	"os"
	"sync"
	"time"
)

// singleProcessSource maps successor files for a single-process roll
// sequence, optionally keeping one preallocated ahead of demand.
type singleProcessSource struct {
	provider FileProvider
	capacity int32
	zeroFill bool
	framed   bool
	log      Logger

	preallocated chan MappedFile // capacity 1; holds the hot spare

	interval time.Duration
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

var _ fileSource = (*singleProcessSource)(nil)

func newSingleProcessSource(provider FileProvider, capacity int32, zeroFill, framed, preallocate bool, interval time.Duration, log Logger) *singleProcessSource {
	s := &singleProcessSource{
		provider:     provider,
		capacity:     capacity,
		zeroFill:     zeroFill,
		framed:       framed,
		log:          log,
		preallocated: make(chan MappedFile, 1),
		interval:     interval,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	if preallocate {
		go s.run()
	} else {
		close(s.done)
	}
	return s
}

// mapNew creates the next file in the sequence. A name taken by another
// creator between the provider's existence check and the create is not an
// error: the provider is asked for the next name and the create retried.
func (s *singleProcessSource) mapNew() (MappedFile, error) {
	for {
		f, err := MapSingleProcess(s.provider.NextFile(), s.capacity, s.zeroFill)
		if errors.Is(err, ErrFileExists) || errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if s.framed {
			return newFramedFile(f), nil
		}
		return f, nil
	}
}

// nextFile hands out the preallocated file when one is ready, falling
// back to an inline allocation so the roll never waits on the worker.
func (s *singleProcessSource) nextFile() (MappedFile, error) {
	select {
	case f := <-s.preallocated:
		return f, nil
	default:
	}
	return s.mapNew()
}

// run keeps the spare slot filled until shutdown. Mapping errors are
// treated as transient: logged, then retried on the next tick.
func (s *singleProcessSource) run() {
	defer close(s.done)
	for {
		if len(s.preallocated) == 0 {
			f, err := s.mapNew()
			if err != nil {
				s.log.Error("failed to preallocate roll file", "error", err)
			} else {
				select {
				case s.preallocated <- f:
				case <-s.stop:
					s.discard(f)
					return
				}
			}
		}
		select {
		case <-s.stop:
			return
		case <-time.After(s.interval):
		}
	}
}

// discard closes and deletes a preallocated file that was never handed
// out to a writer.
func (s *singleProcessSource) discard(f MappedFile) {
	path := f.Path()
	if err := f.Close(); err != nil {
		s.log.Error("failed to close preallocated file", "path", path, "error", err)
	}
	if err := os.Remove(path); err != nil {
		s.log.Error("failed to remove preallocated file", "path", path, "error", err)
	}
}

func (s *singleProcessSource) shutdown() error {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	select {
	case f := <-s.preallocated:
		s.discard(f)
	default:
	}
	return nil
}
