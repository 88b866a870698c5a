package mapfile

import (
	"sync"
	"time"
)

// multiProcessSource maps successor files for a roll sequence shared by
// several processes. Every roll consults the coordination file: when the
// on-disk payload still matches what this instance last saw, it is the
// one to advance; otherwise it adopts the file a peer already chose.
type multiProcessSource struct {
	coord    *coordinationFile
	capacity int32
	zeroFill bool
	framed   bool
	log      Logger

	mu    sync.Mutex
	local string     // last coordination payload this instance observed
	spare MappedFile // mapping of the announced preallocated file

	interval time.Duration
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

var _ fileSource = (*multiProcessSource)(nil)

func newMultiProcessSource(coord *coordinationFile, capacity int32, zeroFill, framed, preallocate bool, interval time.Duration, log Logger) *multiProcessSource {
	s := &multiProcessSource{
		coord:    coord,
		capacity: capacity,
		zeroFill: zeroFill,
		framed:   framed,
		log:      log,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if preallocate {
		go s.run()
	} else {
		close(s.done)
	}
	return s
}

func (s *multiProcessSource) mapFile(path string) (MappedFile, error) {
	f, err := MapMultiProcess(path, s.capacity, s.zeroFill)
	if err != nil {
		return nil, err
	}
	if s.framed {
		return newFramedFile(f), nil
	}
	return f, nil
}

// first maps the initial current file, advancing the coordination payload
// when this instance is the first in the directory and adopting the
// sequence already underway otherwise.
func (s *multiProcessSource) first() (MappedFile, error) {
	payload := s.coord.next("")
	s.mu.Lock()
	s.local = payload
	s.mu.Unlock()
	return s.mapFile(currentPath(payload))
}

// nextFile advances or adopts through the coordination file and returns a
// mapping of the resulting current file, reusing the preallocated mapping
// when it matches.
func (s *multiProcessSource) nextFile() (MappedFile, error) {
	s.mu.Lock()
	local := s.local
	s.mu.Unlock()

	payload := s.coord.next(local)
	cur := currentPath(payload)

	s.mu.Lock()
	s.local = payload
	spare := s.spare
	s.spare = nil
	s.mu.Unlock()

	if spare != nil {
		if spare.Path() == cur {
			return spare, nil
		}
		// The announced file moved on while the spare sat unused. The file
		// itself may be live for peers, so only the mapping is dropped.
		if err := spare.Close(); err != nil {
			s.log.Error("failed to close stale preallocated mapping", "path", spare.Path(), "error", err)
		}
	}
	return s.mapFile(cur)
}

// run keeps a mapping of the announced successor ready. Each tick reads
// the coordination payload and handles three cases: a peer advanced
// without preallocation (track its current), this instance fell more than
// one file behind (jump to current), or the normal case (map the
// announced preallocated file).
func (s *multiProcessSource) run() {
	defer close(s.done)
	for {
		s.tick()
		select {
		case <-s.stop:
			return
		case <-time.After(s.interval):
		}
	}
}

func (s *multiProcessSource) tick() {
	payload := s.coord.read()
	if payload == "" {
		return
	}
	cur := currentPath(payload)
	pre := preallocatedPath(payload)

	s.mu.Lock()
	var target string
	switch {
	case pre == "":
		target = cur
	case cur != currentPath(s.local):
		target = cur
	default:
		target = pre
	}
	s.local = payload
	stale := s.spare
	if stale != nil && stale.Path() == target {
		s.mu.Unlock()
		return
	}
	s.spare = nil
	s.mu.Unlock()

	if stale != nil {
		if err := stale.Close(); err != nil {
			s.log.Error("failed to close stale preallocated mapping", "path", stale.Path(), "error", err)
		}
	}

	f, err := s.mapFile(target)
	if err != nil {
		s.log.Error("failed to preallocate roll file", "path", target, "error", err)
		return
	}
	s.mu.Lock()
	if s.spare == nil {
		s.spare = f
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	f.Close()
}

// shutdown stops the worker and drops the spare mapping. The spare file
// itself is announced in the coordination payload, so it is left on disk
// for peers.
func (s *multiProcessSource) shutdown() error {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	s.mu.Lock()
	spare := s.spare
	s.spare = nil
	s.mu.Unlock()
	var firstErr error
	if spare != nil {
		if err := spare.Close(); err != nil {
			firstErr = err
		}
	}
	if err := s.coord.close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
