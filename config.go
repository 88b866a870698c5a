package mapfile

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config selects the file variant and the layers stacked on top of it.
type Config struct {
	// Capacity is the number of data bytes each file can hold. For
	// multi-process files the backing file is 32 bytes longer.
	Capacity int32

	// ZeroFill touches every page at create time so the blocks are
	// allocated up front.
	ZeroFill bool

	// MultiProcess keeps the reservation cursors in the in-file header so
	// cooperating processes can share the file.
	MultiProcess bool

	// Framed length-prefixes every write.
	Framed bool

	Log  LogConfig
	Roll RollConfig
}

// RollConfig configures the rolling layer. It is ignored unless Enabled.
type RollConfig struct {
	Enabled bool

	// FileProvider names successor files. When nil, a
	// TimestampFileProvider over the roll directory is used.
	FileProvider FileProvider

	// FileNamePrefix, FileNameSuffix, and TimeFormat feed the default
	// provider.
	FileNamePrefix string
	FileNameSuffix string
	TimeFormat     string

	// YieldOnContention yields the processor inside spin loops instead of
	// busy-waiting.
	YieldOnContention bool

	// AsyncClose retires full files on a background goroutine so the
	// rolling writer never waits for a close.
	AsyncClose bool

	// Preallocate runs a worker that keeps the next file mapped ahead of
	// demand, checking the slot every PreallocateCheckInterval.
	Preallocate              bool
	PreallocateCheckInterval time.Duration

	// FileComplete runs after a retired file has been closed.
	FileComplete FileCompleteFunc

	// CoordinationFileName is the shared coordination file inside the roll
	// directory, used only with MultiProcess.
	CoordinationFileName string

	// CompressRetired zstd-compresses each retired file before invoking
	// FileComplete with the compressed path.
	CompressRetired bool
}

// DefaultConfig returns a single-process configuration with 1 MiB files.
func DefaultConfig() Config {
	return Config{
		Capacity: 1 << 20,
		Log:      LogConfig{Level: "info"},
		Roll: RollConfig{
			TimeFormat:               DefaultTimeFormat,
			YieldOnContention:        true,
			PreallocateCheckInterval: 100 * time.Millisecond,
			CoordinationFileName:     DefaultCoordinationFileName,
		},
	}
}

// MultiProcessConfig returns DefaultConfig with the in-file header
// protocol enabled.
func MultiProcessConfig() Config {
	cfg := DefaultConfig()
	cfg.MultiProcess = true
	return cfg
}

// Map opens a concurrent file at location. Without rolling, location is
// the file path; with rolling, location is the directory the sequence
// lives in.
func Map(location string, cfg Config) (ConcurrentFile, error) {
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("mapfile: capacity must be positive, got %d", cfg.Capacity)
	}
	if !cfg.Roll.Enabled {
		var f MappedFile
		var err error
		if cfg.MultiProcess {
			f, err = MapMultiProcess(location, cfg.Capacity, cfg.ZeroFill)
		} else {
			f, err = MapSingleProcess(location, cfg.Capacity, cfg.ZeroFill)
		}
		if err != nil {
			return nil, err
		}
		if cfg.Framed {
			return newFramedFile(f), nil
		}
		return f, nil
	}
	return mapRolling(location, cfg)
}

func mapRolling(dir string, cfg Config) (ConcurrentFile, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create roll directory %s: %w", dir, err)
	}
	log := createLogger(cfg.Log)

	provider := cfg.Roll.FileProvider
	if provider == nil {
		provider = &TimestampFileProvider{
			Dir:        dir,
			Prefix:     cfg.Roll.FileNamePrefix,
			Suffix:     cfg.Roll.FileNameSuffix,
			TimeFormat: cfg.Roll.TimeFormat,
		}
	}

	interval := cfg.Roll.PreallocateCheckInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	fileComplete := cfg.Roll.FileComplete
	if cfg.Roll.CompressRetired {
		fileComplete = CompressFileComplete(fileComplete, log)
	}

	var source fileSource
	var first MappedFile
	if cfg.MultiProcess {
		coordName := cfg.Roll.CoordinationFileName
		if coordName == "" {
			coordName = DefaultCoordinationFileName
		}
		coord, err := openCoordinationFile(filepath.Join(dir, coordName), provider, cfg.Roll.Preallocate, cfg.Roll.YieldOnContention)
		if err != nil {
			return nil, err
		}
		ms := newMultiProcessSource(coord, cfg.Capacity, cfg.ZeroFill, cfg.Framed, cfg.Roll.Preallocate, interval, log)
		first, err = ms.first()
		if err != nil {
			ms.shutdown()
			return nil, err
		}
		source = ms
	} else {
		ss := newSingleProcessSource(provider, cfg.Capacity, cfg.ZeroFill, cfg.Framed, cfg.Roll.Preallocate, interval, log)
		f, err := ss.nextFile()
		if err != nil {
			ss.shutdown()
			return nil, err
		}
		first = f
		source = ss
	}

	coord := newRollingCoordinator(source, first, cfg.Roll.YieldOnContention, cfg.Roll.AsyncClose, fileComplete, log)
	return newRollingFile(coord, cfg.Capacity, cfg.Framed), nil
}
