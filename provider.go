package mapfile

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultTimeFormat is the timestamp layout used by TimestampFileProvider
// when none is configured.
const DefaultTimeFormat = "20060102_150405.000"

// TimestampFileProvider names roll files
// "<prefix><stamp><-N><suffix>" inside Dir, where N is the smallest
// non-negative integer yielding a path that does not exist yet (N=0
// renders as nothing). Collisions with files created between the
// existence check and the create are benign: the creator retries with
// the next name.
type TimestampFileProvider struct {
	Dir        string
	Prefix     string
	Suffix     string
	TimeFormat string

	now func() time.Time // test hook
}

var _ FileProvider = (*TimestampFileProvider)(nil)

func (p *TimestampFileProvider) NextFile() string {
	format := p.TimeFormat
	if format == "" {
		format = DefaultTimeFormat
	}
	nowFn := p.now
	if nowFn == nil {
		nowFn = time.Now
	}
	stamp := nowFn().Format(format)
	for n := 0; ; n++ {
		name := p.Prefix + stamp
		if n > 0 {
			name += fmt.Sprintf("-%d", n)
		}
		name += p.Suffix
		path := filepath.Join(p.Dir, name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
	}
}
