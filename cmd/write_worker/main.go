// Command write_worker writes records into a shared multi-process file or
// roll directory, so the cross-process protocol can be exercised from real
// separate processes.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/substratehq/mapfile"
)

func main() {
	var (
		path     = flag.String("path", "", "File path (or roll directory with -roll)")
		capacity = flag.Int("capacity", 1<<20, "File capacity in bytes")
		count    = flag.Int("count", 100, "Number of records to write")
		id       = flag.Int("id", 0, "Writer id embedded in each record")
		roll     = flag.Bool("roll", false, "Treat -path as a roll directory")
		framed   = flag.Bool("framed", false, "Length-prefix every record")
	)
	flag.Parse()

	if *path == "" {
		log.Fatal("-path is required")
	}

	cfg := mapfile.MultiProcessConfig()
	cfg.Capacity = int32(*capacity)
	cfg.Framed = *framed
	cfg.Roll.Enabled = *roll
	cfg.Log = mapfile.LogConfig{Level: "error"}

	f, err := mapfile.Map(*path, cfg)
	if err != nil {
		log.Fatalf("failed to map %s: %v", *path, err)
	}

	written := 0
	for seq := 1; seq <= *count; seq++ {
		record := make([]byte, 12)
		binary.LittleEndian.PutUint32(record, uint32(*id))
		binary.LittleEndian.PutUint64(record[4:], uint64(seq))
		offset, err := f.Write(record)
		if err != nil {
			log.Fatalf("write %d failed: %v", seq, err)
		}
		if offset == mapfile.NullOffset {
			break
		}
		written++
	}

	if err := f.Close(); err != nil {
		log.Fatalf("close failed: %v", err)
	}
	fmt.Fprintf(os.Stdout, "wrote %d records\n", written)
}
