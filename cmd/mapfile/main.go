// Command mapfile inspects files produced by the mapfile package: the
// 32-byte multi-process header and framed payload sequences.
package main

import (
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const headerSize = 32

func main() {
	root := &cobra.Command{
		Use:           "mapfile",
		Short:         "Inspect memory-mapped append files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(inspectCmd(), decodeCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Dump the multi-process header of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if len(data) < headerSize {
				return fmt.Errorf("%s: %d bytes, too short for a %d-byte header", args[0], len(data), headerSize)
			}
			fields := []string{"dataStart", "fileSize", "nextWrite", "writeComplete"}
			for i, name := range fields {
				v := binary.LittleEndian.Uint64(data[8*i:])
				fmt.Printf("%-14s %d\n", name, v)
			}
			fmt.Printf("%-14s %d\n", "fileLength", len(data))
			return nil
		},
	}
}

func decodeCmd() *cobra.Command {
	var multiProcess bool
	var maxPayload int
	cmd := &cobra.Command{
		Use:   "decode <file>",
		Short: "Walk the frames of a framed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			offset := 0
			if multiProcess {
				if len(data) < headerSize {
					return fmt.Errorf("%s: too short for a multi-process header", args[0])
				}
				offset = headerSize
			}
			for offset+4 <= len(data) {
				frameLen := int(binary.LittleEndian.Uint32(data[offset:]))
				if frameLen == 0 {
					break
				}
				if frameLen < 4 || offset+frameLen > len(data) {
					return fmt.Errorf("corrupt frame at offset %d: length %d", offset, frameLen)
				}
				payload := data[offset+4 : offset+frameLen]
				fmt.Printf("offset=%-10d length=%-8d payload=%q\n",
					offset, frameLen, printable(payload, maxPayload))
				offset += frameLen
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&multiProcess, "multi-process", false, "skip the 32-byte header before the first frame")
	cmd.Flags().IntVar(&maxPayload, "max-payload", 64, "maximum payload bytes to print per frame")
	return cmd
}

func printable(p []byte, max int) string {
	truncated := false
	if max > 0 && len(p) > max {
		p = p[:max]
		truncated = true
	}
	var b strings.Builder
	for _, c := range p {
		if c >= 0x20 && c < 0x7f {
			b.WriteByte(c)
		} else {
			b.WriteByte('.')
		}
	}
	if truncated {
		b.WriteString("...")
	}
	return b.String()
}
