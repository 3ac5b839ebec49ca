// Package nbdcopy is the default bulk-copy collaborator. It streams a local
// disk image into the NBD export an upload daemon serves for it. The phase
// logic in the engine package never calls this directly; the CLI wires it in
// between Setup and Finalize.
package nbdcopy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"libguestfs.org/libnbd"
)

// MaxChunkSize bounds a single NBD write request.
const MaxChunkSize = 8 * 1024 * 1024

var zeroChunk = make([]byte, MaxChunkSize)

// Run copies the file at source into the NBD export at uri. size is the
// declared virtual size of the disk; if the source file is shorter, the
// remainder is zeroed on the export. All-zero chunks are zeroed rather than
// written, so sparse images don't inflate upload traffic.
func Run(ctx context.Context, source string, uri string, size int64, statusCallback func(string, bool)) error {
	log := slog.With(
		slog.String("source", source),
		slog.String("destination", uri),
	)

	fd, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("Failed to open disk image: %w", err)
	}

	defer fd.Close()

	handle, err := libnbd.Create()
	if err != nil {
		return err
	}

	defer handle.Close()

	err = handle.ConnectUri(uri)
	if err != nil {
		return fmt.Errorf("Failed to connect to NBD export %q: %w", uri, err)
	}

	log.Info("Starting disk copy", slog.Int64("size", size))

	name := filepath.Base(source)
	bar := progressbar.DefaultBytes(size, "Uploading "+name)

	buf := make([]byte, MaxChunkSize)
	for offset := int64(0); offset < size; {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		count := size - offset
		if count > MaxChunkSize {
			count = MaxChunkSize
		}

		n, err := fd.ReadAt(buf[:count], offset)
		if err != nil && err != io.EOF {
			return fmt.Errorf("Failed to read disk image at offset %d: %w", offset, err)
		}

		// Anything past the end of the source file is implicitly zero.
		for i := n; i < int(count); i++ {
			buf[i] = 0
		}

		if isZero(buf[:count]) {
			err = handle.Zero(uint64(count), uint64(offset), nil)
		} else {
			err = handle.Pwrite(buf[:count], uint64(offset), nil)
		}

		if err != nil {
			return fmt.Errorf("Failed to write to NBD export at offset %d: %w", offset, err)
		}

		offset += count
		_ = bar.Set64(offset)
		statusCallback(fmt.Sprintf("Uploading %q: %02.2f%% complete", name, float64(offset)/float64(size)*100.0), false)
	}

	err = handle.Flush(nil)
	if err != nil {
		return fmt.Errorf("Failed to flush NBD export: %w", err)
	}

	err = handle.Shutdown(nil)
	if err != nil {
		return err
	}

	log.Info("Disk copy completed")

	return nil
}

func isZero(buf []byte) bool {
	for len(buf) >= len(zeroChunk) {
		if !bytes.Equal(buf[:len(zeroChunk)], zeroChunk) {
			return false
		}

		buf = buf[len(zeroChunk):]
	}

	return bytes.Equal(buf, zeroChunk[:len(buf)])
}
