package nbdkit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/strategy"
	"libguestfs.org/libnbd"
)

type NbdkitServer struct {
	cmd     *exec.Cmd
	socket  string
	pidFile string

	waited chan struct{}
}

// Start launches nbdkit and blocks until it serves NBD requests on its Unix
// socket. It does not wait for any data transfer.
func (s *NbdkitServer) Start(ctx context.Context) error {
	log := slog.With(slog.String("command", "nbdkit"), slog.String("socket", s.socket))
	stdout := bytes.Buffer{}
	stderr := bytes.Buffer{}
	s.cmd.Stdout = &stdout
	s.cmd.Stderr = &stderr

	log.Info("Running command", slog.String("args", s.cmd.String()))
	defer func() {
		log.Debug("Command started", slog.String("stdout", stdout.String()))
		if len(stderr.String()) > 0 {
			log.Error("Command errored", slog.String("stderr", stderr.String()))
		}
	}()

	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("Failed to start nbdkit server: %w", err)
	}

	s.waited = make(chan struct{})
	go func() {
		_ = s.cmd.Wait()
		close(s.waited)
	}()

	pidFileTimeout := time.After(10 * time.Second)
	tick := time.Tick(100 * time.Millisecond)

	for {
		select {
		case <-ctx.Done():
			_ = s.cmd.Process.Kill()
			return ctx.Err()
		case <-pidFileTimeout:
			_ = s.cmd.Process.Kill()
			return fmt.Errorf("Timeout waiting for pidfile to appear: %s", s.pidFile)
		case <-tick:
			if _, err := os.Stat(s.pidFile); err == nil {
				return s.probe()
			}
		}
	}
}

// probe connects to the freshly bound socket and asks for the export size, so
// a misconfigured plugin fails here instead of at first client write.
func (s *NbdkitServer) probe() error {
	err := retry.Retry(func(attempt uint) error {
		h, err := libnbd.Create()
		if err != nil {
			return err
		}

		defer h.Close()

		err = h.ConnectUri(s.URI())
		if err != nil {
			return err
		}

		_, err = h.GetSize()
		if err != nil {
			return err
		}

		return h.Shutdown(nil)
	}, strategy.Limit(50), strategy.Wait(100*time.Millisecond))
	if err != nil {
		_ = s.cmd.Process.Kill()
		return fmt.Errorf("nbdkit is not serving on socket %q: %w", s.socket, err)
	}

	return nil
}

// Terminate sends a graceful termination signal without waiting for the
// process to exit. Signal errors are ignored, the process may have already
// exited on its own.
func (s *NbdkitServer) Terminate() error {
	_ = s.cmd.Process.Signal(syscall.SIGTERM)
	return nil
}

// Stop gracefully terminates nbdkit and blocks until the process has exited,
// then removes the socket and pidfile.
func (s *NbdkitServer) Stop(ctx context.Context) error {
	err := s.cmd.Process.Signal(syscall.SIGTERM)
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("Failed to stop nbdkit server: %w", err)
	}

	select {
	case <-s.waited:
	case <-ctx.Done():
		return fmt.Errorf("Timeout waiting for nbdkit on socket %q to exit: %w", s.socket, ctx.Err())
	}

	_ = os.Remove(s.socket)
	_ = os.Remove(s.pidFile)

	return nil
}

func (s *NbdkitServer) Socket() string {
	return s.socket
}

// URI returns the libnbd connection URI for the server's Unix socket.
func (s *NbdkitServer) URI() string {
	return fmt.Sprintf("nbd+unix:///?socket=%s", s.socket)
}
