package sink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dancret/groovebox/internal/pcm"
)

// closeGrace is how long the player process gets to drain and exit after its
// stdin closes before it is force-killed.
const closeGrace = 2 * time.Second

// FFplaySink feeds PCM to an ffplay subprocess over stdin. Closing stdin is
// the signal for the process to exit.
type FFplaySink struct {
	binary  string
	profile pcm.Profile
	log     *zap.SugaredLogger

	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

// NewFFplaySink creates a sink that shells out to the given ffplay binary.
// The subprocess is launched lazily on first write.
func NewFFplaySink(binary string, profile pcm.Profile, log *zap.SugaredLogger) *FFplaySink {
	if binary == "" {
		binary = "ffplay"
	}
	return &FFplaySink{binary: binary, profile: profile, log: log}
}

// start launches the player process. Caller holds mu.
func (s *FFplaySink) start() error {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nodisp",
		"-autoexit",
		"-f", "s16le",
		"-ac", fmt.Sprintf("%d", s.profile.Channels),
		"-ar", fmt.Sprintf("%d", s.profile.SampleRate),
		"-i", "pipe:0",
	}

	cmd := exec.Command(s.binary, args...)
	cmd.WaitDelay = closeGrace

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.binary, err)
	}

	s.log.Infof("audio output started (pid %d)", cmd.Process.Pid)
	go func() {
		sc := bufio.NewScanner(stderr)
		for sc.Scan() {
			if line := sc.Text(); line != "" {
				s.log.Warnf("ffplay: %s", line)
			}
		}
	}()

	s.cmd = cmd
	s.stdin = stdin
	return nil
}

// Write pushes p into the player's stdin. The pipe's capacity is the only
// buffering; a full pipe blocks the caller.
func (s *FFplaySink) Write(ctx context.Context, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.stdin == nil {
		if err := s.start(); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	w := s.stdin
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := w.Write(p)
		done <- err
	}()

	select {
	case <-ctx.Done():
		// Closing stdin unblocks the parked write. The write must finish
		// before returning: the caller recycles p once Write returns, and
		// the next write relaunches the player.
		s.shutdown()
		<-done
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("write to %s: %w", s.binary, err)
		}
		return nil
	}
}

// Complete is a per-track flush hook. The PCM stream is continuous across
// tracks, so there is nothing to flush.
func (s *FFplaySink) Complete(ctx context.Context) error {
	return ctx.Err()
}

// shutdown closes stdin and waits for the player to drain and exit. A player
// still running after closeGrace is force-killed.
func (s *FFplaySink) shutdown() error {
	s.mu.Lock()
	cmd, stdin := s.cmd, s.stdin
	s.cmd, s.stdin = nil, nil
	s.mu.Unlock()

	if cmd == nil {
		return nil
	}
	if stdin != nil {
		stdin.Close()
	}
	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()
	var err error
	select {
	case err = <-waitDone:
	case <-time.After(closeGrace):
		cmd.Process.Kill()
		err = <-waitDone
	}
	if err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return fmt.Errorf("wait for %s: %w", s.binary, err)
		}
	}
	s.log.Infof("audio output stopped")
	return nil
}

// Close shuts the player process down.
func (s *FFplaySink) Close() error {
	return s.shutdown()
}
