package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/dancret/groovebox/internal/pcm"
	"github.com/dancret/groovebox/internal/track"
)

// killGrace is how long a decoder process gets to exit after its pipes close
// before it is force-killed.
const killGrace = 2 * time.Second

// FFmpegSource decodes any input ffmpeg understands into raw PCM on stdout.
type FFmpegSource struct {
	binary  string
	profile pcm.Profile
	log     *zap.SugaredLogger
}

// NewFFmpegSource creates a source that shells out to the given ffmpeg binary.
func NewFFmpegSource(binary string, profile pcm.Profile, log *zap.SugaredLogger) *FFmpegSource {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegSource{binary: binary, profile: profile, log: log}
}

// Name returns the source implementation name.
func (s *FFmpegSource) Name() string {
	return "ffmpeg"
}

// Close releases long-lived resources. The ffmpeg source holds none; readers
// own their subprocesses.
func (s *FFmpegSource) Close() error {
	return nil
}

// OpenReader starts an ffmpeg process decoding the track to s16le on stdout.
func (s *FFmpegSource) OpenReader(ctx context.Context, t track.Track) (Reader, error) {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", t.URI,
		"-vn",
		"-f", "s16le",
		"-ac", fmt.Sprintf("%d", s.profile.Channels),
		"-ar", fmt.Sprintf("%d", s.profile.SampleRate),
		"pipe:1",
	}

	// The reader outlives this call, so the process is tied to its own
	// cancel rather than the caller's ctx.
	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, s.binary, args...)
	cmd.WaitDelay = killGrace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start %s: %w", s.binary, err)
	}

	s.log.Debugf("decoding %s (pid %d)", t.URI, cmd.Process.Pid)
	go drainStderr(stderr, s.log)

	if ctx.Err() != nil {
		cancel()
		cmd.Wait()
		return nil, ctx.Err()
	}

	return &processReader{
		cmd:    cmd,
		stdout: stdout,
		cancel: cancel,
		log:    s.log,
	}, nil
}

// drainStderr forwards decoder diagnostics to the log line by line.
func drainStderr(r io.Reader, log *zap.SugaredLogger) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := sc.Text(); line != "" {
			log.Warnf("ffmpeg: %s", line)
		}
	}
}

// processReader adapts a decoder subprocess's stdout to the Reader contract.
type processReader struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	cancel context.CancelFunc
	log    *zap.SugaredLogger
}

// Read reads decoded bytes, honouring ctx while blocked on the pipe. The pipe
// read itself is interrupted by killing the process on cancellation.
func (r *processReader) Read(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := r.stdout.Read(p)
		done <- result{n, err}
	}()

	select {
	case <-ctx.Done():
		// Kill the decoder process so the pending pipe read unblocks. Only
		// the ffmpeg process itself is signalled, not any children it spawned.
		r.cancel()
		res := <-done
		return res.n, ctx.Err()
	case res := <-done:
		return res.n, res.err
	}
}

// Close terminates the decoder: it closes the stdout pipe, gives the process
// killGrace to exit, and then force-kills it.
func (r *processReader) Close() error {
	r.stdout.Close()
	waitDone := make(chan error, 1)
	go func() { waitDone <- r.cmd.Wait() }()
	var err error
	select {
	case err = <-waitDone:
	case <-time.After(killGrace):
		r.cancel()
		err = <-waitDone
	}
	r.cancel()
	if err != nil && !isExpectedExit(err) {
		r.log.Debugf("ffmpeg exit: %v", err)
	}
	return nil
}

// isExpectedExit reports whether the error is the normal outcome of killing a
// decoder mid-stream.
func isExpectedExit(err error) bool {
	if err == nil {
		return true
	}
	_, ok := err.(*exec.ExitError)
	return ok || err == context.Canceled
}
