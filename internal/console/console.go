// Package console is the interactive front-end: a small line-oriented shell
// over the player facade.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dancret/groovebox/internal/player"
	"github.com/dancret/groovebox/internal/resolver"
	"github.com/dancret/groovebox/internal/track"
)

// Console reads commands from in and writes feedback to out.
type Console struct {
	player   *player.Player
	resolver resolver.Resolver
	in       io.Reader
	out      io.Writer
	log      *zap.SugaredLogger
}

// New creates a console over the given player and resolver.
func New(p *player.Player, r resolver.Resolver, in io.Reader, out io.Writer, log *zap.SugaredLogger) *Console {
	return &Console{player: p, resolver: r, in: in, out: out, log: log}
}

// Run reads commands until EOF, "quit", or ctx cancellation.
func (c *Console) Run(ctx context.Context) error {
	sc := bufio.NewScanner(c.in)
	c.printf("groovebox ready. Type 'help' for commands.\n")

	for {
		c.printf("> ")
		if !sc.Scan() {
			return sc.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		switch strings.ToLower(cmd) {
		case "quit", "exit":
			return nil
		case "help":
			c.printHelp()
		case "play":
			c.handlePlay(ctx, arg, true)
		case "add", "enqueue":
			c.handlePlay(ctx, arg, false)
		case "pause":
			c.player.Pause()
		case "resume":
			c.player.Resume()
		case "skip", "next":
			c.player.Skip()
		case "stop":
			c.player.Stop()
		case "clear":
			c.player.Clear()
		case "repeat":
			if mode, err := ParseRepeat(arg); err != nil {
				c.printf("%v\n", err)
			} else {
				c.player.SetRepeatMode(mode)
			}
		case "shuffle":
			if on, err := ParseShuffle(arg, c.player.Shuffle()); err != nil {
				c.printf("%v\n", err)
			} else {
				c.player.SetShuffle(on)
			}
		case "queue":
			c.printQueue()
		case "status", "np":
			c.printStatus()
		default:
			c.printf("unknown command %q; try 'help'\n", cmd)
		}
	}
}

// handlePlay resolves the input and either pre-empts with it or appends it.
func (c *Console) handlePlay(ctx context.Context, raw string, now bool) {
	if raw == "" {
		c.printf("usage: play <path-or-url>\n")
		return
	}

	tracks, err := c.resolver.Resolve(ctx, track.Request{Raw: raw})
	if err != nil {
		c.log.Debugf("resolve %q: %v", raw, err)
		c.printf("cannot resolve %q: %v\n", raw, err)
		return
	}
	if len(tracks) == 0 {
		c.printf("nothing found for %q\n", raw)
		return
	}

	if now {
		c.player.PlayNow(tracks[0])
		if len(tracks) > 1 {
			c.player.Enqueue(tracks[1:]...)
		}
	} else {
		c.player.Enqueue(tracks...)
	}
	c.printf("queued %d track(s)\n", len(tracks))
}

func (c *Console) printQueue() {
	snap := c.player.QueueSnapshot()
	if len(snap) == 0 {
		c.printf("queue is empty\n")
		return
	}
	for i, t := range snap {
		c.printf("%3d. %s (%s)\n", i+1, t.Title, t.URI)
	}
}

func (c *Console) printStatus() {
	c.printf("state: %s  repeat: %s  shuffle: %v  queued: %d\n",
		c.player.State(), c.player.RepeatMode(), c.player.Shuffle(), len(c.player.QueueSnapshot()))

	info, elapsed := c.player.CurrentSession()
	if info == nil {
		return
	}
	c.printf("now playing: %s (%s)\n", info.Track.Title, info.Track.URI)
	c.printf("started: %s  elapsed: %s\n",
		info.StartedAt.Format(time.Kitchen), FormatElapsed(elapsed))
}

func (c *Console) printHelp() {
	c.printf(`commands:
  play <path-or-url>     resolve and play immediately
  add <path-or-url>      resolve and append to the queue
  pause | resume | skip | stop | clear
  repeat off|one|track|all
  shuffle on|off|toggle
  queue                  show pending tracks
  status                 show player state
  quit
`)
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// ParseRepeat maps the user grammar to a repeat mode. "track" is a synonym
// for "one"; anything else is rejected.
func ParseRepeat(s string) (player.RepeatMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off":
		return player.RepeatNone, nil
	case "one", "track":
		return player.RepeatOne, nil
	case "all":
		return player.RepeatAll, nil
	default:
		return player.RepeatNone, fmt.Errorf("invalid repeat mode %q (off|one|track|all)", s)
	}
}

// ParseShuffle maps the user grammar to a shuffle flag, given the current
// value for "toggle".
func ParseShuffle(s string, current bool) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	case "toggle":
		return !current, nil
	default:
		return current, fmt.Errorf("invalid shuffle setting %q (on|off|toggle)", s)
	}
}

// FormatElapsed renders a duration as mm:ss.
func FormatElapsed(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
