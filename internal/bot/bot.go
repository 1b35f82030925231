// Package bot is the chat front-end: a thin Discord command surface over the
// player facade.
package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/dancret/groovebox/internal/console"
	"github.com/dancret/groovebox/internal/player"
	"github.com/dancret/groovebox/internal/resolver"
	"github.com/dancret/groovebox/internal/track"
)

const commandPrefix = "!"

// Bot bridges Discord text commands to the player.
type Bot struct {
	session  *discordgo.Session
	player   *player.Player
	resolver resolver.Resolver
	log      *zap.SugaredLogger
}

// New creates a bot for the given token.
func New(token string, p *player.Player, r resolver.Resolver, log *zap.SugaredLogger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	b := &Bot{session: dg, player: p, resolver: r, log: log}
	dg.AddHandler(b.onMessage)
	return b, nil
}

// Start opens the gateway connection.
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	b.log.Infof("discord bot connected as %s", b.session.State.User.Username)
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() error {
	return b.session.Close()
}

func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID || !strings.HasPrefix(m.Content, commandPrefix) {
		return
	}

	cmd, arg, _ := strings.Cut(strings.TrimPrefix(m.Content, commandPrefix), " ")
	arg = strings.TrimSpace(arg)

	reply := func(format string, args ...any) {
		if _, err := s.ChannelMessageSend(m.ChannelID, fmt.Sprintf(format, args...)); err != nil {
			b.log.Warnf("send reply: %v", err)
		}
	}

	switch strings.ToLower(cmd) {
	case "play":
		b.handlePlay(arg, true, reply)
	case "add":
		b.handlePlay(arg, false, reply)
	case "pause":
		b.player.Pause()
		reply("paused")
	case "resume":
		b.player.Resume()
		reply("resumed")
	case "skip":
		b.player.Skip()
		reply("skipped")
	case "stop":
		b.player.Stop()
		reply("stopped")
	case "queue":
		b.replyQueue(reply)
	case "np", "status":
		b.replyStatus(reply)
	case "repeat":
		if mode, err := console.ParseRepeat(arg); err != nil {
			reply("%v", err)
		} else {
			b.player.SetRepeatMode(mode)
			reply("repeat: %s", mode)
		}
	case "shuffle":
		if on, err := console.ParseShuffle(arg, b.player.Shuffle()); err != nil {
			reply("%v", err)
		} else {
			b.player.SetShuffle(on)
			reply("shuffle: %v", on)
		}
	}
}

func (b *Bot) handlePlay(raw string, now bool, reply func(string, ...any)) {
	if raw == "" {
		reply("usage: %splay <path-or-url>", commandPrefix)
		return
	}

	tracks, err := b.resolver.Resolve(context.Background(), track.Request{Raw: raw})
	if err != nil {
		reply("cannot resolve %q: %v", raw, err)
		return
	}
	if len(tracks) == 0 {
		reply("nothing found for %q", raw)
		return
	}

	if now {
		b.player.PlayNow(tracks[0])
		if len(tracks) > 1 {
			b.player.Enqueue(tracks[1:]...)
		}
	} else {
		b.player.Enqueue(tracks...)
	}
	reply("queued %d track(s)", len(tracks))
}

func (b *Bot) replyQueue(reply func(string, ...any)) {
	snap := b.player.QueueSnapshot()
	if len(snap) == 0 {
		reply("queue is empty")
		return
	}

	var sb strings.Builder
	for i, t := range snap {
		if i >= 10 {
			fmt.Fprintf(&sb, "... and %d more", len(snap)-i)
			break
		}
		fmt.Fprintf(&sb, "%d. %s\n", i+1, t.Title)
	}
	reply("%s", sb.String())
}

func (b *Bot) replyStatus(reply func(string, ...any)) {
	info, elapsed := b.player.CurrentSession()
	if info == nil {
		reply("state: %s, nothing playing", b.player.State())
		return
	}
	reply("now playing: %s [%s] (%s)", info.Track.Title, console.FormatElapsed(elapsed), b.player.State())
}
