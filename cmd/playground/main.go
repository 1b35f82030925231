// Package main is a single-track smoke player: it decodes one input through
// the real source/sink pair, bypassing the queue. Useful for checking an
// installation.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dancret/groovebox/internal/logging"
	"github.com/dancret/groovebox/internal/pcm"
	"github.com/dancret/groovebox/internal/sink"
	"github.com/dancret/groovebox/internal/source"
	"github.com/dancret/groovebox/internal/track"
	"github.com/dancret/groovebox/pkg/deps"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Println("usage: playground <path-or-url>")
		os.Exit(1)
	}
	input := os.Args[1]

	log := logging.New(os.Getenv("LOG_LEVEL"))
	defer log.Sync()

	checker := deps.NewChecker([]string{"ffmpeg", "ffplay"}, []string{"yt-dlp"})
	if err := checker.Check(log); err != nil {
		log.Error(err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	profile := pcm.Default()
	decoder := source.NewFFmpegSource("ffmpeg", profile, log.Named("ffmpeg"))

	t := track.Track{URI: input, Title: input, Kind: track.KindLocalFile}
	var src source.AudioSource = decoder
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		t.Kind = track.KindRemote
		src = source.NewYTDLPSource("yt-dlp", decoder, log.Named("yt-dlp"))
	}

	output := sink.NewFFplaySink("ffplay", profile, log.Named("ffplay"))
	defer output.Close()

	if err := play(ctx, src, output, t, profile); err != nil && !errors.Is(err, context.Canceled) {
		log.Error(err)
		os.Exit(1)
	}
}

// play copies the decoded stream into the sink until end of stream.
func play(ctx context.Context, src source.AudioSource, snk sink.AudioSink, t track.Track, profile pcm.Profile) error {
	reader, err := src.OpenReader(ctx, t)
	if err != nil {
		return err
	}
	defer reader.Close()

	buf := make([]byte, 80*1024)
	var total int64
	for {
		n, err := reader.Read(ctx, buf)
		if n > 0 {
			if werr := snk.Write(ctx, buf[:n]); werr != nil {
				return werr
			}
			total += int64(n)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
	}

	fmt.Printf("played %d bytes (%s)\n", total, profile.Duration(total).Round(time.Second))
	return snk.Complete(ctx)
}
