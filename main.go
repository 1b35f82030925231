package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dancret/groovebox/cmd"
	"github.com/dancret/groovebox/internal/api"
	"github.com/dancret/groovebox/internal/bot"
	"github.com/dancret/groovebox/internal/config"
	"github.com/dancret/groovebox/internal/console"
	"github.com/dancret/groovebox/internal/logging"
	"github.com/dancret/groovebox/internal/pcm"
	"github.com/dancret/groovebox/internal/player"
	"github.com/dancret/groovebox/internal/resolver"
	"github.com/dancret/groovebox/internal/sink"
	"github.com/dancret/groovebox/internal/source"
	"github.com/dancret/groovebox/internal/track"
	"github.com/dancret/groovebox/pkg/deps"
)

func main() {
	godotenv.Load()

	args, err := cmd.ParseArgs()
	if err != nil {
		fmt.Println("[ERROR]", err)
		cmd.PrintUsageAndExit()
	}

	cfg, err := config.Load(args.ConfigPath)
	if err != nil {
		fmt.Println("[ERROR]", err)
		os.Exit(1)
	}
	if args.APIAddr != "" {
		cfg.APIAddr = args.APIAddr
	}

	log := logging.New(cfg.LogLevel)
	defer log.Sync()

	checker := deps.NewChecker(
		[]string{cfg.FFmpegBinary, cfg.FFplayBinary},
		[]string{cfg.YTDLPBinary},
	)
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

	// Sources: local files decode directly; remote tracks go through yt-dlp
	// stream extraction first.
	decoder := source.NewFFmpegSource(cfg.FFmpegBinary, profile, log.Named("ffmpeg"))
	remote := source.NewYTDLPSource(cfg.YTDLPBinary, decoder, log.Named("yt-dlp"))
	router := source.NewRoutingSource(map[track.Kind]source.AudioSource{
		track.KindLocalFile: decoder,
		track.KindRemote:    remote,
	}, nil)

	output := sink.NewFFplaySink(cfg.FFplayBinary, profile, log.Named("ffplay"))

	p := player.New(router, output, player.Options{
		QueueCapacity: cfg.QueueCapacity,
		MaxAttempts:   cfg.MaxAttempts,
		RetryBase:     cfg.RetryBase,
		Profile:       profile,
		BufferSize:    cfg.BufferSize,
	}, player.Hooks{
		OnLoopFaulted: func(err error) {
			log.Errorf("playback loop fault: %v", err)
		},
	}, log.Named("player"))
	defer p.Dispose()
	p.Start()

	// Resolvers: remote first, so URLs are never mis-read as paths.
	var cache resolver.RequestCache
	if cfg.CacheTTL > 0 {
		cache = resolver.NewRequestCache(cfg.CacheTTL)
	}
	resolverLog := log.Named("resolver")
	routing := resolver.NewRouting(
		resolver.NewRemote(cfg.YTDLPBinary, cache, cfg.CacheTTL, resolverLog),
		resolver.NewLocal(resolverLog),
	)

	for _, input := range args.Inputs {
		tracks, err := routing.Resolve(ctx, track.Request{Raw: input})
		if err != nil {
			log.Warnf("cannot resolve %q: %v", input, err)
			continue
		}
		p.Enqueue(tracks...)
	}

	if cfg.APIAddr != "" {
		handler := api.NewAPI(p, routing, log.Named("api"))
		engine := api.SetupRouter(handler)
		go func() {
			log.Infof("http api listening on %s", cfg.APIAddr)
			if err := engine.Run(cfg.APIAddr); err != nil {
				log.Errorf("http api: %v", err)
			}
		}()
	}

	if args.WithBot {
		if cfg.DiscordToken == "" {
			log.Error("discord front-end requested but DISCORD_TOKEN is empty")
			os.Exit(1)
		}
		b, err := bot.New(cfg.DiscordToken, p, routing, log.Named("bot"))
		if err != nil {
			log.Error(err)
			os.Exit(1)
		}
		if err := b.Start(); err != nil {
			log.Error(err)
			os.Exit(1)
		}
		defer b.Stop()
	}

	repl := console.New(p, routing, os.Stdin, os.Stdout, log.Named("console"))
	replDone := make(chan error, 1)
	go func() { replDone <- repl.Run(ctx) }()

	select {
	case <-ctx.Done():
	case err := <-replDone:
		if err != nil && err != context.Canceled {
			log.Errorf("console: %v", err)
		}
	}
}
