// recalld is the long-running service: Discord capture plus the scheduled
// consolidation cadence.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/vthunder/recall/internal/capture"
	"github.com/vthunder/recall/internal/config"
	"github.com/vthunder/recall/internal/consolidate"
	"github.com/vthunder/recall/internal/knowledge"
	"github.com/vthunder/recall/internal/llm"
	"github.com/vthunder/recall/internal/process"
	"github.com/vthunder/recall/internal/prompts"
	"github.com/vthunder/recall/internal/service"
	"github.com/vthunder/recall/internal/store"
)

func main() {
	godotenv.Load()

	noDiscord := flag.Bool("no-discord", false, "disable the Discord capture source")
	flag.Parse()

	cfg := config.Load()
	if err := os.MkdirAll(cfg.Home, 0755); err != nil {
		log.Fatalf("Failed to create %s: %v", cfg.Home, err)
	}

	s, err := store.Open(cfg.DBPath())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer s.Close()

	pm, err := prompts.NewManager(cfg.PromptsDir())
	if err != nil {
		log.Fatalf("Failed to load prompt profiles: %v", err)
	}

	client := llm.NewOllama(cfg.OllamaURL, cfg.Model, cfg.EmbedModel)

	scheduler := service.NewScheduler(
		process.New(s, client),
		consolidate.New(s, client, pm),
		knowledge.New(s, client),
	)
	scheduler.Start()
	defer scheduler.Stop()

	var discord *capture.DiscordCapture
	if cfg.DiscordToken != "" && !*noDiscord {
		discord, err = capture.NewDiscordCapture(capture.DiscordConfig{
			Token:     cfg.DiscordToken,
			ChannelID: cfg.DiscordChannelID,
		}, s)
		if err != nil {
			log.Fatalf("Failed to create Discord capture: %v", err)
		}
		if err := discord.Start(); err != nil {
			log.Fatalf("Failed to connect to Discord: %v", err)
		}
		defer discord.Stop()
	} else {
		log.Printf("[recalld] Discord capture disabled")
	}

	log.Printf("[recalld] Running (db=%s)", cfg.DBPath())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Printf("[recalld] Shutting down")
}
