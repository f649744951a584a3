package main

import (
	"flag"

	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/frame_alignment/internal/app"
	"github.com/relabs-tech/frame_alignment/internal/config"
)

func main() {
	configPath := flag.String("config", "./frame_config.txt", "path to configuration file")
	flag.Parse()

	log.Info().Msg("starting frame calibration web view")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if err := app.RunWeb(); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}
