package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	corecmd "github.com/m3rciful/membergate/core/cmd"
	"github.com/m3rciful/membergate/internal/app"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("env file: %v", err)
	}
	if err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig:        app.LoadConfig,
		Bootstrap:         app.Bootstrap,
	}); err != nil {
		log.Printf("membergate: %v", err)
		os.Exit(1)
	}
}
