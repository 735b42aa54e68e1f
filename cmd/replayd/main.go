// Command replayd runs the replay daemon in the foreground without the CLI
// wrapper. It is intended for service managers such as systemd; interactive
// use normally goes through `replay start`.
package main

import (
	"context"
	"flag"
	"log"

	"replay/internal/config"
	"replay/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	logLevel := flag.String("log-level", "", "override the configured log level")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *logLevel}); err != nil {
		log.Fatalf("replayd: %v", err)
	}
}
