package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"strings"
	"syscall"

	"github.com/himanishpuri/MediaDNA/internal/config"
	"github.com/himanishpuri/MediaDNA/pkg/logger"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna"
)

var (
	configPath     string
	bind           string
	allowedOrigins string
)

func init() {
	flag.StringVar(&configPath, "config", "", "Configuration file path")
	flag.StringVar(&bind, "bind", "", "Listen address (overrides server.bind)")
	flag.StringVar(&allowedOrigins, "origins", "", "Comma-separated list of allowed CORS origins (use * for all; default none)")
}

func main() {
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	appLog := logger.Configure(cfg.LoggerConfig())
	defer appLog.Sync()

	// Parse allowed origins
	origins := parseOrigins(allowedOrigins)

	service, err := mediadna.NewService(cfg.ServiceOptions(appLog)...)
	if err != nil {
		appLog.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	addr := cfg.Server.Bind
	if bind != "" {
		addr = bind
	}

	server := NewServer(service, &ServerConfig{
		Addr:             addr,
		Store:            cfg.Store.Kind + " " + cfg.Store.Location,
		AllowedOrigins:   origins,
		Threshold:        cfg.Dedup.Threshold,
		MatchCaptureTime: cfg.Dedup.MatchCaptureTime,
	})
	if err := server.Start(ctx); err != nil {
		appLog.Fatalf("Server failed: %v", err)
	}
}

// parseOrigins splits the -origins flag. An empty flag allows no
// cross-origin callers.
func parseOrigins(v string) []string {
	if strings.TrimSpace(v) == "*" {
		return []string{"*"}
	}
	var origins []string
	for _, o := range strings.Split(v, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
