package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/termctl/termctl/internal/admin"
	"github.com/termctl/termctl/internal/logging"
	"github.com/termctl/termctl/internal/observability"
	"github.com/termctl/termctl/internal/registry"
	"github.com/termctl/termctl/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to termctl config file (toml)")
	flag.Parse()

	logging.ConfigureRuntime()
	observability.InitLogger("termctl")

	cfg := server.DefaultServiceConfig()
	if *configPath != "" {
		loaded, err := loadServiceConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "termctl: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	svc, err := server.NewServiceWithConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "termctl: %v\n", err)
		os.Exit(1)
	}
	svc.SetAdminBuilder(func(node string, srv *server.Server, reg *registry.Registry, corsOrigins []string) server.AdminEndpoint {
		return admin.New(node, srv, reg, corsOrigins)
	})

	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "termctl: %v\n", err)
		os.Exit(1)
	}
}
