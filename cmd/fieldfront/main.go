package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/fieldfront/fieldfront/internal"
	"github.com/fieldfront/fieldfront/internal/config"
	"github.com/fieldfront/fieldfront/internal/log"
)

var BuildVersion = "dev"

func generateDefaultConfig(path string) error {
	defaultConfig := map[string]any{
		"server": map[string]any{
			"addr":        ":8080",
			"baseURL":     "https://app.yourcompany.com",
			"environment": "production",
		},
		"cognito": map[string]any{
			"region":       "ap-northeast-1",
			"clientId":     map[string]string{"$env": "COGNITO_CLIENT_ID"},
			"clientSecret": map[string]string{"$env": "COGNITO_CLIENT_SECRET"},
			"domain":       "https://yourpool.auth.ap-northeast-1.amazoncognito.com",
		},
		"upstream": map[string]any{
			"baseURL":  "https://api.yourcompany.com/v1",
			"region":   "ap-northeast-1",
			"service":  "execute-api",
			"authMode": "bearer",
			"routes": []any{
				map[string]any{"mount": "/api/aws"},
				map[string]any{"mount": "/api/checkin", "prefix": "checkin"},
			},
		},
	}

	data, err := json.MarshalIndent(defaultConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func main() {
	conf := flag.String("config", "", "path to config file (required)")
	version := flag.Bool("version", false, "print version and exit")
	help := flag.Bool("help", false, "print help and exit")
	configInit := flag.String("config-init", "", "generate default config file at specified path")
	validate := flag.Bool("validate", false, "validate config file and exit")
	flag.Parse()

	if *help {
		flag.Usage()
		return
	}
	if *version {
		fmt.Println(BuildVersion)
		return
	}
	if *configInit != "" {
		if err := generateDefaultConfig(*configInit); err != nil {
			log.LogError("Failed to generate config: %v", err)
			os.Exit(1)
		}
		fmt.Printf("Generated default config at: %s\n", *configInit)
		return
	}

	if *conf == "" {
		fmt.Fprintf(os.Stderr, "Error: -config flag is required\n")
		fmt.Fprintf(os.Stderr, "Run with -help for usage information\n")
		os.Exit(1)
	}

	cfg, err := config.Load(*conf)
	if err != nil {
		log.LogError("Failed to load config: %v", err)
		os.Exit(1)
	}

	if *validate {
		fmt.Println("Result: PASS")
		return
	}

	log.LogInfoWithFields("main", "Starting fieldfront", map[string]any{
		"version": BuildVersion,
		"config":  *conf,
	})

	internal.Version = BuildVersion

	ctx := context.Background()
	app, err := internal.NewFieldFront(ctx, cfg)
	if err != nil {
		log.LogError("Failed to create server: %v", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		log.LogError("Failed to start server: %v", err)
		os.Exit(1)
	}
}
