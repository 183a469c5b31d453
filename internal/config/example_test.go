package config_test

import (
	"fmt"
	"log"
	"os"

	"github.com/robert-malhotra/stac-federator/internal/config"
)

func ExampleLoad() {
	// Set required environment variable
	os.Setenv("STAC_BASE_URL", "https://stac.example.com")
	defer os.Unsetenv("STAC_BASE_URL")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Server: %s\n", cfg.Server.Address())
	fmt.Printf("Sentinel API: %s\n", cfg.Sentinel.BaseURL)
	fmt.Printf("Cache backend: %s\n", cfg.Cache.Backend)
	fmt.Printf("Default Limit: %d\n", cfg.Search.DefaultLimit)

	// Output:
	// Server: 0.0.0.0:8080
	// Sentinel API: https://stac.dataspace.copernicus.eu/v1
	// Cache backend: sqlite
	// Default Limit: 10
}

func ExampleDefaultCollections() {
	registry := config.DefaultCollections()

	for _, c := range registry.All() {
		fmt.Printf("%s: %s\n", c.ID, c.Title)
	}

	// Output:
	// landsat-c2-l2: Landsat Collection 2 Level-2
	// landsat-c2-l2-sr: Landsat Collection 2 Level-2 (Planetary Computer)
	// sentinel-2-l2a: Sentinel-2 Level-2A
}

func ExampleServerConfig_Address() {
	os.Setenv("SERVER_PORT", "9090")
	os.Setenv("STAC_BASE_URL", "https://stac.example.com")
	defer func() {
		os.Unsetenv("SERVER_PORT")
		os.Unsetenv("STAC_BASE_URL")
	}()

	cfg, _ := config.Load()

	fmt.Printf("Listen on: %s\n", cfg.Server.Address())

	// Output:
	// Listen on: 0.0.0.0:9090
}
