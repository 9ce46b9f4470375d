package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ArionMiles/financehub/pkg/client"
	"github.com/ArionMiles/financehub/pkg/config"
)

// runSetup runs the OAuth flow for every source plugin that needs scopes.
func runSetup(args []string, logger *slog.Logger) error {
	fs, _ := commonFlags("setup")
	secretsPath := fs.String("credentials", config.ClientSecretFile, "Google OAuth client secret file")
	force := fs.Bool("force", false, "re-authenticate even if a token exists")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Println("=== FinanceHub Setup ===")
	fmt.Println()

	if _, err := os.Stat(*secretsPath); os.IsNotExist(err) {
		return fmt.Errorf("credentials file not found: %s\n\nTo get your credentials:\n"+
			"1. Go to https://console.cloud.google.com/apis/credentials\n"+
			"2. Create an OAuth 2.0 Client ID (Desktop application)\n"+
			"3. Download the JSON file and save it as '%s'", *secretsPath, *secretsPath)
	}

	flow := client.NewFlow(logger)
	if !*force {
		if _, err := os.Stat(flow.TokenFile); err == nil {
			fmt.Printf("Already authenticated! Token file exists: %s\n", flow.TokenFile)
			fmt.Println()
			fmt.Println("To re-authenticate, run: financehub setup -force")
			return nil
		}
	}

	registry, err := newRegistry()
	if err != nil {
		return err
	}
	var names []string
	for _, p := range registry.List() {
		names = append(names, p.Name())
	}
	scopes, err := registry.Scopes(names...)
	if err != nil {
		return err
	}

	fmt.Println("Required permissions:")
	for _, scope := range scopes {
		fmt.Printf("  - %s\n", scope)
	}
	fmt.Println()

	oauthCfg, err := client.Config(*secretsPath, scopes...)
	if err != nil {
		return err
	}
	if _, err := flow.Authorize(context.Background(), oauthCfg); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	fmt.Println()
	fmt.Println("=== Setup Complete ===")
	fmt.Printf("Token saved to: %s\n", flow.TokenFile)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Set FINANCEHUB_SOURCE=sheets and GSHEETS_ID")
	fmt.Println("  2. Run 'financehub status' to check the setup")
	fmt.Println("  3. Run 'financehub serve'")
	return nil
}
