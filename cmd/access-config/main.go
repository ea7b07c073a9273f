package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/orialabs/access"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "convert":
		handleConvert()
	case "validate":
		handleValidate()
	case "stats":
		handleStats()
	case "apply":
		handleApply()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("access-config - Configuration tool for access")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  access-config convert <input> <output>  - Convert between formats")
	fmt.Println("  access-config validate <file>           - Validate configuration")
	fmt.Println("  access-config stats <file>              - Show configuration statistics")
	fmt.Println("  access-config apply <file>              - Seed an in-memory engine and smoke-test it")
	fmt.Println()
	fmt.Println("Supported formats: .yaml, .yml, .json")
}

func loadConfig(path string) (*access.Config, error) {
	return access.NewConfigLoader().LoadFile(path)
}

func saveConfig(cfg *access.Config, path string) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = cfg.ToYAML()
	case ".json":
		data, err = cfg.ToJSON()
	default:
		return fmt.Errorf("unsupported output format: %s", path)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func handleConvert() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: access-config convert <input> <output>")
		os.Exit(1)
	}
	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := saveConfig(cfg, os.Args[3]); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Converted %s -> %s\n", os.Args[2], os.Args[3])
}

func handleValidate() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: access-config validate <file>")
		os.Exit(1)
	}
	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Configuration is valid")
	printStats(cfg)
}

func handleStats() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: access-config stats <file>")
		os.Exit(1)
	}
	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if stat, err := os.Stat(os.Args[2]); err == nil {
		fmt.Printf("File size: %d bytes\n", stat.Size())
	}
	fmt.Printf("Version: %d\n", cfg.Version)
	printStats(cfg)

	if len(cfg.Policies) > 0 {
		active := 0
		conditions := 0
		for _, p := range cfg.Policies {
			if p.Active {
				active++
			}
			conditions += len(p.Rules.Conditions)
		}
		fmt.Println()
		fmt.Println("Policy details:")
		fmt.Printf("  Active policies:  %d\n", active)
		fmt.Printf("  Total conditions: %d\n", conditions)
	}
}

func printStats(cfg *access.Config) {
	stats := cfg.Stats()
	fmt.Printf("  Roles:               %d\n", stats["roles"])
	fmt.Printf("  Grants:              %d\n", stats["grants"])
	fmt.Printf("  Memberships:         %d\n", stats["memberships"])
	fmt.Printf("  Subject attributes:  %d\n", stats["subject_attributes"])
	fmt.Printf("  Resource attributes: %d\n", stats["resource_attributes"])
	fmt.Printf("  Policies:            %d\n", stats["policies"])
	fmt.Printf("  Relationships:       %d\n", stats["relationships"])
}

// handleApply seeds an in-memory engine from the file and runs a sample
// check so a document can be smoke-tested without a database.
func handleApply() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: access-config apply <file> [subject resource action]")
		os.Exit(1)
	}
	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	var opts []access.Option
	if eng := cfg.Engine; eng.VerdictCacheTTL > 0 {
		numCounters := eng.RistrettoNumCounter
		if numCounters == 0 {
			numCounters = 1e4
		}
		maxCost := eng.RistrettoMaxCost
		if maxCost == 0 {
			maxCost = 1 << 20
		}
		buffer := eng.RistrettoBuffer
		if buffer == 0 {
			buffer = 64
		}
		opts = append(opts, access.WithVerdictCache(numCounters, maxCost, buffer, time.Duration(eng.VerdictCacheTTL)*time.Millisecond))
	}

	auth, err := access.NewAuthorizer(
		access.NewMemoryGrantStore(),
		access.NewMemoryMembershipStore(),
		access.NewMemoryAttributeStore(),
		access.NewMemoryPolicyStore(),
		access.NewMemoryRelationshipStore(),
		opts...,
	)
	if err != nil {
		fmt.Printf("Error building engine: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := auth.ApplyConfig(ctx, cfg); err != nil {
		fmt.Printf("Error applying config: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Configuration applied")

	if len(os.Args) >= 6 {
		verdict, err := auth.Check(ctx, access.Subject{ID: os.Args[3]}, os.Args[4], os.Args[5], "", "")
		if err != nil {
			fmt.Printf("Check failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Check %s %s %s: granted=%v granted_by=%v\n", os.Args[3], os.Args[4], os.Args[5], verdict.Granted, verdict.GrantedBy)
		for _, r := range verdict.Results {
			fmt.Printf("  %-5s granted=%-5v %s\n", r.Model, r.Granted, r.Reason)
		}
	}
}
