/*
main.go - Command-line entry point

PURPOSE:
  Runs package operations against the SQLite store: seed a package from a
  payroll snapshot, apply component changes, submit, inspect, and print the
  audit trail.

STARTUP SEQUENCE:
  1. Load configuration (env + optional .env)
  2. Initialize logger
  3. Load rate tables and composition bands (fatal if malformed)
  4. Open SQLite store
  5. Dispatch subcommand

SUBCOMMANDS:
  seed   -employee E -limit N -file seed.json   create a draft package
  set    -employee E field=value ...            apply component changes
  submit -employee E                            freeze the package
  show   -employee E                            print package state
  audit  -employee E                            print the audit trail

EXAMPLES:
  package-engine seed -employee 1001 -limit 50000 -file seed.json
  package-engine set -employee 1001 car_allowance=15000 bonus=5000
  package-engine set -employee 1001 pension_option=C
  package-engine submit -employee 1001

ENVIRONMENT:
  PACKAGE_DB_PATH      SQLite path (default ./data/packages.db)
  PACKAGE_RATE_TABLES  optional JSON rate-table override file
  PACKAGE_BANDS        optional JSON composition-band override file
  LOG_LEVEL            logrus level (default info)
  ENVIRONMENT          production/staging -> JSON log format

SEE ALSO:
  - tctc/package.go: lifecycle semantics
  - store/sqlite/sqlite.go: database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/warp/package-engine/config"
	"github.com/warp/package-engine/logger"
	"github.com/warp/package-engine/store/sqlite"
	"github.com/warp/package-engine/tctc"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.Environment)
	log := logger.Get()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	tables, err := cfg.Tables()
	if err != nil {
		log.Fatalf("Failed to load rate tables: %v", err)
	}
	bands, err := cfg.Bands()
	if err != nil {
		log.Fatalf("Failed to load composition bands: %v", err)
	}

	engine, err := tctc.NewEngine(tables, bands, log)
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	lifecycle := tctc.NewLifecycle(engine, store, store, nil)
	ctx := context.Background()
	actor := tctc.Actor{ID: os.Getenv("USER"), Role: "cli"}

	switch os.Args[1] {
	case "seed":
		err = runSeed(ctx, lifecycle, actor, os.Args[2:])
	case "set":
		err = runSet(ctx, lifecycle, actor, os.Args[2:])
	case "submit":
		err = runSubmit(ctx, lifecycle, actor, os.Args[2:])
	case "show":
		err = runShow(ctx, lifecycle, os.Args[2:])
	case "audit":
		err = runAudit(ctx, lifecycle, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		if tctc.IsClientError(err) {
			fmt.Fprintln(os.Stderr, "rejected:", err)
			os.Exit(1)
		}
		log.Fatalf("Command failed: %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: package-engine <seed|set|submit|show|audit> [flags]")
}

// seedFile is the JSON shape of a payroll snapshot.
type seedFile struct {
	Components    map[string]any `json:"components"`
	Age           int            `json:"age"`
	Dependents    int            `json:"dependents"`
	HasMedicalAid bool           `json:"has_medical_aid"`
}

func runSeed(ctx context.Context, lc *tctc.Lifecycle, actor tctc.Actor, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	employee := fs.String("employee", "", "employee id")
	limit := fs.String("limit", "", "package cost ceiling")
	file := fs.String("file", "", "seed JSON file")
	fs.Parse(args)

	if *employee == "" || *limit == "" || *file == "" {
		return fmt.Errorf("seed requires -employee, -limit, and -file")
	}
	ceiling, err := decimal.NewFromString(*limit)
	if err != nil {
		return fmt.Errorf("invalid limit: %w", err)
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}
	components, err := tctc.Components{}.Apply(seed.Components)
	if err != nil {
		return err
	}

	pkg, err := lc.Create(ctx, tctc.SeedRecord{
		EmployeeID:    *employee,
		Limit:         ceiling,
		Components:    components,
		Age:           seed.Age,
		Dependents:    seed.Dependents,
		HasMedicalAid: seed.HasMedicalAid,
	}, actor)
	if err != nil {
		return err
	}
	printPackage(pkg)
	return nil
}

func runSet(ctx context.Context, lc *tctc.Lifecycle, actor tctc.Actor, args []string) error {
	fs := flag.NewFlagSet("set", flag.ExitOnError)
	employee := fs.String("employee", "", "employee id")
	override := fs.Bool("override", false, "admin override on a submitted package")
	fs.Parse(args)

	if *employee == "" {
		return fmt.Errorf("set requires -employee")
	}
	changes := tctc.Changes{}
	for _, arg := range fs.Args() {
		field, value, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("expected field=value, got %q", arg)
		}
		changes[field] = value
	}
	if len(changes) == 0 {
		return fmt.Errorf("set requires at least one field=value")
	}

	var (
		pkg tctc.Package
		res tctc.ValidationResult
		err error
	)
	if *override {
		pkg, res, err = lc.AdminOverride(ctx, *employee, changes, actor)
	} else {
		pkg, res, err = lc.ApplyChange(ctx, *employee, changes, actor)
	}
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		fmt.Println("warning:", w)
	}
	printPackage(pkg)
	return nil
}

func runSubmit(ctx context.Context, lc *tctc.Lifecycle, actor tctc.Actor, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	employee := fs.String("employee", "", "employee id")
	fs.Parse(args)

	if *employee == "" {
		return fmt.Errorf("submit requires -employee")
	}
	pkg, err := lc.Submit(ctx, *employee, actor)
	if err != nil {
		return err
	}
	printPackage(pkg)
	return nil
}

func runShow(ctx context.Context, lc *tctc.Lifecycle, args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	employee := fs.String("employee", "", "employee id")
	fs.Parse(args)

	if *employee == "" {
		return fmt.Errorf("show requires -employee")
	}
	pkg, err := lc.Get(ctx, *employee)
	if err != nil {
		return err
	}
	printPackage(pkg)
	return nil
}

func runAudit(ctx context.Context, lc *tctc.Lifecycle, args []string) error {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	employee := fs.String("employee", "", "employee id")
	fs.Parse(args)

	if *employee == "" {
		return fmt.Errorf("audit requires -employee")
	}
	entries, err := lc.AuditTrail(ctx, *employee)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s  %-18s %-22s %s -> %s  (%s)\n",
			e.At.Format("2006-01-02 15:04:05"), e.Action, e.Field,
			e.OldValue, e.NewValue, e.ActorID)
	}
	return nil
}

func printPackage(pkg tctc.Package) {
	fmt.Printf("employee:    %s [%s]\n", pkg.EmployeeID, pkg.Status)
	fmt.Printf("limit:       %s\n", pkg.Limit.StringFixed(2))
	fmt.Printf("total cost:  %s\n", pkg.CurrentTotal.StringFixed(2))
	fmt.Printf("remaining:   %s\n", pkg.Limit.Sub(pkg.CurrentTotal).StringFixed(2))
	fmt.Printf("monthly tax: %s\n", pkg.MonthlyTax.StringFixed(2))
	fmt.Printf("monthly uif: %s\n", pkg.MonthlyUIF.StringFixed(2))
}
