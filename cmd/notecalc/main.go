// Command notecalc evaluates one structured note described by a YAML term sheet
// and prints the outcome report as JSON.
//
//	notecalc -file note.yaml -at 2025-06-30
//	notecalc -file note.yaml -what-if SX5E=3500 -what-if NKY=31000
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/noteengine/internal/modules/lifecycle"
	"github.com/aristath/noteengine/pkg/logger"
)

// priceOverrides collects repeated -what-if SYMBOL=PRICE flags.
type priceOverrides map[string]float64

func (p priceOverrides) String() string {
	parts := make([]string, 0, len(p))
	for symbol, price := range p {
		parts = append(parts, fmt.Sprintf("%s=%g", symbol, price))
	}
	return strings.Join(parts, ",")
}

func (p priceOverrides) Set(value string) error {
	symbol, raw, ok := strings.Cut(value, "=")
	symbol = strings.TrimSpace(symbol)
	if !ok || symbol == "" {
		return fmt.Errorf("expected SYMBOL=PRICE, got %q", value)
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid price for %s: %w", symbol, err)
	}
	if price <= 0 {
		return fmt.Errorf("price for %s must be greater than 0", symbol)
	}
	p[symbol] = price
	return nil
}

func main() {
	overrides := priceOverrides{}
	file := flag.String("file", "", "YAML term sheet to evaluate")
	atFlag := flag.String("at", "", "evaluation date (YYYY-MM-DD, default today)")
	verbose := flag.Bool("v", false, "log engine diagnostics to stderr")
	flag.Var(overrides, "what-if", "override an initial price, SYMBOL=PRICE (repeatable)")
	flag.Parse()

	level := "error"
	if *verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Pretty: true, Output: os.Stderr})

	if *file == "" {
		fmt.Fprintln(os.Stderr, "notecalc: -file is required")
		flag.Usage()
		os.Exit(2)
	}

	at := time.Now().UTC()
	if *atFlag != "" {
		parsed, err := time.ParseInLocation("2006-01-02", *atFlag, time.UTC)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid -at date")
		}
		at = parsed
	}

	in, err := lifecycle.LoadProductFile(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("Failed to load term sheet")
	}

	p, err := lifecycle.Build(in, at)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build product")
	}

	engine := lifecycle.NewEngine(log)
	var report *lifecycle.Report
	if len(overrides) > 0 {
		report, err = engine.WhatIf(p, lifecycle.Overrides{InitialPrices: overrides}, at)
	} else {
		report, err = engine.Evaluate(p, at)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Evaluation failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Fatal().Err(err).Msg("Failed to encode report")
	}
}
