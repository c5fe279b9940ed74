package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"vitalink/health-client/internal/client"
	"vitalink/health-client/internal/config"
	"vitalink/health-client/internal/device"
	"vitalink/health-client/internal/domain"
	"vitalink/health-client/internal/logging"
	"vitalink/health-client/internal/metrics"
	"vitalink/health-client/internal/service"
	"vitalink/health-client/internal/tokenstore"
)

// healthcli is a small demo driver for the client data layer: it logs in
// (or reuses a persisted session), optionally syncs the device provider's
// readings for today, and prints a period report plus active protocols.
func main() {
	username := flag.String("username", "", "account email (omit to reuse the stored session)")
	password := flag.String("password", "", "account password")
	period := flag.String("period", "week", "report period: today, week or month")
	sync := flag.Bool("sync", false, "sync device health data for today before reporting")
	flag.Parse()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("FATAL: Could not build logger: %v", err)
	}

	store, err := tokenstore.NewFileStore(cfg.Store.Path)
	if err != nil {
		log.Fatalf("FATAL: Could not open token store: %v", err)
	}

	api := client.New(cfg.API.BaseURL, store, logger, cfg.API.Timeout)

	var provider device.Provider = device.Unavailable{}
	if cfg.Device.Simulate {
		provider = device.NewSimulated()
	}
	metricService := service.NewMetricService(api, provider, logger)
	protocolService := service.NewProtocolService(api, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if *username != "" {
		if _, err := api.Login(ctx, *username, *password); err != nil {
			fatalClassified("login", err)
		}
		fmt.Println("logged in")
	} else if !api.CurrentSession().Authenticated() {
		fmt.Fprintln(os.Stderr, "no stored session; pass -username and -password")
		os.Exit(1)
	}

	if *sync {
		if err := provider.RequestAuthorization(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "device authorization failed: %v\n", err)
		} else {
			result, err := metricService.SyncDevice(ctx, domain.Today())
			if err != nil {
				fatalClassified("device sync", err)
			}
			fmt.Printf("synced %d device record(s)\n", result.Synced)
			for signal, err := range result.Failures {
				fmt.Fprintf(os.Stderr, "  %s: %v\n", signal, err)
			}
		}
	}

	p, err := metrics.ParsePeriod(*period)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	report, err := metricService.Report(ctx, p)
	if err != nil {
		fatalClassified("report", err)
	}
	printReport(report)

	active, err := protocolService.Active(ctx)
	if err != nil {
		fatalClassified("protocols", err)
	}
	printProtocols(active)
}

func printReport(report metrics.Report) {
	fmt.Printf("\n== %s summary ==\n", report.Period)
	types := make([]domain.MetricType, 0, len(report.Summaries))
	for t := range report.Summaries {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, t := range types {
		s := report.Summaries[t]
		fmt.Printf("  %-12s avg %.1f  min %.1f  max %.1f  (%d records)\n", t, s.Avg, s.Min, s.Max, s.Count)
	}

	for _, day := range report.Days {
		fmt.Printf("\n%s\n", day.Date)
		for _, record := range day.Records {
			fmt.Printf("  %-14s %-14s %s\n", record.Type, record.DisplayValue(), record.Source)
		}
	}
}

func printProtocols(active []domain.ProtocolEnrollment) {
	if len(active) == 0 {
		return
	}
	fmt.Printf("\n== active protocols ==\n")
	today := domain.Today()
	for _, e := range active {
		line := fmt.Sprintf("  %s: day %d", e.Name, e.DaysPassed(today)+1)
		if fraction, ok := e.Progress(today); ok {
			left, _ := e.DaysLeft(today)
			line += fmt.Sprintf(" (%.0f%%, %d days left)", fraction*100, left)
		}
		fmt.Println(line)
	}
}

// fatalClassified renders the pipeline's error taxonomy the way a screen
// would: network and API errors suggest a retry, authentication errors a
// fresh login.
func fatalClassified(op string, err error) {
	switch {
	case client.IsAuthenticationError(err):
		fmt.Fprintf(os.Stderr, "%s: %v\nplease log in again with -username and -password\n", op, err)
	case client.IsNetworkError(err):
		fmt.Fprintf(os.Stderr, "%s: %v\ncheck your network connection and retry\n", op, err)
	default:
		fmt.Fprintf(os.Stderr, "%s: %v\n", op, err)
	}
	os.Exit(1)
}
