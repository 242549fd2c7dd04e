package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"marketplace-scraper/api"
	"marketplace-scraper/config"
	"marketplace-scraper/fetch"
	"marketplace-scraper/models"
	"marketplace-scraper/scraper"
	"marketplace-scraper/services"
	"marketplace-scraper/storage"
	"marketplace-scraper/utils"
)

func main() {
	serve := flag.Bool("serve", false, "serve GET /api/scrape instead of running one search")
	flag.Parse()

	logger := utils.NewLogger()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher, err := fetch.New(cfg, logger)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
	engine := scraper.New(cfg, fetcher, logger)

	if *serve {
		if err := runServer(ctx, cfg, engine, logger); err != nil {
			logger.Error("HTTP server: %v", err)
			os.Exit(1)
		}
		return
	}

	keyword := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if keyword == "" {
		fmt.Fprintln(os.Stderr, "usage: marketplace-scraper [-serve] <keyword...>")
		os.Exit(2)
	}

	logger.Info("=== Marketplace search for %q ===", keyword)
	logger.Info("Config: fetcher %s | pagination start %d, %d pages | GBP to USD %.2f",
		cfg.Scraping.Fetcher, cfg.Scraping.PaginationStart, cfg.Scraping.PaginationPages, cfg.Scraping.GBPToUSD)

	result, err := engine.Scrape(ctx, keyword)
	if err != nil {
		logger.Error("Search failed: %v", err)
		os.Exit(1)
	}

	if len(result.Listings) == 0 {
		logger.Warn("No listings found for %q", keyword)
	}

	for _, l := range result.Listings {
		fmt.Printf("%-10s $%9.2f  %-50s  %s  %s\n", l.Source, l.Price, l.Title, l.PostedAt, l.URL)
	}

	logger.Info("Pages: craigslist: %d | preloved: %d | results: %d",
		engine.PageCount(string(models.SourceCraigslist)),
		engine.PageCount(string(models.SourcePreloved)),
		engine.TotalResultCount())

	history := writeResults(ctx, cfg, result.Listings, logger)

	insightSvc := services.NewInsightService(logger)
	insightSvc.Print(os.Stdout, insightSvc.Generate(history))
}

// writeResults sends listings to every configured sink and returns the
// listings the insight report should cover: the stored history when
// PostgreSQL is enabled, otherwise this run's listings.
func writeResults(ctx context.Context, cfg *config.Config, listings []models.Listing, logger *utils.Logger) []models.Listing {
	var writers []storage.ListingWriter

	csvWriter, err := storage.NewCSVWriter(cfg.CSVOutputPath)
	if err != nil {
		logger.Error("Failed to create CSV writer: %v", err)
	} else {
		writers = append(writers, csvWriter)
	}

	var pgWriter *storage.PostgresWriter
	if cfg.StorePostgres {
		pgWriter, err = storage.NewPostgresWriter(ctx, cfg.DSN(), &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   time.Second,
			Logger:      logger,
		})
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
		} else {
			writers = append(writers, pgWriter)
		}
	}

	defer func() {
		if err := storage.CloseAll(writers); err != nil {
			logger.Warn("Closing sinks: %v", err)
		}
	}()

	if err := storage.WriteAll(ctx, writers, listings); err != nil {
		logger.Error("Write failed: %v", err)
	} else {
		logger.Info("Listings saved to %d sink(s)", len(writers))
	}

	if pgWriter == nil {
		return listings
	}

	stored, err := pgWriter.FetchAll(ctx)
	if err != nil {
		logger.Error("Failed to fetch listings from DB for insights: %v", err)
		return listings
	}
	logger.Info("Insights cover %d stored listings", len(stored))
	return storage.Listings(stored)
}

func runServer(ctx context.Context, cfg *config.Config, engine *scraper.Engine, logger *utils.Logger) error {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(api.NewScrapeHandler(engine, logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Listening on %s", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
