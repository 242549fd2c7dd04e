package storage

import (
	"context"
	"errors"
	"fmt"

	"marketplace-scraper/models"
)

// ListingWriter is the interface any result sink must satisfy.
type ListingWriter interface {
	Write(ctx context.Context, listings []models.Listing) error
	Close() error
}

// WriteAll writes listings to every sink. A failing sink does not stop the
// others; all failures are returned joined.
func WriteAll(ctx context.Context, writers []ListingWriter, listings []models.Listing) error {
	var errs []error
	for i, w := range writers {
		if err := w.Write(ctx, listings); err != nil {
			errs = append(errs, fmt.Errorf("sink %d (%T): %w", i, w, err))
		}
	}
	return errors.Join(errs...)
}

// CloseAll closes every sink and returns all failures joined.
func CloseAll(writers []ListingWriter) error {
	var errs []error
	for _, w := range writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
