package main

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/catalog-admin/internal/catalog"
	"github.com/xenking/catalog-admin/internal/domain/auth"
	"github.com/xenking/catalog-admin/internal/domain/product"
)

const (
	// archiveCapacity sizes the pass 1 filters; larger archives only raise
	// the false positive rate, which costs extra exact entries.
	archiveCapacity = 1 << 20
	titleFPR        = 0.001
	maxLineBytes    = 1 << 20
)

// writeArchive writes one catalog record per line into a gzip stream.
func writeArchive(w io.Writer, products []product.Product) error {
	gz := pgzip.NewWriter(w)
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	for _, p := range products {
		e.Reset()
		catalog.EncodeProduct(e, p)
		if _, err := gz.Write(append(e.Bytes(), '\n')); err != nil {
			_ = gz.Close()
			return errors.Wrapf(err, "write product %s", p.ID)
		}
	}
	if err := gz.Close(); err != nil {
		return errors.Wrap(err, "close gzip writer")
	}
	return nil
}

// scanArchive streams the records written by writeArchive to fn. Blank lines
// are skipped.
func scanArchive(ctx context.Context, r io.Reader, fn func(product.Product) error) error {
	gz, err := pgzip.NewReader(r)
	if err != nil {
		return errors.Wrap(err, "create gzip reader")
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64<<10), maxLineBytes)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		if len(strings.TrimSpace(scanner.Text())) == 0 {
			continue
		}
		p, err := catalog.DecodeProduct(jx.DecodeBytes(scanner.Bytes()))
		if err != nil {
			return errors.Wrapf(err, "line %d", line)
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "scan archive")
	}
	return nil
}

func titleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

type importStats struct {
	Created int
	Skipped int
	// Tracked is how many archive titles needed an exact entry to tell
	// repeats apart.
	Tracked int
}

// importArchive creates every archive record whose title is not in the
// catalog yet, at most workers at a time. Only the first record of a title
// repeated within the archive is created.
//
// The archive is read twice and never held in memory. Pass 1 marks titles
// seen more than once in a bloom filter; pass 2 keeps exact state only for
// those.
func importArchive(
	ctx context.Context,
	repo product.Repository,
	cred auth.Credential,
	src io.ReadSeeker,
	workers int,
) (importStats, error) {
	list, err := repo.List(ctx, cred)
	if err != nil {
		return importStats{}, errors.Wrap(err, "list existing products")
	}
	existing := make(map[string]struct{}, len(list))
	for _, p := range list {
		existing[titleKey(p.Title)] = struct{}{}
	}

	// Pass 1: titles occurring at least twice.
	once := bloom.NewWithEstimates(archiveCapacity, titleFPR)
	twice := bloom.NewWithEstimates(archiveCapacity, titleFPR)
	records := 0
	if err := scanArchive(ctx, src, func(p product.Product) error {
		records++
		if k := titleKey(p.Title); once.TestAndAddString(k) {
			twice.AddString(k)
		}
		return nil
	}); err != nil {
		return importStats{}, errors.Wrap(err, "pass 1")
	}
	slog.Info("pass 1 complete", slog.Int("records", records))

	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return importStats{}, errors.Wrap(err, "rewind archive")
	}

	// Pass 2: create.
	var (
		created atomic.Int64
		stats   importStats
		seen    = make(map[string]struct{})
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	scanErr := scanArchive(gctx, src, func(p product.Product) error {
		k := titleKey(p.Title)
		if _, ok := existing[k]; ok {
			stats.Skipped++
			return nil
		}
		if twice.TestString(k) {
			if _, ok := seen[k]; ok {
				stats.Skipped++
				return nil
			}
			seen[k] = struct{}{}
		}

		p.ID = ""
		g.Go(func() error {
			if err := repo.Create(gctx, cred, p); err != nil {
				return errors.Wrapf(err, "create %q", p.Title)
			}
			if n := created.Add(1); n%100 == 0 {
				slog.Info("import progress", slog.Int64("created", n))
			}
			return nil
		})
		return nil
	})
	err = g.Wait()
	stats.Created = int(created.Load())
	stats.Tracked = len(seen)
	if err != nil {
		return stats, err
	}
	if scanErr != nil {
		return stats, errors.Wrap(scanErr, "pass 2")
	}
	return stats, nil
}
