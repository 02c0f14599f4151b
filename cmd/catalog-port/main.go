// Command catalog-port exports the product catalog to a gzip JSON lines
// archive and imports such an archive into a catalog.
//
//	catalog-port export -out catalog.jsonl.gz
//	catalog-port import -in catalog.jsonl.gz
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/catalog-admin/internal/catalog"
	"github.com/xenking/catalog-admin/internal/domain/auth"
)

type options struct {
	baseURL  string
	apiPath  string
	username string
	password string
	timeout  time.Duration
	path     string
	workers  int
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: catalog-port export|import [flags]")
		os.Exit(2)
	}
	cmd := os.Args[1]

	var opts options
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	fs.StringVar(&opts.baseURL, "base-url", os.Getenv("CATALOG_URL"), "catalog service base URL (or CATALOG_URL env)")
	fs.StringVar(&opts.apiPath, "api-path", os.Getenv("CATALOG_API_PATH"), "catalog API path segment (or CATALOG_API_PATH env)")
	fs.StringVar(&opts.username, "username", os.Getenv("CATALOG_USERNAME"), "administrator email (or CATALOG_USERNAME env)")
	fs.StringVar(&opts.password, "password", os.Getenv("CATALOG_PASSWORD"), "administrator password (or CATALOG_PASSWORD env)")
	fs.DurationVar(&opts.timeout, "timeout", 30*time.Second, "timeout of one catalog request")
	switch cmd {
	case "export":
		fs.StringVar(&opts.path, "out", "catalog.jsonl.gz", "archive to write")
	case "import":
		fs.StringVar(&opts.path, "in", "catalog.jsonl.gz", "archive to read")
		fs.IntVar(&opts.workers, "workers", 4, "concurrent create requests")
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q: want export or import\n", cmd)
		os.Exit(2)
	}
	_ = fs.Parse(os.Args[2:])

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, cmd, opts); err != nil {
		slog.Error("catalog port failed", slog.String("command", cmd), slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("catalog port completed", slog.String("command", cmd))
}

func run(ctx context.Context, cmd string, opts options) error {
	if opts.username == "" || opts.password == "" {
		return errors.New("username and password are required")
	}
	client, err := catalog.NewClient(catalog.Config{
		BaseURL: opts.baseURL,
		APIPath: opts.apiPath,
		Timeout: opts.timeout,
	})
	if err != nil {
		return errors.Wrap(err, "create catalog client")
	}

	cred, err := client.SignIn(ctx, opts.username, opts.password)
	if err != nil {
		return errors.Wrap(err, "sign in")
	}
	slog.Info("signed in", slog.String("username", opts.username), slog.Time("expires", cred.Expires))

	if cmd == "export" {
		return export(ctx, client, cred, opts.path)
	}
	return load(ctx, client, cred, opts.path, opts.workers)
}

func export(ctx context.Context, client *catalog.Client, cred auth.Credential, path string) error {
	products, err := client.List(ctx, cred)
	if err != nil {
		return errors.Wrap(err, "list products")
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := writeArchive(f, products); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close %s", path)
	}

	slog.Info("export complete", slog.Int("products", len(products)), slog.String("path", path))
	return nil
}

func load(ctx context.Context, client *catalog.Client, cred auth.Credential, path string, workers int) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	stats, err := importArchive(ctx, client, cred, f, workers)
	slog.Info("import finished",
		slog.Int("created", stats.Created),
		slog.Int("skipped", stats.Skipped),
		slog.Int("tracked", stats.Tracked),
	)
	return err
}
