// Command ustar creates and inspects USTAR archives.
//
//	ustar create -o out.tar [-C dir] path...
//	ustar list archive.tar|URL
//	ustar cat archive.tar|URL name
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/meigma/ustar"
	ustarhttp "github.com/meigma/ustar/http"
)

type config struct {
	output      string
	dir         string
	concurrency int
	verify      bool
	strict      bool
	verbose     bool
}

var errUsage = errors.New("usage: ustar create|list|cat [flags] args...")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		log.Fatal(err) //nolint:gocritic // exitAfterDefer is intentional
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]

	var cfg config
	fset := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fset.SetOutput(stderr)
	fset.BoolVar(&cfg.verbose, "v", false, "log progress to stderr")
	switch cmd {
	case "create":
		fset.StringVar(&cfg.output, "o", "", "output archive path (required)")
		fset.StringVar(&cfg.dir, "C", ".", "directory paths are relative to")
		fset.IntVar(&cfg.concurrency, "concurrency", 0, "files read at once: <0 serial, 0 default")
	case "list", "cat":
		fset.BoolVar(&cfg.verify, "verify", false, "verify header checksums")
		fset.BoolVar(&cfg.strict, "strict", false, "reject typeflags other than file and directory")
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
	if err := fset.Parse(args); err != nil {
		return err
	}

	logger := slog.New(slog.DiscardHandler)
	if cfg.verbose {
		logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	switch cmd {
	case "create":
		return create(ctx, &cfg, fset.Args(), logger)
	case "list":
		if fset.NArg() != 1 {
			return errUsage
		}
		return list(ctx, &cfg, fset.Arg(0), stdout, logger)
	default:
		if fset.NArg() != 2 {
			return errUsage
		}
		return cat(ctx, &cfg, fset.Arg(0), fset.Arg(1), stdout, logger)
	}
}

// fileSource reads a local file when the archive is written.
type fileSource string

func (f fileSource) Resolve(context.Context) ([]byte, error) {
	return os.ReadFile(string(f))
}

func (f fileSource) SourceID() string {
	return "file:" + string(f)
}

func create(ctx context.Context, cfg *config, paths []string, logger *slog.Logger) error {
	if cfg.output == "" || len(paths) == 0 {
		return errUsage
	}

	w := ustar.NewWriter(ustar.WithLogger(logger), ustar.WithConcurrency(cfg.concurrency))
	root := os.DirFS(cfg.dir)
	for _, p := range paths {
		p = filepath.ToSlash(filepath.Clean(p))
		err := fs.WalkDir(root, p, func(name string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			opts := []ustar.EntryOption{
				ustar.EntryWithMode(int64(info.Mode().Perm())),
				ustar.EntryWithModTime(info.ModTime()),
			}
			switch {
			case d.IsDir():
				if name == "." {
					return nil
				}
				return w.AddFolder(name+"/", opts...)
			case d.Type().IsRegular():
				return w.AddFile(name, ustar.Deferred(fileSource(filepath.Join(cfg.dir, filepath.FromSlash(name)))), opts...)
			default:
				logger.Warn("skipping non-regular file", "path", name)
				return nil
			}
		})
		if err != nil {
			return fmt.Errorf("add %s: %w", p, err)
		}
	}

	archive, err := w.Write(ctx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(cfg.output, archive.Bytes(), 0o644); err != nil { //nolint:gosec // archives are not secret
		return err
	}
	logger.Info("archive created", "path", cfg.output, "digest", archive.Digest().String(), "size", archive.Size())
	return nil
}

func list(ctx context.Context, cfg *config, location string, stdout io.Writer, logger *slog.Logger) error {
	r, err := open(ctx, cfg, location, logger)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for info := range r.Entries() {
		fmt.Fprintf(tw, "%s\t%04o\t%s/%s\t%d\t%s\t%s\n",
			info.Type, info.Mode, info.User, info.Group, info.Size,
			info.ModTime.Format("2006-01-02 15:04"), info.Name)
	}
	return tw.Flush()
}

func cat(ctx context.Context, cfg *config, location, name string, stdout io.Writer, logger *slog.Logger) error {
	r, err := open(ctx, cfg, location, logger)
	if err != nil {
		return err
	}
	blob, err := r.FileBlob(name, "application/octet-stream")
	if err != nil {
		return err
	}
	_, err = blob.NewReader().WriteTo(stdout)
	return err
}

// open loads an archive from a local path or an http(s) URL.
func open(ctx context.Context, cfg *config, location string, logger *slog.Logger) (*ustar.Reader, error) {
	opts := []ustar.LoadOption{
		ustar.LoadWithVerifyChecksums(cfg.verify),
		ustar.LoadWithStrictTypes(cfg.strict),
		ustar.LoadWithLogger(logger),
	}
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		src, err := ustarhttp.NewSource(ctx, location, ustarhttp.WithLogger(logger), ustarhttp.WithConditionalHeaders())
		if err != nil {
			return nil, err
		}
		return ustar.LoadSource(ctx, src, opts...)
	}
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, err
	}
	return ustar.Load(data, opts...)
}
