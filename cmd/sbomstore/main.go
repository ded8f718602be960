// Command sbomstore copies, lists and archives SPDX documents held in model
// stores.
//
// Stores are named as driver[:location], e.g. "sqlite:./a.db" or
// "postgres:postgres://host/db". An omitted store falls back to the
// SBOMCORE_STORAGE_DRIVER environment configuration. The blob store used by
// export, import and list -archive comes from SBOMCORE_BLOB_DRIVER.
//
// copy, export and import accept -metrics-file to write Prometheus
// operation counters in the text exposition format when the command ends.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"sbomcore/internal/blob"
	"sbomcore/internal/core"
	"sbomcore/pkg/model"
)

var exitFunc = os.Exit

const usage = `usage: sbomstore <command> [flags]

commands:
  copy    copy one element (or a whole document) between stores
  list    print the elements of a document (or archived snapshots with -archive)
  export  write a document snapshot to the blob store
  import  load a document snapshot from the blob store
`

var errUsage = errors.New("usage")

func main() {
	code := cli(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
	logger, err := core.NewLogger(stderr, os.Getenv("SBOMCORE_LOG_LEVEL"))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "invalid log level: %v\n", err)
		return 2
	}
	var cmdErr error
	switch args[0] {
	case "copy":
		cmdErr = runCopy(ctx, args[1:], stdout, stderr, logger)
	case "list":
		cmdErr = runList(ctx, args[1:], stdout, stderr)
	case "export":
		cmdErr = runExport(ctx, args[1:], stdout, stderr, logger)
	case "import":
		cmdErr = runImport(ctx, args[1:], stdout, stderr, logger)
	case "help", "-h", "--help":
		_, _ = fmt.Fprint(stdout, usage)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n%s", args[0], usage)
		return 2
	}
	switch {
	case cmdErr == nil:
		return 0
	case errors.Is(cmdErr, errUsage):
		return 2
	default:
		_, _ = fmt.Fprintf(stderr, "sbomstore %s: %v\n", args[0], cmdErr)
		return 1
	}
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("sbomstore "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parse(fs *flag.FlagSet, args []string, required map[string]*string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return checkRequired(fs, required)
}

func checkRequired(fs *flag.FlagSet, required map[string]*string) error {
	for name, value := range required {
		if *value == "" {
			_, _ = fmt.Fprintf(fs.Output(), "missing -%s\n", name)
			fs.Usage()
			return errUsage
		}
	}
	return nil
}

func openStore(ctx context.Context, spec string) (model.Store, error) {
	if spec == "" {
		return core.OpenModelStore(ctx)
	}
	driver, location, err := core.ParseStoreSpec(spec)
	if err != nil {
		return nil, err
	}
	return core.OpenStore(ctx, driver, location)
}

func closeStore(store model.Store, err *error) {
	if cerr := core.CloseStore(store); cerr != nil && *err == nil {
		*err = cerr
	}
}

// openMetrics returns a Prometheus-backed recorder when path is set and a
// flush func writing its series to path. Without a path both are no-ops.
func openMetrics(path string) (core.MetricsRecorder, func(err *error), error) {
	if path == "" {
		return nil, func(*error) {}, nil
	}
	reg := prometheus.NewRegistry()
	recorder, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		return nil, nil, fmt.Errorf("metrics: %w", err)
	}
	flush := func(err *error) {
		if werr := prometheus.WriteToTextfile(path, reg); werr != nil && *err == nil {
			*err = fmt.Errorf("write metrics: %w", werr)
		}
	}
	return recorder, flush, nil
}

func runCopy(ctx context.Context, args []string, stdout, stderr io.Writer, logger zerolog.Logger) (err error) {
	fs := newFlagSet("copy", stderr)
	from := fs.String("from", "", "source store driver[:location]")
	fromDoc := fs.String("from-doc", "", "source document URI")
	to := fs.String("to", "", "destination store driver[:location]")
	toDoc := fs.String("to-doc", "", "destination document URI")
	id := fs.String("id", "", "element id to copy (default: every element)")
	metricsPath := fs.String("metrics-file", "", "write Prometheus metrics to this file")
	if err := parse(fs, args, map[string]*string{"from-doc": fromDoc, "to-doc": toDoc}); err != nil {
		return err
	}
	metrics, flush, err := openMetrics(*metricsPath)
	if err != nil {
		return err
	}
	defer flush(&err)
	src, err := openStore(ctx, *from)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer closeStore(src, &err)
	dst, err := openStore(ctx, *to)
	if err != nil {
		return fmt.Errorf("open destination: %w", err)
	}
	defer closeStore(dst, &err)

	var infos []model.ElementInfo
	if *id != "" {
		infos = []model.ElementInfo{{ID: *id}}
	} else if infos, err = src.Elements(ctx, *fromDoc); err != nil {
		return err
	}
	copier := core.NewCopyManager(core.WithCopyLogger(logger), core.WithCopyMetrics(metrics))
	for _, info := range infos {
		el, err := core.Resolve(ctx, src, *fromDoc, info)
		if err != nil {
			return err
		}
		copied, err := copier.Copy(ctx, el, dst, *toDoc)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(stdout, "%s -> %s\n", el.ID(), copied.ID()); err != nil {
			return err
		}
	}
	return nil
}

func runList(ctx context.Context, args []string, stdout, stderr io.Writer) (err error) {
	fs := newFlagSet("list", stderr)
	spec := fs.String("store", "", "store driver[:location]")
	doc := fs.String("doc", "", "document URI")
	archived := fs.Bool("archive", false, "list archived snapshots in the blob store instead")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *archived {
		return listArchive(ctx, stdout)
	}
	if err := checkRequired(fs, map[string]*string{"doc": doc}); err != nil {
		return err
	}
	store, err := openStore(ctx, *spec)
	if err != nil {
		return err
	}
	defer closeStore(store, &err)
	infos, err := store.Elements(ctx, *doc)
	if err != nil {
		return err
	}
	for _, info := range infos {
		if _, err := fmt.Fprintf(stdout, "%s\t%s\n", info.ID, info.Type); err != nil {
			return err
		}
	}
	return nil
}

func listArchive(ctx context.Context, stdout io.Writer) error {
	archive, err := blob.Open(ctx)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	infos, err := core.ListSnapshots(ctx, archive)
	if err != nil {
		return err
	}
	for _, info := range infos {
		if _, err := fmt.Fprintf(stdout, "%s\t%d\n", info.Key, info.Size); err != nil {
			return err
		}
	}
	return nil
}

func runExport(ctx context.Context, args []string, stdout, stderr io.Writer, logger zerolog.Logger) (err error) {
	fs := newFlagSet("export", stderr)
	spec := fs.String("store", "", "store driver[:location]")
	doc := fs.String("doc", "", "document URI")
	key := fs.String("key", "", "blob key (default documents/<document>.json)")
	metricsPath := fs.String("metrics-file", "", "write Prometheus metrics to this file")
	if err := parse(fs, args, map[string]*string{"doc": doc}); err != nil {
		return err
	}
	metrics, flush, err := openMetrics(*metricsPath)
	if err != nil {
		return err
	}
	defer flush(&err)
	store, err := openStore(ctx, *spec)
	if err != nil {
		return err
	}
	defer closeStore(store, &err)
	archive, err := blob.Open(ctx)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	info, err := core.ExportDocument(ctx, store, *doc, archive, *key, core.WithArchiveLogger(logger), core.WithArchiveMetrics(metrics))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "%s (%d bytes)\n", info.Key, info.Size)
	return err
}

func runImport(ctx context.Context, args []string, stdout, stderr io.Writer, logger zerolog.Logger) (err error) {
	fs := newFlagSet("import", stderr)
	spec := fs.String("store", "", "store driver[:location]")
	doc := fs.String("doc", "", "destination document URI (default: a new SPDX namespace)")
	key := fs.String("key", "", "blob key of the snapshot")
	metricsPath := fs.String("metrics-file", "", "write Prometheus metrics to this file")
	if err := parse(fs, args, map[string]*string{"key": key}); err != nil {
		return err
	}
	metrics, flush, err := openMetrics(*metricsPath)
	if err != nil {
		return err
	}
	defer flush(&err)
	if *doc == "" {
		*doc = core.NewDocumentURI("imported")
	}
	archive, err := blob.Open(ctx)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	// Check the snapshot before opening the destination so a bad key does
	// not create an empty store.
	if _, err := archive.Head(ctx, *key); err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return fmt.Errorf("no snapshot at %s", *key)
		}
		return fmt.Errorf("stat %s: %w", *key, err)
	}
	store, err := openStore(ctx, *spec)
	if err != nil {
		return err
	}
	defer closeStore(store, &err)
	imported, err := core.ImportDocument(ctx, archive, *key, store, *doc, nil, core.WithArchiveLogger(logger), core.WithArchiveMetrics(metrics))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "imported %d elements into %s\n", len(imported), *doc)
	return err
}
