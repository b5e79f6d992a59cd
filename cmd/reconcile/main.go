package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/apflow/invoice-reconciler/constants"
	"github.com/apflow/invoice-reconciler/internal/entity"
	"github.com/apflow/invoice-reconciler/internal/export"
	"github.com/apflow/invoice-reconciler/internal/llm/openai"
	"github.com/apflow/invoice-reconciler/internal/pipeline"
	"github.com/apflow/invoice-reconciler/internal/recon"
	"github.com/apflow/invoice-reconciler/internal/repository"
	"github.com/apflow/invoice-reconciler/internal/source"
	"github.com/apflow/invoice-reconciler/internal/workflow"
)

// reconcile ingests a directory of invoices and one of purchase orders,
// extracts fields from each file, scores every invoice against every
// purchase order, and writes the match matrix.
func main() {
	var (
		invoicesDir = flag.String("invoices", "", "directory of invoice files (required)")
		posDir      = flag.String("pos", "", "directory of purchase order files (required)")
		fieldsFlag  = flag.String("fields", "", "comma-separated name:kind field list (default: built-in set)")
		threshold   = flag.Int("threshold", recon.DefaultMatchThreshold, "likely-match score threshold")
		tolerance   = flag.Float64("tolerance", recon.DefaultAmountTolerance, "absolute amount tolerance")
		workers     = flag.Int("workers", 4, "concurrent extraction workers")
		dbPath      = flag.String("db", "", "sqlite database path (default: in-memory store)")
		outPath     = flag.String("out", "", "output file (default: stdout)")
		format      = flag.String("format", "json", "output format: json, csv or xlsx")
		skipHidden  = flag.Bool("skip-hidden", true, "skip hidden files and directories")
		verbose     = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *invoicesDir == "" || *posDir == "" {
		fmt.Fprintln(os.Stderr, "both -invoices and -pos are required")
		flag.Usage()
		os.Exit(2)
	}
	if *format != "json" && *format != "csv" && *format != "xlsx" {
		fmt.Fprintf(os.Stderr, "unsupported format %q\n", *format)
		os.Exit(2)
	}

	fields, err := recon.ParseFieldSpecs(*fieldsFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -fields: %v\n", err)
		os.Exit(2)
	}

	if err := run(context.Background(), logger, options{
		invoicesDir: *invoicesDir,
		posDir:      *posDir,
		fields:      fields,
		threshold:   *threshold,
		tolerance:   *tolerance,
		workers:     *workers,
		dbPath:      *dbPath,
		outPath:     *outPath,
		format:      *format,
		skipHidden:  *skipHidden,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "reconcile: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	invoicesDir string
	posDir      string
	fields      []recon.FieldSpec
	threshold   int
	tolerance   float64
	workers     int
	dbPath      string
	outPath     string
	format      string
	skipHidden  bool
}

func run(ctx context.Context, logger *slog.Logger, opts options) error {
	repos := repository.NewMemoryRepositories()
	if opts.dbPath != "" {
		db, err := repository.OpenSQLite(ctx, opts.dbPath, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		repos = repository.NewSQLiteRepositories(db, logger)
	}

	extractor := openai.NewClient(openai.Config{
		APIKey: os.Getenv("OPENAI_API_KEY"),
		Model:  os.Getenv("OPENAI_MODEL"),
	}, logger)
	proc := pipeline.NewProcessor(repos.Files, repos.Records, extractor, logger)
	src := source.NewFSSource(repos.Files, logger)

	invFiles, err := ingest(ctx, src, entity.RoleInvoice, opts.invoicesDir, opts.skipHidden)
	if err != nil {
		return err
	}
	poFiles, err := ingest(ctx, src, entity.RolePurchaseOrder, opts.posDir, opts.skipHidden)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers)
	for _, fileID := range append(invFiles, poFiles...) {
		g.Go(func() error {
			_, err := proc.ProcessFile(gctx, fileID)
			if err != nil {
				logger.Warn("extract.failed", "file_id", fileID, "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	builder := recon.NewBuilder(recon.Config{
		Fields:          opts.fields,
		MatchThreshold:  opts.threshold,
		AmountTolerance: opts.tolerance,
	}, logger)

	run := &entity.MatchRun{
		ID:              uuid.New(),
		Status:          string(constants.RunStatusQueued),
		MatchThreshold:  opts.threshold,
		AmountTolerance: opts.tolerance,
		StartedAt:       time.Now().UTC(),
	}
	if err := repos.Runs.Create(ctx, run); err != nil {
		return err
	}
	state, err := workflow.NewRunner(repos, builder, logger).Execute(ctx, run.ID, nil, nil)
	if err != nil {
		return err
	}

	return write(logger, state.Matrix, opts.format, opts.outPath)
}

func ingest(ctx context.Context, src source.DocumentSource, role entity.DocumentRole, dir string, skipHidden bool) ([]uuid.UUID, error) {
	results, stats, err := src.IngestDirectory(ctx, role, dir, skipHidden)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(results))
	for _, res := range results {
		if res.Err != "" {
			fmt.Fprintf(os.Stderr, "skip %s: %s\n", res.SourcePath, res.Err)
			continue
		}
		id, err := uuid.Parse(res.FileID)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if stats.Failed > 0 {
		fmt.Fprintf(os.Stderr, "%s: %d of %d files failed to ingest\n", dir, stats.Failed, stats.Matched)
	}
	return ids, nil
}

func write(logger *slog.Logger, matrix *entity.MatrixResult, format, outPath string) error {
	svc := export.NewService(logger)

	var out []byte
	var err error
	switch format {
	case "csv":
		out, err = svc.MatrixCSV(matrix)
	case "xlsx":
		out, err = svc.MatrixXLSX(matrix)
	default:
		out, err = svc.MatrixJSON(matrix)
	}
	if err != nil {
		return err
	}

	if outPath == "" {
		_, err = os.Stdout.Write(out)
		return err
	}
	return os.WriteFile(outPath, out, 0o644)
}
