// Package importer runs a full reload of the GENIE variant database from
// a VCF file and a cancer types reference file.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inodb/genie-db/internal/genie"
	"github.com/inodb/genie-db/internal/loader"
	"github.com/inodb/genie-db/internal/reference"
	"github.com/inodb/genie-db/internal/store"
	"github.com/inodb/genie-db/internal/vcf"
)

// ErrSourceMissing is returned when an input file does not exist.
// No table is modified when a run fails with it.
var ErrSourceMissing = errors.New("import source file not found")

// State is the stage an import run is in.
type State int

const (
	Idle State = iota
	ReferenceDataLoading
	VariantStreamLoading
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ReferenceDataLoading:
		return "reference_data_loading"
	case VariantStreamLoading:
		return "variant_stream_loading"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Store is the persistence used by an import run.
type Store interface {
	loader.Writer
	ReplaceCancerTypes(ctx context.Context, types []store.CancerType) error
	ClearVariants(ctx context.Context) error
	RecordImportRun(ctx context.Context, r store.ImportRun) error
}

// Config holds the inputs of an import run.
type Config struct {
	VCFPath         string
	CancerTypesPath string
	BatchSize       int            // variants per transaction; 0 uses loader.DefaultBatchSize
	Flags           vcf.FlagPolicy // handling of INFO entries without a value
}

// Summary reports the outcome of a successful run.
type Summary struct {
	RunID         string
	CancerTypes   int
	Variants      int
	PatientCounts int
	Batches       int
	Duration      time.Duration
}

// Importer sequences one full reload. An Importer is not safe for
// concurrent use and should not be reused after Run returns.
type Importer struct {
	store  Store
	cfg    Config
	logger *zap.Logger
	state  State

	// Progress, if set, is called after every committed batch with the
	// number of variants loaded so far.
	Progress func(total int)
}

// New creates an Importer writing to s.
func New(s Store, cfg Config) *Importer {
	return &Importer{
		store:  s,
		cfg:    cfg,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for run messages.
func (im *Importer) SetLogger(l *zap.Logger) {
	im.logger = l
}

// State returns the current stage of the run.
func (im *Importer) State() State {
	return im.state
}

func (im *Importer) transition(to State) {
	im.logger.Debug("import state", zap.Stringer("from", im.state), zap.Stringer("to", to))
	im.state = to
}

// Run truncates and reloads the cancer type, variant and patient count
// tables. Batches committed before a failure stay in the database; the
// next run starts over from empty tables.
func (im *Importer) Run(ctx context.Context) (*Summary, error) {
	runID := uuid.NewString()
	im.logger = im.logger.With(zap.String("run_id", runID))
	started := time.Now()

	summary, err := im.run(ctx, runID, started)
	if err != nil {
		im.transition(Failed)
		im.logger.Error("import failed", zap.Error(err))
		return nil, err
	}
	im.transition(Done)
	im.logger.Info("import finished",
		zap.Int("cancer_types", summary.CancerTypes),
		zap.Int("variants", summary.Variants),
		zap.Int("patient_counts", summary.PatientCounts),
		zap.Int("batches", summary.Batches),
		zap.Duration("duration", summary.Duration))
	return summary, nil
}

func (im *Importer) run(ctx context.Context, runID string, started time.Time) (*Summary, error) {
	vcfFile, err := statSource("vcf", im.cfg.VCFPath)
	if err != nil {
		return nil, err
	}
	if _, err := statSource("cancer types", im.cfg.CancerTypesPath); err != nil {
		return nil, err
	}

	im.transition(ReferenceDataLoading)
	resolver, nTypes, err := im.loadReferenceData(ctx)
	if err != nil {
		return nil, err
	}

	im.transition(VariantStreamLoading)
	ld, err := im.loadVariants(ctx, resolver)
	if err != nil {
		return nil, err
	}

	finished := time.Now()
	err = im.store.RecordImportRun(ctx, store.ImportRun{
		RunID:           runID,
		VCF:             vcfFile,
		CancerTypesPath: im.cfg.CancerTypesPath,
		CancerTypes:     int64(nTypes),
		Variants:        int64(ld.Rows()),
		PatientCounts:   int64(ld.PatientCounts()),
		StartedAt:       started,
		FinishedAt:      finished,
	})
	if err != nil {
		return nil, err
	}

	return &Summary{
		RunID:         runID,
		CancerTypes:   nTypes,
		Variants:      ld.Rows(),
		PatientCounts: ld.PatientCounts(),
		Batches:       ld.Flushes(),
		Duration:      finished.Sub(started),
	}, nil
}

func statSource(kind, path string) (store.FileFingerprint, error) {
	if path == "" {
		return store.FileFingerprint{}, fmt.Errorf("%w: no %s file configured", ErrSourceMissing, kind)
	}
	fp, err := store.StatFile(path)
	if err != nil {
		return store.FileFingerprint{}, fmt.Errorf("%w: %s file %s: %w", ErrSourceMissing, kind, path, err)
	}
	return fp, nil
}

// loadReferenceData replaces the cancer types and returns the token index.
func (im *Importer) loadReferenceData(ctx context.Context) (genie.Resolver, int, error) {
	types, err := reference.LoadCancerTypes(im.cfg.CancerTypesPath)
	if err != nil {
		return nil, 0, err
	}
	if err := im.store.ReplaceCancerTypes(ctx, types); err != nil {
		return nil, 0, fmt.Errorf("load cancer types: %w", err)
	}
	im.logger.Info("loaded cancer types", zap.Int("count", len(types)), zap.String("path", im.cfg.CancerTypesPath))
	return genie.NewCancerTypeIndex(types), len(types), nil
}

// loadVariants clears the variant tables and streams the VCF into them.
// Variant and patient count ids are assigned here, counting from 1.
func (im *Importer) loadVariants(ctx context.Context, resolver genie.Resolver) (*loader.Loader, error) {
	parser, err := vcf.NewParser(im.cfg.VCFPath, vcf.DecodeOptions{
		Flags:    im.cfg.Flags,
		Validate: genie.ValidateInfo,
	})
	if err != nil {
		return nil, err
	}
	defer parser.Close()

	if err := im.store.ClearVariants(ctx); err != nil {
		return nil, fmt.Errorf("clear variants: %w", err)
	}

	return im.stream(ctx, parser, resolver)
}

// stream decodes every record of src and hands it to a Loader.
func (im *Importer) stream(ctx context.Context, src vcf.RecordSource, resolver genie.Resolver) (*loader.Loader, error) {
	ld := loader.New(im.store, im.cfg.BatchSize)
	ld.SetLogger(im.logger)
	ld.OnFlush = func(total int) {
		im.logger.Debug("batch committed", zap.Int("variants", total))
		if im.Progress != nil {
			im.Progress(total)
		}
	}

	var variantID, countID int64
	for {
		rec, err := src.Next()
		if err != nil {
			return nil, err
		}
		if rec == nil {
			break
		}

		variantID++
		v, err := genie.VariantFromRecord(rec, variantID)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", src.LineNumber(), err)
		}
		counts, err := genie.Reshape(rec.Info, resolver)
		if err != nil {
			return nil, fmt.Errorf("line %d: variant %s: %w", src.LineNumber(), rec.Locus(), err)
		}
		for i := range counts {
			countID++
			counts[i].ID = countID
			counts[i].VariantID = variantID
		}

		if err := ld.Add(ctx, v, counts); err != nil {
			return nil, err
		}
	}

	if err := ld.Close(ctx); err != nil {
		return nil, err
	}
	return ld, nil
}
