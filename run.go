package featuremill

import (
	"context"
	"fmt"
)

// Run executes a full configured run: synthesize feature definitions for the
// configured target, calculate the feature matrix for the given entries, and
// perform any configured exports. It returns the matrix together with the
// definition list so callers can persist the feature set for serving-time
// reproduction.
func Run(ctx context.Context, es *EntitySet, cfg *RunConfig, entries []CutoffTimeEntry) (*FeatureMatrix, []FeatureDefinition, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	reg, err := cfg.Registry()
	if err != nil {
		return nil, nil, err
	}

	defs, err := Synthesize(es, cfg.TargetTable, SynthesisOptions{
		MaxDepth:   cfg.MaxDepth,
		Primitives: reg,
	})
	if err != nil {
		return nil, nil, err
	}

	calc, err := NewCalculator(es, cfg.TargetTable, defs, CalcOptions{
		Primitives: reg,
		Workers:    cfg.Workers,
	})
	if err != nil {
		return nil, nil, err
	}
	matrix, err := calc.Run(ctx, entries)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Export != nil {
		if err := runExports(ctx, cfg.Export, matrix, defs); err != nil {
			return nil, nil, err
		}
	}
	return matrix, defs, nil
}

func runExports(ctx context.Context, exp *RunExportConfig, matrix *FeatureMatrix, defs []FeatureDefinition) error {
	var enc *Encryptor
	if exp.EncryptionPassword != "" {
		var err error
		enc, err = NewEncryptor(EncryptionConfig{Enabled: true, KeyPassword: exp.EncryptionPassword})
		if err != nil {
			return err
		}
	}
	snap := &Snapshot{Matrix: matrix, Definitions: defs}

	if exp.CSVPath != "" {
		if err := matrix.WriteCSVFile(exp.CSVPath); err != nil {
			return fmt.Errorf("csv export: %w", err)
		}
	}
	if exp.SnapshotPath != "" {
		if err := WriteSnapshotFile(exp.SnapshotPath, snap, enc); err != nil {
			return fmt.Errorf("snapshot export: %w", err)
		}
	}
	if exp.SQLitePath != "" {
		sq, err := NewSQLiteExporter(SQLiteExporterConfig{Path: exp.SQLitePath})
		if err != nil {
			return fmt.Errorf("sqlite export: %w", err)
		}
		if err := sq.Export(ctx, snap); err != nil {
			sq.Close()
			return fmt.Errorf("sqlite export: %w", err)
		}
		if err := sq.Close(); err != nil {
			return fmt.Errorf("sqlite export: %w", err)
		}
	}
	if exp.S3 != nil {
		up, err := NewS3Exporter(ctx, S3ExporterConfig{
			Bucket:       exp.S3.Bucket,
			Region:       exp.S3.Region,
			Endpoint:     exp.S3.Endpoint,
			Prefix:       exp.S3.Prefix,
			UsePathStyle: exp.S3.UsePathStyle,
		})
		if err != nil {
			return fmt.Errorf("s3 export: %w", err)
		}
		if err := up.UploadSnapshot(ctx, exp.S3.Key, snap, enc); err != nil {
			return fmt.Errorf("s3 export: %w", err)
		}
	}
	return nil
}
