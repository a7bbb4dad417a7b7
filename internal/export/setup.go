package export

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/codekids/quiz-backend/pkg/storage"
)

// Destinations are the exporters built from configuration. Sheets and Archive are nil when disabled.
type Destinations struct {
	Multi   *Multi
	Sheets  *Sheets
	Archive *Archive
}

// Setup builds every configured destination. Missing Sheets credentials only disable that destination.
func Setup(ctx context.Context, sheetsCfg SheetsConfig, s3cfg storage.S3Config, logger *zap.Logger) (*Destinations, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Destinations{}

	sh, err := NewSheets(ctx, sheetsCfg)
	switch {
	case errors.Is(err, ErrNotConfigured):
		logger.Warn("google sheets export disabled: credentials missing")
	case err != nil:
		return nil, err
	default:
		d.Sheets = sh
	}

	if s3cfg.ResultsBucket != "" {
		store, err := storage.NewS3(ctx, s3cfg, logger)
		if err != nil {
			logger.Warn("s3 archive disabled", zap.Error(err))
		} else {
			d.Archive = NewArchive(store)
		}
	}

	var exporters []Exporter
	if d.Sheets != nil {
		exporters = append(exporters, d.Sheets)
	}
	if d.Archive != nil {
		exporters = append(exporters, d.Archive)
	}
	d.Multi = NewMulti(exporters...)
	logger.Info("export destinations ready", zap.Int("count", d.Multi.Len()))
	return d, nil
}
