// Package prepopulate implements the startup hook: load a structure
// document from file or from the inline configured document, optionally
// wipe the database first, then hand the document to the Structure Service.
// Any failure aborts startup with a single wrapped PrepopulationError.
package prepopulate

import (
	"context"

	"github.com/nimbusgraph/vstructure/internal/structure/model"
	"github.com/nimbusgraph/vstructure/internal/structure/service"
	"github.com/nimbusgraph/vstructure/pkg/config"
	errs "github.com/nimbusgraph/vstructure/pkg/errors"
)

// Run executes the prepopulation driver. It is a no-op when prepopulation
// is disabled in configuration.
func Run(ctx context.Context, cfg *config.Config, svc *service.Service) error {
	if !cfg.PrepopulateOnStartup {
		return nil
	}

	cs, err := loadStructure(cfg, svc)
	if err != nil {
		return errs.Wrap(errs.PrepopulationError, "failed to load structure for prepopulation", err)
	}

	if cfg.OverwriteExisting {
		empty, err := svc.AreStructureTablesEmpty(ctx)
		if err != nil {
			return errs.Wrap(errs.PrepopulationError, "failed to check existing structure state", err)
		}
		if !empty {
			if err := svc.DeleteStructure(ctx); err != nil {
				return errs.Wrap(errs.PrepopulationError, "failed to delete existing structure before overwrite", err)
			}
		}
	}

	if err := svc.UpdateStructure(ctx, cs); err != nil {
		return errs.Wrap(errs.PrepopulationError, "failed to update structure during prepopulation", err)
	}
	return nil
}

// loadStructure implements the exclusive precedence between the two
// configured sources: populate-via-file wins when enabled, otherwise the
// inline document is used. config.Load has already rejected any
// combination that leaves neither source set.
func loadStructure(cfg *config.Config, svc *service.Service) (*model.CompleteStructure, error) {
	if cfg.PrepopulateViaFile {
		return svc.LoadFromJSONFile(cfg.StructureFilePath)
	}
	return cfg.InlineStructure, nil
}
