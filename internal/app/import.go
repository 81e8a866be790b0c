package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"price-advisor/internal/ingest"
)

// Import loads a local CSV of sales records into the database.
func (a *App) Import(ctx context.Context, opts ImportOptions) error {
	if opts.Path == "" {
		return errors.New("--file is required")
	}
	owner := strings.TrimSpace(opts.Owner)
	if owner == "" {
		return errors.New("--owner is required")
	}

	file, err := os.Open(opts.Path)
	if err != nil {
		return fmt.Errorf("open import file: %w", err)
	}
	defer file.Close()

	result, err := ingest.ParseSales(file, owner, ingest.Options{MaxRows: a.Config.Export.MaxUploadRows})
	if err != nil {
		return err
	}

	for _, rowErr := range result.Errors {
		a.Logger.Warn().Int("line", rowErr.Line).Str("reason", rowErr.Reason).Msg("跳过无法解析的行")
	}

	if opts.DryRun {
		a.Logger.Info().
			Int("rows", len(result.Records)).
			Int("rejected", len(result.Errors)).
			Msg("导入 dry-run：不会写入数据库")
		return nil
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn 未配置，无法导入")
	}
	if closeStore != nil {
		defer closeStore()
	}
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	inserted, err := store.InsertSales(ctx, result.Records)
	if err != nil {
		return err
	}

	a.Logger.Info().
		Int64("inserted", inserted).
		Int("rejected", len(result.Errors)).
		Str("owner", owner).
		Msg("import complete")
	return nil
}
