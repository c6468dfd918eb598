package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/warnain/backend/internal/catalog"
	"github.com/warnain/backend/internal/config"
	"go.uber.org/zap"
)

func newImportCommand() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "import <json_file> <image_base_path>",
		Short: "Import crawled categories and images into the catalog",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cmd.OutOrStdout(), args[0], args[1], source)
		},
	}
	cmd.Flags().StringVar(&source, "source", catalog.DefaultSource, "Source URL stored on every imported category")
	return cmd
}

func runImport(ctx context.Context, out io.Writer, jsonFile, imageBase, source string) error {
	appConfig, err := config.LoadOffline(viper.GetViper())
	if err != nil {
		return err
	}
	application, err := newApp(appConfig)
	if err != nil {
		return err
	}
	defer application.Close()

	service, err := catalog.NewService(catalog.ServiceConfig{Database: application.db, Logger: application.logger.Named("catalog")})
	if err != nil {
		return err
	}
	importer, err := catalog.NewImporter(catalog.ImporterConfig{
		Service:   service,
		MediaRoot: appConfig.MediaRoot,
		Logger:    application.logger.Named("import"),
	})
	if err != nil {
		return err
	}

	file, err := os.Open(jsonFile)
	if err != nil {
		return fmt.Errorf("open import file: %w", err)
	}
	defer file.Close()

	summary, err := importer.Import(ctx, file, imageBase, source)
	if err != nil {
		return err
	}
	application.logger.Info("catalog import finished",
		zap.String("file", jsonFile),
		zap.Int("categories", summary.Categories),
		zap.Int("images", summary.Images),
	)
	_, err = fmt.Fprintf(out, "Imported %d categories and %d images\n", summary.Categories, summary.Images)
	return err
}
