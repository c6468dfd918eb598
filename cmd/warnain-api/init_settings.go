package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/warnain/backend/internal/config"
	"github.com/warnain/backend/internal/settings"
)

func newInitSettingsCommand() *cobra.Command {
	var (
		syncOnly bool
		force    bool
	)
	cmd := &cobra.Command{
		Use:   "init-settings",
		Short: "Sync printers and interfaces and create the configured defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInitSettings(cmd.Context(), cmd.OutOrStdout(), syncOnly, force)
		},
	}
	cmd.Flags().BoolVar(&syncOnly, "sync-only", false, "Only sync from the system, do not create defaults")
	cmd.Flags().BoolVar(&force, "force", false, "Promote existing rows to active defaults")
	return cmd
}

func runInitSettings(ctx context.Context, out io.Writer, syncOnly, force bool) error {
	appConfig, err := config.LoadOffline(viper.GetViper())
	if err != nil {
		return err
	}
	application, err := newApp(appConfig)
	if err != nil {
		return err
	}
	defer application.Close()

	stack, err := application.newPrintingStack(nil)
	if err != nil {
		return err
	}
	store, err := settings.NewStore(settings.StoreConfig{Database: application.db, Logger: application.logger.Named("settings")})
	if err != nil {
		return err
	}

	return initSettings(ctx, out, initSettingsDeps{
		syncer:           stack.syncer,
		store:            store,
		printerName:      appConfig.PrinterName,
		networkInterface: appConfig.NetworkInterface,
	}, syncOnly, force)
}

type initSettingsDeps struct {
	syncer interface {
		SyncPrinters(ctx context.Context) bool
		SyncInterfaces(ctx context.Context) bool
	}
	store interface {
		EnsureDefaultPrinter(ctx context.Context, name string, force bool) (settings.EnsureOutcome, error)
		EnsureDefaultInterface(ctx context.Context, name string, force bool) (settings.EnsureOutcome, error)
		ListPrinters(ctx context.Context) ([]settings.PrinterSettings, error)
		ListInterfaces(ctx context.Context) ([]settings.NetworkInterface, error)
	}
	printerName      string
	networkInterface string
}

func initSettings(ctx context.Context, out io.Writer, deps initSettingsDeps, syncOnly, force bool) error {
	fmt.Fprintln(out, "Syncing printers from CUPS...")
	if deps.syncer.SyncPrinters(ctx) {
		fmt.Fprintln(out, "Printers synced")
	} else {
		fmt.Fprintln(out, "Failed to sync printers")
	}
	fmt.Fprintln(out, "Syncing network interfaces...")
	if deps.syncer.SyncInterfaces(ctx) {
		fmt.Fprintln(out, "Network interfaces synced")
	} else {
		fmt.Fprintln(out, "Failed to sync network interfaces")
	}

	if !syncOnly {
		if deps.printerName != "" {
			outcome, err := deps.store.EnsureDefaultPrinter(ctx, deps.printerName, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Default printer %s: %s\n", deps.printerName, outcome)
		}
		if deps.networkInterface != "" {
			outcome, err := deps.store.EnsureDefaultInterface(ctx, deps.networkInterface, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Default interface %s: %s\n", deps.networkInterface, outcome)
		}
	}

	printers, err := deps.store.ListPrinters(ctx)
	if err != nil {
		return err
	}
	interfaces, err := deps.store.ListInterfaces(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nPrinters (%d):\n", len(printers))
	for _, printer := range printers {
		fmt.Fprintf(out, "  %s%s\n", printer.Name, flags(printer.IsActive, printer.IsDefault))
	}
	fmt.Fprintf(out, "Network interfaces (%d):\n", len(interfaces))
	for _, iface := range interfaces {
		address := "no address"
		if iface.IPAddress != nil {
			address = *iface.IPAddress
		}
		fmt.Fprintf(out, "  %s (%s)%s\n", iface.Name, address, flags(iface.IsActive, iface.IsDefault))
	}
	return nil
}

func flags(active, isDefault bool) string {
	label := ""
	if isDefault {
		label += " [default]"
	}
	if !active {
		label += " [inactive]"
	}
	return label
}
