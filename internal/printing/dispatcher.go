// Package printing submits files to the spooler and tracks the resulting jobs.
package printing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/warnain/backend/internal/spooler"
	"go.uber.org/zap"
)

// Spooler is the subset of the scheduler client the dispatcher needs.
type Spooler interface {
	ListPrinters(ctx context.Context) ([]spooler.Printer, error)
	Printer(ctx context.Context, name string) (spooler.Printer, bool, error)
	PrintFile(ctx context.Context, req spooler.PrintRequest) (spooler.Job, error)
}

// DispatchResult is the outcome of a single PrintFile call.
type DispatchResult struct {
	Success      bool
	Message      string
	SpoolerJobID int
	DocFormat    string
}

// PrinterStatus describes a printer as seen by the scheduler.
type PrinterStatus struct {
	Exists      bool   `json:"exists"`
	Active      bool   `json:"active"`
	State       string `json:"state,omitempty"`
	Message     string `json:"message"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

// Dispatcher checks preconditions and hands files to the spooler. It never
// returns an error or panics; every failure is folded into a DispatchResult.
type Dispatcher struct {
	spooler Spooler
	logger  *zap.Logger
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(client Spooler, logger *zap.Logger) (*Dispatcher, error) {
	if client == nil {
		return nil, errors.New("printing: spooler client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{spooler: client, logger: logger}, nil
}

// ListPrinters returns the scheduler's printers.
func (d *Dispatcher) ListPrinters(ctx context.Context) ([]spooler.Printer, error) {
	return d.spooler.ListPrinters(ctx)
}

// PrinterStatus reports whether name exists and accepts jobs. Lookup failures
// are reported as a non-existent printer carrying the error text.
func (d *Dispatcher) PrinterStatus(ctx context.Context, name string) PrinterStatus {
	printer, ok, err := d.spooler.Printer(ctx, name)
	if err != nil {
		d.logger.Warn("printer status lookup failed", zap.String("printer", name), zap.Error(err))
		return PrinterStatus{Message: fmt.Sprintf("Error checking printer status: %v", err)}
	}
	if !ok {
		return PrinterStatus{Message: fmt.Sprintf("Printer %s not found", name)}
	}
	return PrinterStatus{
		Exists:      true,
		Active:      printer.Accepting,
		State:       printer.StateName(),
		Message:     printer.StateMessage,
		Location:    printer.Location,
		Description: printer.Description,
	}
}

// PrintFile sends filePath to printerName. An empty title becomes
// "Print job - <basename>".
func (d *Dispatcher) PrintFile(ctx context.Context, printerName, filePath string, copies int, title string) (result DispatchResult) {
	defer func() {
		if recovered := recover(); recovered != nil {
			d.logger.Error("print dispatch panicked",
				zap.String("printer", printerName),
				zap.Any("panic", recovered))
			result = DispatchResult{Message: fmt.Sprintf("Error printing file: %v", recovered)}
		}
	}()

	printer, ok, err := d.spooler.Printer(ctx, printerName)
	if err != nil {
		return d.failed(printerName, fmt.Sprintf("Error printing file: %v", err))
	}
	if !ok {
		return d.failed(printerName, fmt.Sprintf("Printer %s not found", printerName))
	}
	if !printer.Accepting {
		return d.failed(printerName, fmt.Sprintf("Printer %s is not accepting jobs: %s", printerName, printer.StateMessage))
	}
	if _, err := os.Stat(filePath); err != nil {
		return d.failed(printerName, fmt.Sprintf("File %s not found", filePath))
	}

	if title == "" {
		title = "Print job - " + filepath.Base(filePath)
	}
	job, err := d.spooler.PrintFile(ctx, spooler.PrintRequest{
		Printer: printerName,
		Path:    filePath,
		Title:   title,
		Copies:  copies,
	})
	if err != nil {
		return d.failed(printerName, fmt.Sprintf("Error printing file: %v", err))
	}

	d.logger.Info("print job sent",
		zap.String("printer", printerName),
		zap.Int("spooler_job_id", job.ID),
		zap.Int("copies", copies))
	return DispatchResult{
		Success:      true,
		Message:      fmt.Sprintf("Print job %d sent to printer %s", job.ID, printerName),
		SpoolerJobID: job.ID,
		DocFormat:    job.DocFormat,
	}
}

func (d *Dispatcher) failed(printerName, message string) DispatchResult {
	d.logger.Warn("print dispatch failed", zap.String("printer", printerName), zap.String("message", message))
	return DispatchResult{Message: message}
}
