package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/warnain/backend/internal/netif"
	"github.com/warnain/backend/internal/printing"
	"go.uber.org/zap"
)

const invalidImageMessage = "Upload a valid image. The file you uploaded was either not an image or a corrupted image."

type printResponsePayload struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	JobID    uint   `json:"job_id"`
	FileName string `json:"file_name,omitempty"`
}

type interfacePayload struct {
	Name      string  `json:"name"`
	IPAddress *string `json:"ip_address"`
	Status    string  `json:"status"`
}

func (h *httpHandler) handlePrintImage(c *gin.Context) {
	imageID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var input printImageInput
	if err := c.ShouldBind(&input); err != nil && !errors.Is(err, io.EOF) {
		writeBindingError(c, err)
		return
	}
	copies := input.Copies.orDefault()
	if err := validateCopies(copies); err != nil {
		writeBindingError(c, err)
		return
	}

	printerName, err := identifier("printer_name", input.PrinterName)
	if err != nil {
		writeBindingError(c, err)
		return
	}

	image, err := h.catalog.GetImage(c.Request.Context(), imageID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	result, err := h.tracker.Submit(c.Request.Context(), printing.SubmitRequest{
		UserID:      currentUserID(c),
		PrinterName: printerName,
		FilePath:    filepath.Join(h.mediaRoot, filepath.FromSlash(image.Image)),
		Copies:      copies,
		Title:       printTitlePrefix + filepath.Base(image.Image),
	})
	h.writePrintOutcome(c, result, err, "")
}

func (h *httpHandler) handlePrintTemp(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.uploadMaxBytes)

	var input printTempInput
	if err := c.ShouldBind(&input); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload exceeds the size limit", "field": "image"})
			return
		}
		writeBindingError(c, err)
		return
	}
	printerName, err := identifier("printer_name", input.PrinterName)
	if err != nil {
		writeBindingError(c, err)
		return
	}
	header, err := c.FormFile("image")
	if err != nil {
		writeInputError(c, inputError{Field: "image", Message: "image is required"})
		return
	}
	copies := input.Copies.orDefault()
	if err := validateCopies(copies); err != nil {
		writeBindingError(c, err)
		return
	}

	file, err := header.Open()
	if err != nil {
		writeInputError(c, inputError{Field: "image", Message: invalidImageMessage})
		return
	}
	defer file.Close()

	kind, err := mimetype.DetectReader(file)
	if err != nil || !strings.HasPrefix(kind.String(), "image/") {
		writeInputError(c, inputError{Field: "image", Message: invalidImageMessage})
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		h.writeServiceError(c, err)
		return
	}

	result, err := h.tracker.PrintUpload(c.Request.Context(), printing.UploadRequest{
		UserID:      currentUserID(c),
		PrinterName: printerName,
		Copies:      copies,
		FileName:    header.Filename,
		Content:     file,
	})
	h.writePrintOutcome(c, result, err, header.Filename)
}

// writePrintOutcome renders a submit result: 200 when dispatched, 400 with the
// dispatcher message when not, and the mapped service error otherwise.
func (h *httpHandler) writePrintOutcome(c *gin.Context, result printing.SubmitResult, err error, fileName string) {
	if err != nil {
		if result.Job.ID != 0 {
			h.logger.Error("print job bookkeeping failed", zap.Uint("job_id", result.Job.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": errorMessage(err), "job_id": result.Job.ID})
			return
		}
		h.writeServiceError(c, err)
		return
	}
	if !result.Dispatch.Success {
		c.JSON(http.StatusBadRequest, gin.H{"error": result.Dispatch.Message, "job_id": result.Job.ID})
		return
	}
	c.JSON(http.StatusOK, printResponsePayload{
		Status:   "ok",
		Message:  result.Dispatch.Message,
		JobID:    result.Job.ID,
		FileName: fileName,
	})
}

func (h *httpHandler) handleListPrinters(c *gin.Context) {
	printers, err := h.printers.ListPrinters(c.Request.Context())
	if err != nil {
		h.logger.Warn("printer listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Error getting printers: %v", err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"printers": printers})
}

func (h *httpHandler) handlePrinterStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.printers.PrinterStatus(c.Request.Context(), c.Param("name")))
}

func (h *httpHandler) handleListInterfaces(c *gin.Context) {
	interfaces, err := h.network.Interfaces(c.Request.Context())
	if err != nil {
		h.logger.Warn("interface listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Error getting network interfaces: %v", err)})
		return
	}
	payloads := make([]interfacePayload, 0, len(interfaces))
	for _, iface := range interfaces {
		payload := interfacePayload{Name: iface.Name, Status: iface.Status()}
		if iface.IPv4 != "" {
			address := iface.IPv4
			payload.IPAddress = &address
		}
		payloads = append(payloads, payload)
	}
	c.JSON(http.StatusOK, gin.H{"interfaces": payloads})
}

func (h *httpHandler) handleInterfaceIP(c *gin.Context) {
	name := c.Param("name")
	if err := netif.ValidateName(name); err != nil {
		writeInputError(c, inputError{Field: "interface_name", Message: err.Error()})
		return
	}
	h.writeInterfaceIP(c, name)
}

func (h *httpHandler) handleCurrentIP(c *gin.Context) {
	name, ok := h.resolver.DefaultInterface(c.Request.Context())
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Default interface not found"})
		return
	}
	if err := netif.ValidateName(name); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Error getting current IP: %v", err)})
		return
	}
	h.writeInterfaceIP(c, name)
}

func (h *httpHandler) writeInterfaceIP(c *gin.Context, name string) {
	address, found, err := h.network.InterfaceIP(c.Request.Context(), name)
	if err != nil {
		h.logger.Warn("interface address lookup failed", zap.String("interface", name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Error getting IP address: %v", err)})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("IP address not found for interface %s", name)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"interface": name, "ip_address": address})
}

func (h *httpHandler) handleSyncPrinters(c *gin.Context) {
	if !h.syncer.SyncPrinters(c.Request.Context()) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sync printers"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Printers synced"})
}

func (h *httpHandler) handleSyncInterfaces(c *gin.Context) {
	if !h.syncer.SyncInterfaces(c.Request.Context()) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sync network interfaces"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Network interfaces synced"})
}
