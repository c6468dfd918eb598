package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/warnain/backend/internal/printing"
	"github.com/warnain/backend/internal/settings"
)

func (h *httpHandler) handleListPrinterSettings(c *gin.Context) {
	rows, err := h.settings.ListPrinters(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *httpHandler) handleCreatePrinterSettings(c *gin.Context) {
	var input printerSettingsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		writeBindingError(c, err)
		return
	}
	patch, err := h.printerPatch(input, true)
	if err != nil {
		writeBindingError(c, err)
		return
	}
	row := settings.PrinterSettings{Name: *patch.Name, IsActive: true}
	if patch.IsActive != nil {
		row.IsActive = *patch.IsActive
	}
	if patch.IsDefault != nil {
		row.IsDefault = *patch.IsDefault
	}
	if patch.Description != nil {
		row.Description = *patch.Description
	}
	created, err := h.settings.CreatePrinter(c.Request.Context(), row)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *httpHandler) handleGetPrinterSettings(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	row, err := h.settings.GetPrinter(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// handleUpdatePrinterSettings serves PUT (name required) and PATCH.
func (h *httpHandler) handleUpdatePrinterSettings(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var input printerSettingsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		writeBindingError(c, err)
		return
	}
	patch, err := h.printerPatch(input, c.Request.Method == http.MethodPut)
	if err != nil {
		writeBindingError(c, err)
		return
	}
	row, err := h.settings.UpdatePrinter(c.Request.Context(), id, patch)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *httpHandler) handleDeletePrinterSettings(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.settings.DeletePrinter(c.Request.Context(), id); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListNetworkInterfaces(c *gin.Context) {
	rows, err := h.settings.ListInterfaces(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *httpHandler) handleCreateNetworkInterface(c *gin.Context) {
	var input networkInterfaceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		writeBindingError(c, err)
		return
	}
	patch, err := h.interfacePatch(input, true)
	if err != nil {
		writeBindingError(c, err)
		return
	}
	row := settings.NetworkInterface{Name: *patch.Name, IPAddress: patch.IPAddress, IsActive: true}
	if patch.IsActive != nil {
		row.IsActive = *patch.IsActive
	}
	if patch.IsDefault != nil {
		row.IsDefault = *patch.IsDefault
	}
	if patch.Description != nil {
		row.Description = *patch.Description
	}
	created, err := h.settings.CreateInterface(c.Request.Context(), row)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *httpHandler) handleGetNetworkInterface(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	row, err := h.settings.GetInterface(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *httpHandler) handleUpdateNetworkInterface(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var input networkInterfaceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		writeBindingError(c, err)
		return
	}
	patch, err := h.interfacePatch(input, c.Request.Method == http.MethodPut)
	if err != nil {
		writeBindingError(c, err)
		return
	}
	row, err := h.settings.UpdateInterface(c.Request.Context(), id, patch)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *httpHandler) handleDeleteNetworkInterface(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.settings.DeleteInterface(c.Request.Context(), id); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListPrintJobs(c *gin.Context) {
	jobs, err := h.tracker.ListJobs(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

// handleCreatePrintJob stores a job record for the caller without printing it.
func (h *httpHandler) handleCreatePrintJob(c *gin.Context) {
	var input printJobInput
	if err := c.ShouldBindJSON(&input); err != nil {
		writeBindingError(c, err)
		return
	}
	if err := requireJobFields(input); err != nil {
		writeBindingError(c, err)
		return
	}
	patch, err := h.jobPatch(input)
	if err != nil {
		writeBindingError(c, err)
		return
	}
	job := printing.Job{
		UserID:      currentUserID(c),
		PrinterName: *patch.PrinterName,
		FilePath:    *patch.FilePath,
	}
	if patch.Copies != nil {
		job.Copies = *patch.Copies
	}
	if patch.Status != nil {
		job.Status = *patch.Status
	}
	if patch.ErrorMessage != nil {
		job.ErrorMessage = *patch.ErrorMessage
	}
	created, err := h.tracker.CreateJob(c.Request.Context(), job)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *httpHandler) handleGetPrintJob(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	job, err := h.tracker.GetJob(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *httpHandler) handleUpdatePrintJob(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var input printJobInput
	if err := c.ShouldBindJSON(&input); err != nil {
		writeBindingError(c, err)
		return
	}
	if c.Request.Method == http.MethodPut {
		if err := requireJobFields(input); err != nil {
			writeBindingError(c, err)
			return
		}
	}
	patch, err := h.jobPatch(input)
	if err != nil {
		writeBindingError(c, err)
		return
	}
	job, err := h.tracker.UpdateJob(c.Request.Context(), id, patch)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *httpHandler) handleDeletePrintJob(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.tracker.DeleteJob(c.Request.Context(), id); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func requireJobFields(input printJobInput) error {
	if err := requireField(input.PrinterName != nil, "printer_name"); err != nil {
		return err
	}
	return requireField(input.FilePath != nil, "file_path")
}
