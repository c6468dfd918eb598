package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/warnain/backend/internal/catalog"
)

type categoryPayload struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	Thumbnail   string `json:"thumbnail"`
	Source      string `json:"source"`
	AccessCount int64  `json:"access_count"`
}

type imagePayload struct {
	ID     uint   `json:"id"`
	Source string `json:"source"`
	Image  string `json:"image"`
}

type imagePagePayload struct {
	Count    int64          `json:"count"`
	Next     *string        `json:"next"`
	Previous *string        `json:"previous"`
	Results  []imagePayload `json:"results"`
}

type trackResponsePayload struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	CategoryID  uint   `json:"category_id"`
	AccessCount int64  `json:"access_count"`
}

func (h *httpHandler) handleListCategories(c *gin.Context) {
	summaries, err := h.catalog.RankCategories(c.Request.Context(), catalog.ParseSortKey(c.Query("sort_by")))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.categoryPayloads(c, summaries))
}

func (h *httpHandler) handleLastAccess(c *gin.Context) {
	summaries, err := h.catalog.LastAccessed(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.categoryPayloads(c, summaries))
}

// handleCategoryDetail lists a category's images and records one access by
// the caller, anonymous when unauthenticated.
func (h *httpHandler) handleCategoryDetail(c *gin.Context) {
	categoryID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	images, err := h.catalog.CategoryImages(c.Request.Context(), categoryID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	if _, err := h.catalog.RecordAccess(c.Request.Context(), categoryID, currentUserID(c)); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.imagePayloads(c, images))
}

func (h *httpHandler) handleTrackAccess(c *gin.Context) {
	categoryID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if _, err := h.catalog.RecordAccess(c.Request.Context(), categoryID, currentUserID(c)); err != nil {
		h.writeServiceError(c, err)
		return
	}
	count, err := h.catalog.AccessCount(c.Request.Context(), categoryID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, trackResponsePayload{
		Success:     true,
		Message:     "Access tracked successfully",
		CategoryID:  categoryID,
		AccessCount: count,
	})
}

func (h *httpHandler) handleListBooks(c *gin.Context) {
	query := catalog.ImageQuery{Search: c.Query("search"), Page: 1}
	if raw := strings.TrimSpace(c.Query("category")); raw != "" {
		categoryID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeInputError(c, inputError{Field: "category", Message: "category must be a numeric id"})
			return
		}
		query.CategoryID = uint(categoryID)
	}
	if page, err := strconv.Atoi(strings.TrimSpace(c.Query("page"))); err == nil {
		query.Page = page
	}

	result, err := h.catalog.ListImages(c.Request.Context(), query)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	payload := imagePagePayload{Count: result.Count, Results: h.imagePayloads(c, result.Results)}
	if result.HasNext {
		next := fmt.Sprintf("?page=%d", result.Page+1)
		payload.Next = &next
	}
	if result.HasPrevious {
		previous := fmt.Sprintf("?page=%d", result.Page-1)
		payload.Previous = &previous
	}
	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) handleBookDetail(c *gin.Context) {
	imageID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	image, err := h.catalog.GetImage(c.Request.Context(), imageID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.imagePayload(c, image))
}

func (h *httpHandler) categoryPayloads(c *gin.Context, summaries []catalog.CategorySummary) []categoryPayload {
	payloads := make([]categoryPayload, 0, len(summaries))
	for _, summary := range summaries {
		payloads = append(payloads, categoryPayload{
			ID:          summary.ID,
			Title:       summary.Title,
			Thumbnail:   h.mediaLink(c, summary.Thumbnail),
			Source:      summary.Source,
			AccessCount: summary.AccessCount,
		})
	}
	return payloads
}

func (h *httpHandler) imagePayloads(c *gin.Context, images []catalog.PrintableImage) []imagePayload {
	payloads := make([]imagePayload, 0, len(images))
	for _, image := range images {
		payloads = append(payloads, h.imagePayload(c, image))
	}
	return payloads
}

func (h *httpHandler) imagePayload(c *gin.Context, image catalog.PrintableImage) imagePayload {
	return imagePayload{ID: image.ID, Source: image.Source, Image: h.mediaLink(c, image.Image)}
}

// mediaLink turns a stored media path into an absolute URL for the caller.
func (h *httpHandler) mediaLink(c *gin.Context, relative string) string {
	relative = strings.TrimLeft(strings.TrimSpace(relative), "/")
	if relative == "" {
		return ""
	}
	link := h.mediaURL + relative
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if forwarded := c.GetHeader("X-Forwarded-Proto"); forwarded != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(forwarded, ",")[0]))
	}
	absolute := url.URL{Scheme: scheme, Host: c.Request.Host, Path: link}
	return absolute.String()
}
