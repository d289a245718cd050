package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/health-insight/internal/domain/healthdata"
)

// HealthSnapshot returns every catalog metric over the requested window.
func (h *Handler) HealthSnapshot(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req healthdata.SnapshotRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	snapshot, err := h.healthSvc.Snapshot(c.Request.Context(), userID, req)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// HealthMetric returns a single metric by name.
func (h *Handler) HealthMetric(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req healthdata.SnapshotRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	result, err := h.healthSvc.Metric(c.Request.Context(), userID, c.Param("name"), req)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, result)
}

// IngestSamples stores a batch of device samples.
func (h *Handler) IngestSamples(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req healthdata.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	resp, err := h.healthSvc.Ingest(c.Request.Context(), userID, req)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}
