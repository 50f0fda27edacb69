package http

import (
	"net/http"

	"strategy-lab/internal/dto"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupExplorations(base *echo.Group) {
	base.POST("/explorations", h.runExploration)
	base.GET("/catalog", h.getCatalog)
}

func (h *HttpAPIHandler) runExploration(c echo.Context) error {
	req := new(dto.ExplorationRequest)
	if resp := h.bind(c, req); resp != nil {
		return c.JSON(resp.Code, resp)
	}

	result, err := h.service.ExplorationService.Run(c.Request().Context(), *req)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("exploration completed", result))
}

func (h *HttpAPIHandler) getCatalog(c echo.Context) error {
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("catalog axes", h.service.Catalog.Info()))
}
