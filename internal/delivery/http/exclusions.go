package http

import (
	"net/http"

	"strategy-lab/internal/dto"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupExclusions(base *echo.Group) {
	exclusions := base.Group("/exclusions")
	exclusions.GET("", h.getExclusionStats)
	exclusions.POST("", h.addExclusion)
	exclusions.POST("/checkpoint", h.checkpointExclusions)
}

func (h *HttpAPIHandler) getExclusionStats(c echo.Context) error {
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("exclusion stats", h.service.ExclusionCache.Stats(c.Request().Context())))
}

func (h *HttpAPIHandler) addExclusion(c echo.Context) error {
	ctx := c.Request().Context()
	req := new(dto.ExclusionRequest)
	if resp := h.bind(c, req); resp != nil {
		return c.JSON(resp.Code, resp)
	}

	spec, err := h.service.Codec.Decode(req.Key)
	if err != nil {
		return h.errorResponse(c, err)
	}
	if req.Condition == "" {
		err = h.service.ExclusionCache.AddPermanentExclusion(ctx, spec)
	} else {
		err = h.service.ExclusionCache.AddMarketExclusion(ctx, spec, req.Condition)
	}
	if err != nil {
		return h.errorResponse(c, err)
	}

	info, err := h.service.ExclusionCache.Info(ctx, spec)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, dto.NewCreatedResponse("exclusion registered", info))
}

func (h *HttpAPIHandler) checkpointExclusions(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.service.ExclusionCache.Save(ctx); err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("exclusions saved", h.service.ExclusionCache.Stats(ctx)))
}
