package http

import (
	"net/http"
	"net/url"

	"strategy-lab/internal/dto"

	"github.com/labstack/echo/v4"
)

type strategyView struct {
	Key         dto.StrategyKey   `json:"key"`
	Description string            `json:"description"`
	Strategy    dto.StrategySpec  `json:"strategy"`
	Exclusion   dto.ExclusionInfo `json:"exclusion"`
}

func (h *HttpAPIHandler) SetupStrategies(base *echo.Group) {
	strategies := base.Group("/strategies")
	strategies.POST("/encode", h.encodeStrategy)
	strategies.GET("/:key", h.getStrategy)
}

// encodeStrategy skips struct validation in bind, Encode reports violations
// as validation errors.
func (h *HttpAPIHandler) encodeStrategy(c echo.Context) error {
	spec := new(dto.StrategySpec)
	if err := c.Bind(spec); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid request body"))
	}

	key, err := h.service.Codec.Encode(*spec)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("strategy encoded", strategyView{
		Key:         key,
		Description: h.service.Codec.Describe(*spec),
		Strategy:    *spec,
	}))
}

func (h *HttpAPIHandler) getStrategy(c echo.Context) error {
	raw, err := url.PathUnescape(c.Param("key"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid strategy key"))
	}

	spec, err := h.service.Codec.Decode(dto.StrategyKey(raw))
	if err != nil {
		return h.errorResponse(c, err)
	}
	info, err := h.service.ExclusionCache.Info(c.Request().Context(), spec)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("strategy found", strategyView{
		Key:         info.Key,
		Description: h.service.Codec.Describe(spec),
		Strategy:    spec,
		Exclusion:   info,
	}))
}
