package http

import (
	"net/http"

	"strategy-lab/internal/dto"
	"strategy-lab/internal/job"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupJobs(base *echo.Group) {
	jobs := base.Group("/jobs")
	{
		jobs.POST("/:type/run", h.RunJob)
		jobs.GET("/executions/:id", h.GetJobExecution)
	}
}

func (h *HttpAPIHandler) RunJob(c echo.Context) error {
	execution, err := h.service.SchedulerService.RunJob(c.Request().Context(), job.JobType(c.Param("type")))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusAccepted, dto.NewAcceptedResponse("job started", execution))
}

func (h *HttpAPIHandler) GetJobExecution(c echo.Context) error {
	execution, ok := h.service.SchedulerService.GetExecution(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, dto.NewNotFoundResponse("job execution not found"))
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("job execution", execution))
}
