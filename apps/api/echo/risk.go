package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tuyishimwe/umurinzi/core"
	"github.com/tuyishimwe/umurinzi/core/risk"
	"github.com/tuyishimwe/umurinzi/core/student"
)

type riskApi struct {
	svc risk.Service
}

func registerRiskAPI(g *echo.Group, svc risk.Service) {
	api := riskApi{svc: svc}

	rg := g.Group("/risk")

	rg.POST("/students/:id/detect", api.detectStudent)
	rg.POST("/students/:id/detect-socioeconomic", api.detectStudentSocioeconomic)
	rg.GET("/students/:id/flags", api.queryStudentFlags)
	rg.POST("/schools/:id/detect", api.detectSchool)
	rg.GET("/sweeps/:id", api.retrieveSweep)

	fg := rg.Group("/flags")
	fg.POST("", api.reportSignal)
	fg.GET("", api.query)
	fg.GET("/:id", api.retrieve)
	fg.POST("/:id/resolve", api.resolve)
	fg.DELETE("/:id", api.destroy)

	rg.POST("/students/:id/recompute", api.recomputeLevel)
}

// parseOrdering maps an "ordering" query param ("severity", "-created_at")
// to a DB ordering; a "-" prefix means descending.
func parseOrdering(param string) core.DBOrdering {
	if param == "" {
		return core.DBOrdering{}
	}
	if strings.HasPrefix(param, "-") {
		return core.DBOrdering{Field: param[1:]}
	}
	return core.DBOrdering{Field: param, Ascending: true}
}

// Handlers

func (api *riskApi) detectStudent(ctx echo.Context) error {
	res, err := api.svc.DetectForStudent(
		ctx.Request().Context(),
		ctx.Param("id"),
		ctx.QueryParam("school"),
		ctx.QueryParam("actor"),
	)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "detecting student risks")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *riskApi) detectStudentSocioeconomic(ctx echo.Context) error {
	res, err := api.svc.DetectSocioeconomic(
		ctx.Request().Context(),
		ctx.Param("id"),
		ctx.QueryParam("school"),
		ctx.QueryParam("actor"),
	)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "detecting socioeconomic risks")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *riskApi) queryStudentFlags(ctx echo.Context) error {
	filter := risk.FlagFilter{
		StudentID: ctx.Param("id"),
		OrderBy:   parseOrdering(ctx.QueryParam("ordering")),
	}
	flags, err := api.svc.FilterFlags(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "filtering student flags")
	}
	return ctx.JSON(http.StatusOK, flags)
}

func (api *riskApi) detectSchool(ctx echo.Context) error {
	run, err := api.svc.DetectForSchool(ctx.Request().Context(), ctx.Param("id"), ctx.QueryParam("actor"))
	if err != nil {
		return errors.Wrap(err, "starting school sweep")
	}
	return ctx.JSON(http.StatusAccepted, run)
}

func (api *riskApi) retrieveSweep(ctx echo.Context) error {
	run, err := api.svc.GetSweepRun(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == risk.ErrSweepNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting sweep run")
	}
	return ctx.JSON(http.StatusOK, run)
}

func (api *riskApi) reportSignal(ctx echo.Context) error {
	var data risk.ManualSignal
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ManualSignal")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	fl, err := api.svc.ReportSignal(ctx.Request().Context(), data)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "reporting signal")
	}

	return ctx.JSON(http.StatusCreated, fl)
}

func (api *riskApi) query(ctx echo.Context) error {
	filter := risk.FlagFilter{
		StudentID: ctx.QueryParam("student"),
		SchoolID:  ctx.QueryParam("school"),
		Type:      risk.FlagType(ctx.QueryParam("type")),
		OrderBy:   parseOrdering(ctx.QueryParam("ordering")),
	}
	switch ctx.QueryParam("active") {
	case "true":
		active := true
		filter.Active = &active
	case "false":
		active := false
		filter.Active = &active
	}

	flags, err := api.svc.FilterFlags(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "filtering flags")
	}
	return ctx.JSON(http.StatusOK, flags)
}

func (api *riskApi) retrieve(ctx echo.Context) error {
	fl, err := api.svc.GetFlag(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == risk.ErrFlagNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting flag")
	}
	return ctx.JSON(http.StatusOK, fl)
}

func (api *riskApi) resolve(ctx echo.Context) error {
	var data struct {
		ActorID string `json:"actor_id"`
		Notes   string `json:"notes"`
	}
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding resolve request")
	}

	fl, err := api.svc.ResolveFlag(ctx.Request().Context(), ctx.Param("id"), data.ActorID, data.Notes)
	if err != nil {
		if errors.Cause(err) == risk.ErrFlagNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "resolving flag")
	}
	return ctx.JSON(http.StatusOK, fl)
}

func (api *riskApi) destroy(ctx echo.Context) error {
	if err := api.svc.DeleteFlag(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if errors.Cause(err) == risk.ErrFlagNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting flag")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *riskApi) recomputeLevel(ctx echo.Context) error {
	level, err := api.svc.UpdateRiskLevel(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "recomputing risk level")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"risk_level": level})
}
