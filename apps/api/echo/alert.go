package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tuyishimwe/umurinzi/core/alert"
	"github.com/tuyishimwe/umurinzi/core/student"
)

type alertApi struct {
	svc alert.Service
}

func registerAlertAPI(g *echo.Group, svc alert.Service) {
	api := alertApi{svc: svc}

	mg := g.Group("/messages")
	mg.POST("", api.send)
	mg.POST("/process-pending", api.processPending)
	mg.GET("/:id", api.retrieve)
	mg.POST("/:id/retry", api.retry)
}

// Handlers

func (api *alertApi) send(ctx echo.Context) error {
	var data alert.SendRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SendRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	msg, err := api.svc.SendAlert(ctx.Request().Context(), data)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "sending alert")
	}

	return ctx.JSON(http.StatusCreated, msg)
}

func (api *alertApi) retrieve(ctx echo.Context) error {
	msg, err := api.svc.GetMessage(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == alert.ErrMessageNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting message")
	}
	return ctx.JSON(http.StatusOK, msg)
}

func (api *alertApi) retry(ctx echo.Context) error {
	msg, err := api.svc.RetryMessage(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == alert.ErrMessageNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "retrying message")
	}
	return ctx.JSON(http.StatusOK, msg)
}

func (api *alertApi) processPending(ctx echo.Context) error {
	n, err := api.svc.ProcessPendingMessages(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "processing pending messages")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"processed": n})
}
