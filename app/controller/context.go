package controller

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-course-checkout/app/factory"
)

// requestContext carries the echo request id into service-level logging.
func requestContext(ctx echo.Context) context.Context {
	requestID := strings.TrimSpace(ctx.Response().Header().Get(echo.HeaderXRequestID))
	if requestID == "" {
		requestID = strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderXRequestID))
	}
	if requestID == "" {
		return ctx.Request().Context()
	}
	return factory.ContextWithRequestID(ctx.Request().Context(), requestID)
}
