package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-course-checkout/app/factory"
	"github.com/vibast-solutions/ms-go-course-checkout/app/mapper"
	"github.com/vibast-solutions/ms-go-course-checkout/app/middleware"
	"github.com/vibast-solutions/ms-go-course-checkout/app/service"
	"github.com/vibast-solutions/ms-go-course-checkout/app/types"
)

type TransactionController struct {
	transactionService *service.TransactionService
	logger             logrus.FieldLogger
}

func NewTransactionController(transactionService *service.TransactionService) *TransactionController {
	return &TransactionController{
		transactionService: transactionService,
		logger:             factory.NewModuleLogger("transactions-controller"),
	}
}

func (c *TransactionController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *TransactionController) Checkout(ctx echo.Context) error {
	buyer, ok := middleware.BuyerFromContext(ctx)
	if !ok {
		return c.writeError(ctx, http.StatusUnauthorized, "unauthorized")
	}

	req, err := types.NewCheckoutRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.transactionService.Checkout(requestContext(ctx), buyer, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrGatewayFailure):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrCourseNotFound):
			return c.writeError(ctx, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrAlreadyEnrolled), errors.Is(err, service.ErrCheckoutInProgress):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrCheckoutUnavailable):
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Warn("Checkout lock unavailable")
			return c.writeError(ctx, http.StatusServiceUnavailable, service.ErrCheckoutUnavailable.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Checkout failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, mapper.CheckoutResultToResponse(result))
}

func (c *TransactionController) MidtransWebhook(ctx echo.Context) error {
	req, err := types.NewMidtransNotificationRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.transactionService.HandleNotification(requestContext(ctx), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrTransactionNotFound):
			return c.writeError(ctx, http.StatusNotFound, "transaction not found")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).WithField("order_id", req.GetOrderId()).Error("Handle gateway notification failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.WebhookResponse{Success: result.Success})
}

func (c *TransactionController) GetTransaction(ctx echo.Context) error {
	buyer, ok := middleware.BuyerFromContext(ctx)
	if !ok {
		return c.writeError(ctx, http.StatusUnauthorized, "unauthorized")
	}
	req := types.NewGetTransactionRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	tx, err := c.transactionService.GetTransactionForBuyer(requestContext(ctx), buyer, req.OrderId)
	if err != nil {
		return c.writeLookupError(ctx, err, "Get transaction failed")
	}
	return ctx.JSON(http.StatusOK, mapper.TransactionToResponse(tx))
}

func (c *TransactionController) InternalGetTransaction(ctx echo.Context) error {
	req := types.NewGetTransactionRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	tx, err := c.transactionService.GetTransaction(requestContext(ctx), req.OrderId)
	if err != nil {
		return c.writeLookupError(ctx, err, "Internal get transaction failed")
	}
	return ctx.JSON(http.StatusOK, mapper.TransactionToResponse(tx))
}

func (c *TransactionController) InternalListNotifications(ctx echo.Context) error {
	req := types.NewGetTransactionRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.transactionService.ListNotifications(requestContext(ctx), req.OrderId)
	if err != nil {
		return c.writeLookupError(ctx, err, "List payment notifications failed")
	}
	return ctx.JSON(http.StatusOK, mapper.NotificationsToResponse(items))
}

func (c *TransactionController) writeLookupError(ctx echo.Context, err error, message string) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrTransactionNotFound):
		return c.writeError(ctx, http.StatusNotFound, "transaction not found")
	default:
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(message)
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}

func (c *TransactionController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
