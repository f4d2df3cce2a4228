package mapper

import (
	"encoding/json"
	"time"

	"github.com/vibast-solutions/ms-go-course-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-course-checkout/app/service"
	"github.com/vibast-solutions/ms-go-course-checkout/app/types"
)

func CheckoutResultToResponse(result *service.CheckoutResult) *types.CheckoutResponse {
	if result == nil || result.Transaction == nil {
		return nil
	}
	tx := result.Transaction

	resp := &types.CheckoutResponse{
		OrderId:         tx.OrderID,
		SnapToken:       tx.GatewaySessionToken,
		RedirectUrl:     tx.GatewayRedirectURL,
		BasePrice:       tx.BasePrice,
		PpnAmount:       tx.TaxAmount,
		TotalAmount:     tx.GrossAmount,
		Currency:        result.Currency,
		Status:          tx.Status,
		ExpiresAt:       formatTime(tx.ExpiredAt),
		PlatformFee:     tx.PlatformFee,
		MentorNetAmount: tx.MentorNetAmount,
	}
	if result.Course != nil {
		resp.Course = types.CheckoutCourse{Id: result.Course.ID, Title: result.Course.Title, Price: result.Course.Price}
	}
	if result.Buyer != nil {
		resp.Customer = types.CheckoutCustomer{Name: result.Buyer.Name, Email: result.Buyer.Email}
	}
	return resp
}

func TransactionToResponse(tx *entity.Transaction) *types.TransactionResponse {
	if tx == nil {
		return nil
	}

	return &types.TransactionResponse{
		OrderId:         tx.OrderID,
		StudentId:       tx.StudentID,
		CourseId:        tx.CourseID,
		Status:          tx.Status,
		PaymentMethod:   derefString(tx.PaymentMethod),
		BasePrice:       tx.BasePrice,
		PpnAmount:       tx.TaxAmount,
		PpnRate:         tx.TaxRate.String(),
		TotalAmount:     tx.GrossAmount,
		PlatformFee:     tx.PlatformFee,
		PlatformFeeRate: tx.PlatformFeeRate.String(),
		MentorNetAmount: tx.MentorNetAmount,
		SnapToken:       tx.GatewaySessionToken,
		RedirectUrl:     tx.GatewayRedirectURL,
		PaidAt:          formatTimePtr(tx.PaidAt),
		ExpiresAt:       formatTime(tx.ExpiredAt),
		TransactionDate: formatTime(tx.TransactionDate),
		UpdatedAt:       formatTime(tx.UpdatedAt),
	}
}

func NotificationsToResponse(items []*entity.PaymentNotification) *types.ListPaymentNotificationsResponse {
	result := make([]*types.PaymentNotificationResponse, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		resp := &types.PaymentNotificationResponse{
			Id:                   item.ID,
			OrderId:              item.OrderID,
			TransactionStatus:    item.TransactionStatus,
			GatewayTransactionId: item.GatewayTransactionID,
			StatusCode:           item.StatusCode,
			GrossAmount:          item.GrossAmount,
			PaymentType:          item.PaymentType,
			TransactionTime:      formatTimePtr(item.TransactionTime),
			SettlementTime:       formatTimePtr(item.SettlementTime),
			IsProcessed:          item.IsProcessed,
			ProcessedAt:          formatTimePtr(item.ProcessedAt),
			CreatedAt:            formatTime(item.CreatedAt),
		}
		if json.Valid([]byte(item.RawPayload)) {
			resp.RawPayload = json.RawMessage(item.RawPayload)
		}
		result = append(result, resp)
	}
	return &types.ListPaymentNotificationsResponse{Notifications: result}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := formatTime(*t)
	return &formatted
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
