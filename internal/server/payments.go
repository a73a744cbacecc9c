package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	paymentdomain "github.com/Alecckie/randa-web-sub001/internal/payment/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

type createPaymentRequest struct {
	AdvertiserID string         `json:"advertiser_id" binding:"required"`
	CampaignID   string         `json:"campaign_id"`
	Amount       int64          `json:"amount" binding:"required"`
	Currency     string         `json:"currency"`
	Phone        string         `json:"phone" binding:"required"`
	Description  string         `json:"description"`
	Metadata     map[string]any `json:"metadata"`
}

type paymentResponse struct {
	ID             string         `json:"id"`
	Reference      string         `json:"reference"`
	AdvertiserID   string         `json:"advertiser_id"`
	CampaignID     string         `json:"campaign_id,omitempty"`
	Phone          string         `json:"phone"`
	Amount         int64          `json:"amount"`
	Currency       string         `json:"currency"`
	Status         string         `json:"status"`
	GatewayReceipt string         `json:"gateway_receipt,omitempty"`
	StatusMessage  string         `json:"status_message,omitempty"`
	Metadata       datatypes.JSON `json:"metadata,omitempty"`
	InitiatedAt    time.Time      `json:"initiated_at"`
	ProcessedAt    *time.Time     `json:"processed_at,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	FailedAt       *time.Time     `json:"failed_at,omitempty"`
}

func toPaymentResponse(p *paymentdomain.Payment) paymentResponse {
	resp := paymentResponse{
		ID:             p.ID.String(),
		Reference:      p.Reference,
		AdvertiserID:   p.AdvertiserID.String(),
		Phone:          p.Phone,
		Amount:         p.Amount,
		Currency:       p.Currency,
		Status:         string(p.Status),
		GatewayReceipt: p.GatewayReceipt,
		StatusMessage:  p.StatusMessage,
		Metadata:       p.Metadata,
		InitiatedAt:    p.InitiatedAt,
		ProcessedAt:    p.ProcessedAt,
		CompletedAt:    p.CompletedAt,
		FailedAt:       p.FailedAt,
	}
	if p.CampaignID != nil {
		resp.CampaignID = p.CampaignID.String()
	}
	return resp
}

func (s *Server) CreatePayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	advertiserID, err := parseID(req.AdvertiserID)
	if err != nil {
		AbortWithError(c, paymentdomain.ErrAdvertiserNotFound)
		return
	}
	var campaignID *snowflake.ID
	if strings.TrimSpace(req.CampaignID) != "" {
		id, err := parseID(req.CampaignID)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		campaignID = &id
	}

	payment, err := s.paymentSvc.Initiate(c.Request.Context(), paymentdomain.InitiateRequest{
		AdvertiserID: advertiserID,
		CampaignID:   campaignID,
		Amount:       req.Amount,
		Currency:     req.Currency,
		Phone:        req.Phone,
		Description:  req.Description,
		Metadata:     req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toPaymentResponse(payment))
}

func (s *Server) GetPayment(c *gin.Context) {
	payment, err := s.paymentSvc.GetByReference(c.Request.Context(), c.Param("reference"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaymentResponse(payment))
}

func (s *Server) ListPayments(c *gin.Context) {
	advertiserID, err := parseID(c.Query("advertiser_id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	limit := 50
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 200 {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		limit = parsed
	}

	payments, err := s.paymentSvc.ListByAdvertiser(c.Request.Context(), advertiserID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]paymentResponse, 0, len(payments))
	for i := range payments {
		out = append(out, toPaymentResponse(&payments[i]))
	}
	c.JSON(http.StatusOK, gin.H{"payments": out})
}

func parseID(raw string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(raw))
}
