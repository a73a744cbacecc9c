package server

import (
	"net/http"
	"strconv"
	"strings"

	advertiserdomain "github.com/Alecckie/randa-web-sub001/internal/advertiser/domain"
	"github.com/gin-gonic/gin"
)

type createAdvertiserRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required"`
	Phone string `json:"phone"`
}

func (s *Server) CreateAdvertiser(c *gin.Context) {
	var req createAdvertiserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	advertiser, err := s.advertiserSvc.Create(c.Request.Context(), advertiserdomain.CreateAdvertiserRequest{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, advertiser)
}

func (s *Server) GetAdvertiser(c *gin.Context) {
	advertiser, err := s.advertiserSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, advertiser)
}

func (s *Server) ListAdvertisers(c *gin.Context) {
	limit := 50
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 200 {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		limit = parsed
	}

	advertisers, err := s.advertiserSvc.List(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"advertisers": advertisers})
}
