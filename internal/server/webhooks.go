package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/Alecckie/randa-web-sub001/internal/gateway/daraja"
	paymentdomain "github.com/Alecckie/randa-web-sub001/internal/payment/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HandleDarajaCallback always acknowledges: the provider retries on
// non-2xx, and a malformed or unattributed notification will never parse
// better on redelivery. The poller remains the safety net.
func (s *Server) HandleDarajaCallback(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusOK, daraja.AckBody())
		return
	}

	notice := daraja.ParseCallback(payload)
	err = s.paymentSvc.HandleCallback(c.Request.Context(), paymentdomain.CallbackInput{
		CorrelationToken: notice.CorrelationToken,
		Outcome:          notice.Outcome,
		Code:             notice.Code,
		Receipt:          notice.Receipt,
		Message:          notice.Message,
	})
	if err != nil && !errors.Is(err, paymentdomain.ErrUnattributedCallback) {
		s.log.Error("callback processing failed",
			zap.String("correlation_token", notice.CorrelationToken),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusOK, daraja.AckBody())
}
