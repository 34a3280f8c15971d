package http

import (
	"net/http"

	"camrelay/internal/core/ports"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AccountHandler struct {
	accounts ports.AccountService
	logger   *zap.SugaredLogger
}

func NewAccountHandler(accounts ports.AccountService, logger *zap.SugaredLogger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

// Delete removes the caller's cameras, sessions and links.
func (h *AccountHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.accounts.DeleteAccount(c.Request.Context(), userID); err != nil {
		_ = c.Error(err)
		return
	}
	h.logger.Infow("account data deleted", "user_id", userID)
	c.Status(http.StatusNoContent)
}
