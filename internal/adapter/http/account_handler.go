package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/pecorino-jp/ledger/internal/domain"
	"github.com/pecorino-jp/ledger/internal/usecase/account"
)

// AccountHandler serves the account endpoints.
type AccountHandler struct {
	service  *account.Service
	accounts domain.AccountRepository
}

func NewAccountHandler(service *account.Service, accounts domain.AccountRepository) *AccountHandler {
	return &AccountHandler{service: service, accounts: accounts}
}

type OpenAccountRequest struct {
	Name           string          `json:"name"`
	AccountType    string          `json:"accountType"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
}

func (h *AccountHandler) Open(c *gin.Context) {
	var req OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	opened, err := h.service.Open(c.Request.Context(), account.OpenInput{
		Name:           req.Name,
		AccountType:    req.AccountType,
		InitialBalance: req.InitialBalance,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, opened)
}

func (h *AccountHandler) Close(c *gin.Context) {
	if err := h.service.Close(c.Request.Context(), c.Param("accountNumber")); err != nil {
		respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AccountHandler) Get(c *gin.Context) {
	found, err := h.accounts.FindByAccountNumber(c.Request.Context(), c.Param("accountNumber"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

type SearchAccountsResponse struct {
	Accounts   []*domain.Account `json:"accounts"`
	TotalCount int64             `json:"totalCount"`
}

func (h *AccountHandler) Search(c *gin.Context) {
	conditions := domain.AccountSearchConditions{
		AccountType: c.Query("accountType"),
		Name:        c.Query("name"),
		Limit:       intQuery(c, "limit", 50),
		Offset:      intQuery(c, "offset", 0),
	}
	if numbers, ok := c.GetQueryArray("accountNumber"); ok {
		conditions.AccountNumbers = numbers
	}
	if statuses, ok := c.GetQueryArray("status"); ok {
		for _, status := range statuses {
			conditions.Statuses = append(conditions.Statuses, domain.AccountStatus(status))
		}
	}

	results, err := h.accounts.Search(c.Request.Context(), conditions)
	if err != nil {
		respondWithError(c, err)
		return
	}
	total, err := h.accounts.Count(c.Request.Context(), conditions)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, SearchAccountsResponse{Accounts: results, TotalCount: total})
}
