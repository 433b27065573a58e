package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/bookkeeper/internal/ledger/domain"
)

type journalLineRequest struct {
	AccountID   string          `json:"account_id"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description *string         `json:"description"`
}

type createJournalEntryRequest struct {
	CompanyID   string               `json:"company_id"`
	Date        string               `json:"date"`
	Description string               `json:"description"`
	Reference   *string              `json:"reference"`
	Lines       []journalLineRequest `json:"lines"`
}

func (s *Server) CreateJournalEntry(c *gin.Context) {
	var req createJournalEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	companyID, err := parseOptionalSnowflakeID(req.CompanyID)
	if err != nil || companyID == nil {
		AbortWithError(c, newValidationError("company_id", "invalid_company_id", "company_id is required"))
		return
	}
	bindCompany(c, *companyID)

	date, err := parseOptionalDate(req.Date)
	if err != nil || date == nil {
		AbortWithError(c, newValidationError("date", "invalid_date", "date must be YYYY-MM-DD"))
		return
	}

	lines := make([]ledgerdomain.LineDraft, 0, len(req.Lines))
	for _, line := range req.Lines {
		accountID, err := parseOptionalSnowflakeID(line.AccountID)
		if err != nil || accountID == nil {
			AbortWithError(c, newValidationError("account_id", "invalid_account_id", "invalid account_id"))
			return
		}
		lines = append(lines, ledgerdomain.LineDraft{
			AccountID:   *accountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}

	draft := ledgerdomain.EntryDraft{
		CompanyID:   *companyID,
		Date:        *date,
		Description: strings.TrimSpace(req.Description),
		Reference:   req.Reference,
		Lines:       lines,
	}
	if user, ok := currentUser(c); ok {
		createdBy := user.ID
		draft.CreatedBy = &createdBy
	}

	resp, err := s.ledgerSvc.CreateEntry(c.Request.Context(), draft)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListJournalEntries(c *gin.Context) {
	companyID, err := parseOptionalSnowflakeID(c.Query("company_id"))
	if err != nil {
		AbortWithError(c, newValidationError("company_id", "invalid_company_id", "invalid company_id"))
		return
	}
	if companyID != nil {
		bindCompany(c, *companyID)
	}

	skip, limit, err := parseSkipLimit(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.ledgerSvc.ListEntries(c.Request.Context(), ledgerdomain.ListEntriesRequest{
		CompanyID: companyID,
		Skip:      skip,
		Limit:     limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetJournalEntryByID(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.ledgerSvc.GetEntry(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	bindCompany(c, resp.CompanyID)

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteJournalEntry(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.ledgerSvc.DeleteEntry(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id.String(), "deleted": true}})
}
