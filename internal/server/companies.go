package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	companydomain "github.com/smallbiznis/bookkeeper/internal/company/domain"
)

type createCompanyRequest struct {
	Name            string `json:"name"`
	Code            string `json:"code"`
	FiscalYearStart string `json:"fiscal_year_start"`
	Currency        string `json:"currency"`
	ChartTemplate   string `json:"chart_template"`
}

type updateCompanyRequest struct {
	Name            *string `json:"name"`
	Currency        *string `json:"currency"`
	FiscalYearStart *string `json:"fiscal_year_start"`
}

func (s *Server) CreateCompany(c *gin.Context) {
	var req createCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	fiscalYearStart, err := parseOptionalDate(req.FiscalYearStart)
	if err != nil {
		AbortWithError(c, newValidationError("fiscal_year_start", "invalid_fiscal_year_start", "fiscal_year_start must be YYYY-MM-DD"))
		return
	}

	resp, err := s.companySvc.Create(c.Request.Context(), companydomain.CreateCompanyRequest{
		Name:            strings.TrimSpace(req.Name),
		Code:            strings.TrimSpace(req.Code),
		FiscalYearStart: fiscalYearStart,
		Currency:        strings.TrimSpace(req.Currency),
		ChartTemplate:   strings.TrimSpace(req.ChartTemplate),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	bindCompany(c, resp.ID)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCompanies(c *gin.Context) {
	skip, limit, err := parseSkipLimit(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.companySvc.List(c.Request.Context(), companydomain.ListCompanyRequest{
		Skip:  skip,
		Limit: limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCompanyByID(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	bindCompany(c, id)

	resp, err := s.companySvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateCompany(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	bindCompany(c, id)

	var req updateCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	update := companydomain.UpdateCompanyRequest{
		ID:       id,
		Name:     req.Name,
		Currency: req.Currency,
	}
	if req.FiscalYearStart != nil {
		fiscalYearStart, err := parseOptionalDate(*req.FiscalYearStart)
		if err != nil || fiscalYearStart == nil {
			AbortWithError(c, newValidationError("fiscal_year_start", "invalid_fiscal_year_start", "fiscal_year_start must be YYYY-MM-DD"))
			return
		}
		update.FiscalYearStart = fiscalYearStart
	}

	resp, err := s.companySvc.Update(c.Request.Context(), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
