package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	reportdomain "github.com/smallbiznis/bookkeeper/internal/report/domain"
	"github.com/smallbiznis/bookkeeper/internal/report/render"
)

const (
	reportFormatJSON = "json"
	reportFormatPDF  = "pdf"
)

func reportFormat(c *gin.Context) (string, error) {
	format := strings.ToLower(strings.TrimSpace(c.Query("format")))
	switch format {
	case "", reportFormatJSON:
		return reportFormatJSON, nil
	case reportFormatPDF:
		return reportFormatPDF, nil
	default:
		return "", newValidationError("format", "invalid_format", "format must be json or pdf")
	}
}

func reportDate(c *gin.Context, name string) (*time.Time, error) {
	parsed, err := parseOptionalDate(c.Query(name))
	if err != nil {
		return nil, newValidationError(name, "invalid_"+name, name+" must be YYYY-MM-DD")
	}
	return parsed, nil
}

func (s *Server) GetBalanceSheet(c *gin.Context) {
	companyID, format, ok := s.reportParams(c)
	if !ok {
		return
	}
	asOf, err := reportDate(c, "as_of_date")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.reportSvc.BalanceSheet(c.Request.Context(), companyID, asOf)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordReport(c, reportdomain.ReportBalanceSheet, format)

	if format == reportFormatPDF {
		doc, err := s.renderer.BalanceSheet(c.Request.Context(), resp)
		s.writePDF(c, "balance-sheet", resp.AsOfDate, doc, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetIncomeStatement(c *gin.Context) {
	companyID, format, ok := s.reportParams(c)
	if !ok {
		return
	}
	start, err := reportDate(c, "start_date")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	end, err := reportDate(c, "end_date")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.reportSvc.IncomeStatement(c.Request.Context(), companyID, start, end)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordReport(c, reportdomain.ReportIncomeStatement, format)

	if format == reportFormatPDF {
		doc, err := s.renderer.IncomeStatement(c.Request.Context(), resp)
		s.writePDF(c, "income-statement", strings.ReplaceAll(resp.Period, " ", ""), doc, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTrialBalance(c *gin.Context) {
	companyID, format, ok := s.reportParams(c)
	if !ok {
		return
	}
	asOf, err := reportDate(c, "as_of_date")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.reportSvc.TrialBalance(c.Request.Context(), companyID, asOf)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordReport(c, reportdomain.ReportTrialBalance, format)

	if format == reportFormatPDF {
		doc, err := s.renderer.TrialBalance(c.Request.Context(), resp)
		s.writePDF(c, "trial-balance", resp.AsOfDate, doc, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetDashboard(c *gin.Context) {
	resp, err := s.reportSvc.Dashboard(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordReport(c, reportdomain.ReportDashboard, reportFormatJSON)

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) reportParams(c *gin.Context) (snowflake.ID, string, bool) {
	companyID, err := pathID(c, "company_id")
	if err != nil {
		AbortWithError(c, err)
		return 0, "", false
	}
	bindCompany(c, companyID)

	format, err := reportFormat(c)
	if err != nil {
		AbortWithError(c, err)
		return 0, "", false
	}
	return companyID, format, true
}

func (s *Server) recordReport(c *gin.Context, report, format string) {
	if s.obsMetrics == nil {
		return
	}
	s.obsMetrics.RecordReport(c.Request.Context(), report, format)
}

func (s *Server) writePDF(c *gin.Context, name, suffix string, doc []byte, err error) {
	if err != nil {
		AbortWithError(c, fmt.Errorf("render %s: %w", name, err))
		return
	}
	filename := fmt.Sprintf("%s-%s.pdf", name, suffix)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, render.ContentTypePDF, doc)
}
