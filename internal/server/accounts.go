package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	accountdomain "github.com/smallbiznis/bookkeeper/internal/account/domain"
)

type accountRequest struct {
	CompanyID string  `json:"company_id"`
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	ParentID  *string `json:"parent_id"`
	IsActive  *bool   `json:"is_active"`
}

func (r accountRequest) ids() (snowflake.ID, *snowflake.ID, error) {
	var companyID snowflake.ID
	if strings.TrimSpace(r.CompanyID) != "" {
		parsed, err := parseOptionalSnowflakeID(r.CompanyID)
		if err != nil {
			return 0, nil, newValidationError("company_id", "invalid_company_id", "invalid company_id")
		}
		companyID = *parsed
	}

	var parentID *snowflake.ID
	if r.ParentID != nil {
		parsed, err := parseOptionalSnowflakeID(*r.ParentID)
		if err != nil {
			return 0, nil, newValidationError("parent_id", "invalid_parent_id", "invalid parent_id")
		}
		parentID = parsed
	}
	return companyID, parentID, nil
}

func (s *Server) CreateAccount(c *gin.Context) {
	var req accountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	companyID, parentID, err := req.ids()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	bindCompany(c, companyID)

	resp, err := s.accountSvc.Create(c.Request.Context(), accountdomain.CreateAccountRequest{
		CompanyID: companyID,
		Code:      req.Code,
		Name:      req.Name,
		Type:      req.Type,
		ParentID:  parentID,
		IsActive:  req.IsActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListAccounts(c *gin.Context) {
	companyID, err := parseOptionalSnowflakeID(c.Query("company_id"))
	if err != nil || companyID == nil {
		AbortWithError(c, newValidationError("company_id", "invalid_company_id", "company_id is required"))
		return
	}
	bindCompany(c, *companyID)

	isActive, err := parseOptionalBool(c.Query("is_active"))
	if err != nil {
		AbortWithError(c, newValidationError("is_active", "invalid_is_active", "invalid is_active"))
		return
	}

	skip, limit, err := parseSkipLimit(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.accountSvc.List(c.Request.Context(), accountdomain.ListAccountRequest{
		CompanyID: *companyID,
		Type:      strings.TrimSpace(c.Query("type")),
		IsActive:  isActive,
		Skip:      skip,
		Limit:     limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetAccountByID(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.accountSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	bindCompany(c, resp.CompanyID)

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateAccount(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req accountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	companyID, parentID, err := req.ids()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	bindCompany(c, companyID)

	resp, err := s.accountSvc.Update(c.Request.Context(), accountdomain.UpdateAccountRequest{
		ID:        id,
		CompanyID: companyID,
		Code:      req.Code,
		Name:      req.Name,
		Type:      req.Type,
		ParentID:  parentID,
		IsActive:  req.IsActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
