package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bookkeeper/internal/config"
)

// AccountsFromTemplate builds the accounts of a chart template for one
// company. Parent codes resolve against accounts earlier in the template.
func AccountsFromTemplate(companyID snowflake.ID, tmpl config.ChartTemplate, genID *snowflake.Node, now time.Time) ([]Account, error) {
	byCode := make(map[string]snowflake.ID, len(tmpl.Accounts))
	accounts := make([]Account, 0, len(tmpl.Accounts))
	for _, item := range tmpl.Accounts {
		accountType, ok := ParseAccountType(item.Type)
		if !ok {
			return nil, ErrInvalidType
		}
		account := Account{
			ID:        genID.Generate(),
			CompanyID: companyID,
			Code:      item.Code,
			Name:      item.Name,
			Type:      accountType,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if item.Parent != "" {
			parentID, ok := byCode[item.Parent]
			if !ok {
				return nil, ErrParentNotFound
			}
			account.ParentID = &parentID
		}
		byCode[item.Code] = account.ID
		accounts = append(accounts, account)
	}
	return accounts, nil
}
