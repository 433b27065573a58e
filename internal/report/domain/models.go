package domain

import (
	"github.com/bwmarrin/snowflake"
)

type AccountLine struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Balance Amount `json:"balance"`
}

type Section struct {
	Accounts []AccountLine `json:"accounts"`
	Total    Amount        `json:"total"`
}

type BalanceSheet struct {
	Company                   string  `json:"company"`
	Currency                  string  `json:"currency"`
	AsOfDate                  string  `json:"as_of_date"`
	Assets                    Section `json:"assets"`
	Liabilities               Section `json:"liabilities"`
	Equity                    Section `json:"equity"`
	TotalLiabilitiesAndEquity Amount  `json:"total_liabilities_and_equity"`
}

type IncomeStatement struct {
	Company   string  `json:"company"`
	Currency  string  `json:"currency"`
	Period    string  `json:"period"`
	Revenue   Section `json:"revenue"`
	Expenses  Section `json:"expenses"`
	NetIncome Amount  `json:"net_income"`
}

type TrialBalanceLine struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Debit  Amount `json:"debit"`
	Credit Amount `json:"credit"`
}

type TrialBalance struct {
	Company     string             `json:"company"`
	Currency    string             `json:"currency"`
	AsOfDate    string             `json:"as_of_date"`
	Accounts    []TrialBalanceLine `json:"accounts"`
	TotalDebit  Amount             `json:"total_debit"`
	TotalCredit Amount             `json:"total_credit"`
}

type DashboardCompany struct {
	ID          snowflake.ID `json:"id"`
	Name        string       `json:"name"`
	Assets      Amount       `json:"assets"`
	Liabilities Amount       `json:"liabilities"`
	Equity      Amount       `json:"equity"`
	Revenue     Amount       `json:"revenue"`
	Expenses    Amount       `json:"expenses"`
	NetIncome   Amount       `json:"net_income"`
}

type Dashboard struct {
	TotalAssets      Amount             `json:"total_assets"`
	TotalLiabilities Amount             `json:"total_liabilities"`
	NetIncome        Amount             `json:"net_income"`
	Companies        []DashboardCompany `json:"companies"`
}
