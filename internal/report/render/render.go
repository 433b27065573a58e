package render

import (
	"context"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/smallbiznis/bookkeeper/internal/report/domain"
)

const ContentTypePDF = "application/pdf"

// Renderer exports financial statements as PDF documents.
type Renderer interface {
	BalanceSheet(ctx context.Context, report *domain.BalanceSheet) ([]byte, error)
	IncomeStatement(ctx context.Context, report *domain.IncomeStatement) ([]byte, error)
	TrialBalance(ctx context.Context, report *domain.TrialBalance) ([]byte, error)
}

type PDFRenderer struct{}

func New() Renderer {
	return &PDFRenderer{}
}

func (r *PDFRenderer) BalanceSheet(ctx context.Context, report *domain.BalanceSheet) ([]byte, error) {
	m := newDocument()
	addTitle(m, report.Company, "Balance Sheet", "As of "+report.AsOfDate)

	addSection(m, "Assets", report.Assets, report.Currency)
	addSection(m, "Liabilities", report.Liabilities, report.Currency)
	addSection(m, "Equity", report.Equity, report.Currency)
	addTotal(m, "Total liabilities and equity", report.TotalLiabilitiesAndEquity, report.Currency)

	return generate(m)
}

func (r *PDFRenderer) IncomeStatement(ctx context.Context, report *domain.IncomeStatement) ([]byte, error) {
	m := newDocument()
	addTitle(m, report.Company, "Income Statement", report.Period)

	addSection(m, "Revenue", report.Revenue, report.Currency)
	addSection(m, "Expenses", report.Expenses, report.Currency)
	addTotal(m, "Net income", report.NetIncome, report.Currency)

	return generate(m)
}

func (r *PDFRenderer) TrialBalance(ctx context.Context, report *domain.TrialBalance) ([]byte, error) {
	m := newDocument()
	addTitle(m, report.Company, "Trial Balance", "As of "+report.AsOfDate)

	m.AddRow(10,
		text.NewCol(2, "Code", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(4, "Account", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Type", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Debit", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Credit", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	for _, line := range report.Accounts {
		m.AddRow(8,
			text.NewCol(2, line.Code, props.Text{Size: 9}),
			text.NewCol(4, line.Name, props.Text{Size: 9}),
			text.NewCol(2, line.Type, props.Text{Size: 9}),
			text.NewCol(2, formatNonZero(line.Debit, report.Currency), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, formatNonZero(line.Credit, report.Currency), props.Text{Size: 9, Align: align.Right}),
		)
	}
	m.AddRow(10,
		col.New(6),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 9, Top: 2}),
		text.NewCol(2, FormatAmount(report.TotalDebit, report.Currency), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Top: 2}),
		text.NewCol(2, FormatAmount(report.TotalCredit, report.Currency), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Top: 2}),
	)

	return generate(m)
}

func newDocument() core.Maroto {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
	return maroto.New(cfg)
}

func addTitle(m core.Maroto, company, title, subtitle string) {
	m.AddRow(10,
		text.NewCol(12, company, props.Text{
			Size:  16,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)
	m.AddRow(8,
		text.NewCol(12, title, props.Text{
			Size:  13,
			Style: fontstyle.Bold,
		}),
	)
	m.AddRow(12,
		text.NewCol(12, subtitle, props.Text{Size: 9}),
	)
}

func addSection(m core.Maroto, heading string, section domain.Section, currency string) {
	m.AddRow(9,
		text.NewCol(12, heading, props.Text{Style: fontstyle.Bold, Size: 11, Top: 2}),
	)
	for _, row := range section.Accounts {
		m.AddRow(7,
			text.NewCol(2, row.Code, props.Text{Size: 9}),
			text.NewCol(7, row.Name, props.Text{Size: 9}),
			text.NewCol(3, FormatAmount(row.Balance, currency), props.Text{Size: 9, Align: align.Right}),
		)
	}
	m.AddRow(8,
		col.New(2),
		text.NewCol(7, "Total "+heading, props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, FormatAmount(section.Total, currency), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
}

func addTotal(m core.Maroto, label string, amount domain.Amount, currency string) {
	m.AddRow(12,
		col.New(2),
		text.NewCol(7, label, props.Text{Style: fontstyle.Bold, Size: 10, Top: 3}),
		text.NewCol(3, FormatAmount(amount, currency), props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right, Top: 3}),
	)
}

func generate(m core.Maroto) ([]byte, error) {
	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func formatNonZero(amount domain.Amount, currency string) string {
	if amount.Decimal().IsZero() {
		return ""
	}
	return FormatAmount(amount, currency)
}
