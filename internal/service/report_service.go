package service

import (
	"context"

	"shopmart/internal/repository"
)

// ReportProductLine aggregates one product's sales within a day
type ReportProductLine struct {
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// ReportDay is the sales of one calendar day
type ReportDay struct {
	Date     string               `json:"date"`
	Products []*ReportProductLine `json:"products"`
	Quantity int                  `json:"quantity"`
	Profit   float64              `json:"profit"`
}

// SalesReport is the full purchase history grouped by day, newest first
type SalesReport struct {
	Days          []*ReportDay `json:"days"`
	TotalQuantity int          `json:"total_quantity"`
	TotalProfit   float64      `json:"total_profit"`
}

// ReportService defines the interface for sales reporting
type ReportService interface {
	SalesReport(ctx context.Context) (*SalesReport, error)
}

type reportService struct {
	purchaseRepo repository.PurchaseRepository
}

// NewReportService creates a new instance of ReportService
func NewReportService(purchaseRepo repository.PurchaseRepository) ReportService {
	return &reportService{purchaseRepo: purchaseRepo}
}

// SalesReport builds the day-by-day sales aggregation. Rows arrive
// ordered newest first, so days come out in that order too.
func (s *reportService) SalesReport(ctx context.Context) (*SalesReport, error) {
	rows, err := s.purchaseRepo.ReportRows(ctx)
	if err != nil {
		return nil, err
	}

	report := &SalesReport{Days: []*ReportDay{}}
	var (
		day      *ReportDay
		products map[string]*ReportProductLine
	)

	for _, row := range rows {
		date := row.PurchaseDate.Format("2006-01-02")

		if day == nil || day.Date != date {
			day = &ReportDay{Date: date, Products: []*ReportProductLine{}}
			products = map[string]*ReportProductLine{}
			report.Days = append(report.Days, day)
		}

		line, ok := products[row.ProductTitle]
		if !ok {
			line = &ReportProductLine{
				Title: row.ProductTitle,
				Price: row.ProductPrice,
			}
			products[row.ProductTitle] = line
			day.Products = append(day.Products, line)
		}
		line.Quantity += row.Qty

		day.Quantity += row.Qty
		day.Profit += row.ProductPrice * float64(row.Qty)
		report.TotalQuantity += row.Qty
		report.TotalProfit += row.ProductPrice * float64(row.Qty)
	}

	return report, nil
}
