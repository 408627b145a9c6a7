package domain

import "github.com/shopspring/decimal"

type Property struct {
	ID                  string
	Name                string
	Location            string
	TotalValue          decimal.Decimal
	TokenPrice          decimal.Decimal
	TokensAvailable     int
	MonthlyRentPerToken decimal.Decimal
	AnnualYield         decimal.Decimal
	Description         string
	ImageURL            string
}
