package domain

import "time"

// Input header names as published in the company register's bulk CSV.
const (
	FieldCompanyNumber     = "CompanyNumber"
	FieldCompanyName       = "CompanyName"
	FieldAddressLine1      = "RegAddress.AddressLine1"
	FieldAddressLine2      = "RegAddress.AddressLine2"
	FieldPostTown          = "RegAddress.PostTown"
	FieldCounty            = "RegAddress.County"
	FieldCountry           = "RegAddress.Country"
	FieldPostCode          = "RegAddress.PostCode"
	FieldCategory          = "CompanyCategory"
	FieldStatus            = "CompanyStatus"
	FieldIncorporationDate = "IncorporationDate"
	FieldDissolutionDate   = "DissolutionDate"
	FieldSICText1          = "SICCode.SicText_1"
	FieldSICText2          = "SICCode.SicText_2"
	FieldSICText3          = "SICCode.SicText_3"
	FieldSICText4          = "SICCode.SicText_4"
	FieldAccountRefDay     = "Accounts.AccountRefDay"
	FieldAccountRefMonth   = "Accounts.AccountRefMonth"
	FieldNextDueDate       = "Accounts.NextDueDate"
	FieldLastMadeUpDate    = "Accounts.LastMadeUpDate"
	FieldAccountCategory   = "Accounts.AccountCategory"
)

// SICFields lists the classification-code columns in the order they are read.
var SICFields = [4]string{FieldSICText1, FieldSICText2, FieldSICText3, FieldSICText4}

// RawRecord maps header name to the raw cell text of one CSV row.
type RawRecord map[string]string

// Company is the typed row persisted into the companies table. Pointer
// fields are nil when the source value was absent or could not be parsed.
type Company struct {
	CompanyNumber string

	Name         *string
	AddressLine1 *string
	AddressLine2 *string
	PostTown     *string
	County       *string
	Country      *string
	Postcode     *string

	Category *string
	Status   *string

	IncorporationDate *time.Time
	DissolutionDate   *time.Time

	// SICCodes is nil when the row carried no classification codes.
	SICCodes []string

	AccountsRefDay         *int
	AccountsRefMonth       *int
	AccountsNextDueDate    *time.Time
	AccountsLastMadeUpDate *time.Time
	AccountsCategory       *string
}
