package domain

// Columns is the ordered column list of the companies table. Values returns
// a Company's fields in the same order.
var Columns = []string{
	"company_number",
	"name",
	"address_line_1",
	"address_line_2",
	"post_town",
	"county",
	"country",
	"postcode",
	"category",
	"status",
	"incorporation_date",
	"dissolution_date",
	"sic_codes",
	"accounts_ref_day",
	"accounts_ref_month",
	"accounts_next_due_date",
	"accounts_last_made_up_date",
	"accounts_category",
}

// KeyColumn is the natural key of the companies table.
const KeyColumn = "company_number"

// Values returns the Company's fields aligned to Columns. sicCodes is the
// backend-specific encoding of SICCodes (array, JSON text or nil).
func (c Company) Values(sicCodes any) []any {
	return []any{
		c.CompanyNumber,
		c.Name,
		c.AddressLine1,
		c.AddressLine2,
		c.PostTown,
		c.County,
		c.Country,
		c.Postcode,
		c.Category,
		c.Status,
		c.IncorporationDate,
		c.DissolutionDate,
		sicCodes,
		c.AccountsRefDay,
		c.AccountsRefMonth,
		c.AccountsNextDueDate,
		c.AccountsLastMadeUpDate,
		c.AccountsCategory,
	}
}
