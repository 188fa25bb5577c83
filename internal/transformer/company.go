package transformer

import "companyload/internal/domain"

// MapCompany builds a Company from a raw record. Unknown or malformed
// values map to nil; CompanyNumber is copied as normalized text and is
// checked separately by IsAdmissible.
func MapCompany(raw domain.RawRecord) domain.Company {
	return domain.Company{
		CompanyNumber: NormalizeText(raw[domain.FieldCompanyNumber]),

		Name:         OptString(raw[domain.FieldCompanyName]),
		AddressLine1: OptString(raw[domain.FieldAddressLine1]),
		AddressLine2: OptString(raw[domain.FieldAddressLine2]),
		PostTown:     OptString(raw[domain.FieldPostTown]),
		County:       OptString(raw[domain.FieldCounty]),
		Country:      OptString(raw[domain.FieldCountry]),
		Postcode:     OptString(raw[domain.FieldPostCode]),

		Category: OptString(raw[domain.FieldCategory]),
		Status:   OptString(raw[domain.FieldStatus]),

		IncorporationDate: ParseDate(raw[domain.FieldIncorporationDate]),
		DissolutionDate:   ParseDate(raw[domain.FieldDissolutionDate]),

		SICCodes: CollectSICCodes(raw),

		AccountsRefDay:         ParseInt(raw[domain.FieldAccountRefDay]),
		AccountsRefMonth:       ParseInt(raw[domain.FieldAccountRefMonth]),
		AccountsNextDueDate:    ParseDate(raw[domain.FieldNextDueDate]),
		AccountsLastMadeUpDate: ParseDate(raw[domain.FieldLastMadeUpDate]),
		AccountsCategory:       OptString(raw[domain.FieldAccountCategory]),
	}
}

// CollectSICCodes gathers the four classification-code fields in order,
// skipping empty ones. It returns nil, not an empty slice, when none are set.
func CollectSICCodes(raw domain.RawRecord) []string {
	var codes []string
	for _, f := range domain.SICFields {
		if v := NormalizeText(raw[f]); v != "" {
			codes = append(codes, v)
		}
	}
	return codes
}
