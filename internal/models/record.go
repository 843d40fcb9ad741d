package models

// Sentinel is the placeholder substituted for any source field that is
// missing or empty after trimming.
const Sentinel = "N/A"

// Source CSV column names. The extractor depends on these as a fixed
// contract with the upstream dataset.
const (
	ColCustomerID       = "Customer Id"
	ColFirstName        = "First Name"
	ColLastName         = "Last Name"
	ColCompany          = "Company"
	ColCity             = "City"
	ColCountry          = "Country"
	ColPhone1           = "Phone 1"
	ColPhone2           = "Phone 2"
	ColEmail            = "Email"
	ColSubscriptionDate = "Subscription Date"
	ColWebsite          = "Website"
)

// Columns lists the source columns consumed downstream, in source order.
var Columns = []string{
	ColCustomerID,
	ColFirstName,
	ColLastName,
	ColCompany,
	ColCity,
	ColCountry,
	ColPhone1,
	ColPhone2,
	ColEmail,
	ColSubscriptionDate,
	ColWebsite,
}

// RawRecord maps a source column name to its string value. Every listed
// column is present; missing or empty values carry the Sentinel. Produced by
// the extractor, consumed once by the transformer.
type RawRecord map[string]string

// Get returns the value for a column, or the Sentinel when the column is
// absent.
func (r RawRecord) Get(column string) string {
	v, ok := r[column]
	if !ok || v == "" {
		return Sentinel
	}
	return v
}

// CleanedRecord is a RawRecord after deduplication, normalization and
// validation. At most one CleanedRecord exists per CustomerID.
type CleanedRecord struct {
	CustomerID       string
	FirstName        string
	LastName         string
	City             string
	Country          string
	Email            string
	Phone1           string
	Phone2           string
	Company          string
	SubscriptionDate string
	Website          string
}

// IsSet reports whether a field value carries real data rather than the
// Sentinel.
func IsSet(v string) bool {
	return v != Sentinel
}

// MissingFields returns the names of fields that still equal the Sentinel.
// Diagnostics only; it never alters the record.
func (c *CleanedRecord) MissingFields() []string {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"first_name", c.FirstName},
		{"last_name", c.LastName},
		{"city", c.City},
		{"country", c.Country},
		{"email", c.Email},
		{"phone1", c.Phone1},
		{"phone2", c.Phone2},
		{"company", c.Company},
		{"subscription_date", c.SubscriptionDate},
		{"website", c.Website},
	} {
		if !IsSet(f.value) {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// Customer converts the cleaned record to its persisted parent row.
func (c *CleanedRecord) Customer() *Customer {
	return &Customer{
		CustomerID: c.CustomerID,
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		City:       c.City,
		Country:    c.Country,
		Email:      c.Email,
	}
}
