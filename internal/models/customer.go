package models

import (
	"errors"

	"github.com/uptrace/bun"
)

// Customer is the parent row of the normalized schema. All dependent tables
// reference customer_id and cascade-delete with it.
type Customer struct {
	bun.BaseModel `bun:"table:customers,alias:cu"`

	CustomerID string `bun:"customer_id,pk" json:"customer_id"`
	FirstName  string `bun:"first_name,notnull" json:"first_name"`
	LastName   string `bun:"last_name,notnull" json:"last_name"`
	City       string `bun:"city,notnull" json:"city"`
	Country    string `bun:"country,notnull" json:"country"`
	Email      string `bun:"email,unique,notnull" json:"email"`

	Contacts      []*Contact         `bun:"rel:has-many,join:customer_id=customer_id" json:"contacts,omitempty"`
	Subscriptions []*Subscription    `bun:"rel:has-many,join:customer_id=customer_id" json:"subscriptions,omitempty"`
	Websites      []*Website         `bun:"rel:has-many,join:customer_id=customer_id" json:"websites,omitempty"`
	CompanyLinks  []*CustomerCompany `bun:"rel:has-many,join:customer_id=customer_id" json:"company_links,omitempty"`
}

// Validate checks that required customer fields are present.
func (c *Customer) Validate() error {
	if c.CustomerID == "" {
		return errors.New("customer id is required")
	}
	if c.Email == "" {
		return errors.New("email is required")
	}
	return nil
}

// Contact holds one phone number for a customer. A customer has zero, one or
// two contact rows depending on how many phone fields were present in the
// source.
type Contact struct {
	bun.BaseModel `bun:"table:contacts,alias:co"`

	ContactID   int64  `bun:"contact_id,pk,autoincrement" json:"contact_id"`
	CustomerID  string `bun:"customer_id,notnull,unique:uq_contact_customer_phone" json:"customer_id"`
	PhoneNumber string `bun:"phone_number,notnull,unique:uq_contact_customer_phone" json:"phone_number"`

	Customer *Customer `bun:"rel:belongs-to,join:customer_id=customer_id" json:"-"`
}

// Subscription holds the normalized subscription date, at most one per
// customer.
type Subscription struct {
	bun.BaseModel `bun:"table:subscriptions,alias:su"`

	SubscriptionID   int64  `bun:"subscription_id,pk,autoincrement" json:"subscription_id"`
	CustomerID       string `bun:"customer_id,notnull,unique" json:"customer_id"`
	SubscriptionDate string `bun:"subscription_date,notnull" json:"subscription_date"`

	Customer *Customer `bun:"rel:belongs-to,join:customer_id=customer_id" json:"-"`
}

// Company is keyed by a surrogate id; company_name is the natural key.
type Company struct {
	bun.BaseModel `bun:"table:companies,alias:cm"`

	CompanyID   int64  `bun:"company_id,pk,autoincrement" json:"company_id"`
	CompanyName string `bun:"company_name,unique,notnull" json:"company_name"`
}

// CustomerCompany links a customer to a company.
type CustomerCompany struct {
	bun.BaseModel `bun:"table:customer_companies,alias:cc"`

	CustomerID string `bun:"customer_id,pk" json:"customer_id"`
	CompanyID  int64  `bun:"company_id,pk" json:"company_id"`
}

// Website holds a customer's website URL, at most one per customer.
type Website struct {
	bun.BaseModel `bun:"table:websites,alias:we"`

	WebsiteID  int64  `bun:"website_id,pk,autoincrement" json:"website_id"`
	CustomerID string `bun:"customer_id,notnull,unique" json:"customer_id"`
	WebsiteURL string `bun:"website_url,notnull" json:"website_url"`

	Customer *Customer `bun:"rel:belongs-to,join:customer_id=customer_id" json:"-"`
}
