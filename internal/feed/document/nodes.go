package document

import "encoding/xml"

// Header is written before the root element.
const Header = `<?xml version="1.0" encoding="utf-8"?>` + "\n"

// Projects is the root of the exported document.
type Projects struct {
	XMLName  xml.Name  `xml:"Projects"`
	Projects []Project `xml:"Project"`
}

type Project struct {
	ID         int64     `xml:"Id,attr"`
	Name       string    `xml:"Name"`
	CategoryID string    `xml:"CategoryId"`
	StatusID   string    `xml:"StatusId"`
	Business   *Business `xml:"Business,omitempty"`
	Contacts   []Contact `xml:"Contacts>Contact"`
	Orders     []Order   `xml:"Orders>Order"`
}

// Business is only present for projects whose latest order names a company.
type Business struct {
	Name      string    `xml:"Name"`
	VatNumber *string   `xml:"VatNumber,omitempty"`
	Addresses []Address `xml:"Addresses>Address"`
	Emails    []Value   `xml:"Emails>Email"`
	Phones    []Value   `xml:"Phones>Phone"`
}

type Address struct {
	CountryID  *string `xml:"CountryId,omitempty"`
	PostalCode string  `xml:"PostalCode"`
	City       string  `xml:"City"`
	Address    string  `xml:"Address"`
}

type Value struct {
	Value string `xml:"Value"`
}

type Contact struct {
	FirstName string  `xml:"FirstName"`
	LastName  string  `xml:"LastName"`
	Emails    []Value `xml:"Emails>Email"`
	Phones    []Value `xml:"Phones>Phone"`
}

type Order struct {
	ID            int64        `xml:"Id,attr"`
	Number        int64        `xml:"Number"`
	CurrencyCode  string       `xml:"CurrencyCode"`
	Language      string       `xml:"Language"`
	Performance   string       `xml:"Performance"`
	Status        string       `xml:"Status"`
	PaymentMethod string       `xml:"PaymentMethod"`
	Customer      Customer     `xml:"Customer"`
	Project       OrderProject `xml:"Project"`
	Products      Products     `xml:"Products"`
}

// Customer always carries every element; unknown values stay empty.
type Customer struct {
	Name       string `xml:"Name"`
	CountryID  string `xml:"CountryId"`
	PostalCode string `xml:"PostalCode"`
	City       string `xml:"City"`
	Address    string `xml:"Address"`
}

// OrderProject holds order level CRM fields. Fields are named at runtime.
type OrderProject struct {
	ShippingMethod string        `xml:"ShippingMethod"`
	Fields         []CustomField `xml:",any"`
}

type CustomField struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// Set assigns a field, overwriting an earlier field of the same name.
func (p *OrderProject) Set(name, value string) {
	if name == "ShippingMethod" {
		p.ShippingMethod = value
		return
	}
	for i := range p.Fields {
		if p.Fields[i].XMLName.Local == name {
			p.Fields[i].Value = value
			return
		}
	}
	p.Fields = append(p.Fields, CustomField{XMLName: xml.Name{Local: name}, Value: value})
}

// Products is always emitted, even when an order has no items.
type Products struct {
	Items []Product `xml:"Product"`
}

type Product struct {
	ID          int64  `xml:"Id,attr"`
	Name        string `xml:"Name"`
	PriceNet    string `xml:"PriceNet"`
	Quantity    int64  `xml:"Quantity"`
	SKU         string `xml:"SKU"`
	Description string `xml:"Description"`
	Unit        string `xml:"Unit"`
	VAT         string `xml:"VAT"`
	FolderName  string `xml:"FolderName"`
}
