// Package models defines the product record and its month-keyed price series.
package models

import (
	"go.mongodb.org/mongo-driver/bson"
)

// Unknown is the sentinel stored for descriptive attributes the vendor
// did not supply.
const Unknown = "-"

// PlaceholderImage substitutes for products the vendor ships without images.
var PlaceholderImage = map[string]string{
	"thumbnail": "https://bilder.vinmonopolet.no/bottle.png",
	"product":   "https://bilder.vinmonopolet.no/bottle.png",
}

// Product is one vendor listing, identified by its vendor product code.
// Field names mirror the stored document keys used by the dashboard.
type Product struct {
	Index int `bson:"index" json:"index"`

	Name        string `bson:"navn" json:"navn"`
	Country     string `bson:"land" json:"land"`
	District    string `bson:"distrikt" json:"distrikt"`
	SubDistrict string `bson:"underdistrikt" json:"underdistrikt"`
	Category    string `bson:"kategori" json:"kategori"`
	SubCategory string `bson:"underkategori" json:"underkategori"`

	// Volume is the bottle volume in centiliters, 0 when unknown.
	Volume float64 `bson:"volum" json:"volum"`
	// Alcohol is the alcohol percentage, populated by the detail pass and
	// read back from storage during derivation. 0 when unknown.
	Alcohol float64 `bson:"alkohol" json:"alkohol"`

	Status    string `bson:"status" json:"status"`
	Buyable   bool   `bson:"kan kjøpes" json:"kan kjøpes"`
	Expired   bool   `bson:"utgått" json:"utgått"`
	Orderable bool   `bson:"tilgjengelig for bestilling" json:"tilgjengelig for bestilling"`
	OrderInfo string `bson:"bestillingsinformasjon" json:"bestillingsinformasjon"`
	InStores  bool   `bson:"tilgjengelig i butikk" json:"tilgjengelig i butikk"`
	StoreInfo string `bson:"butikkinformasjon" json:"butikkinformasjon"`

	URL         string            `bson:"url" json:"url"`
	Selection   string            `bson:"produktutvalg" json:"produktutvalg"`
	Sustainable bool              `bson:"bærekraftig" json:"bærekraftig"`
	Images      map[string]string `bson:"bilde" json:"bilde"`

	// Prices holds the month-keyed price series. It is flattened into
	// top-level "pris YYYY-MM-01" document fields by Patch; a fresh scrape
	// carries exactly one entry, the current month's observation.
	Prices PriceSeries `bson:"-" json:"-"`
}

// Patch flattens the product into a document patch suitable for an atomic
// $set upsert. Past months' price keys are never part of the patch, so the
// stored series grows by key union only.
func (p *Product) Patch() bson.M {
	patch := bson.M{
		"index":                       p.Index,
		"navn":                        p.Name,
		"land":                        p.Country,
		"distrikt":                    p.District,
		"underdistrikt":               p.SubDistrict,
		"kategori":                    p.Category,
		"underkategori":               p.SubCategory,
		"volum":                       p.Volume,
		"status":                      p.Status,
		"kan kjøpes":                  p.Buyable,
		"utgått":                      p.Expired,
		"tilgjengelig for bestilling": p.Orderable,
		"bestillingsinformasjon":      p.OrderInfo,
		"tilgjengelig i butikk":       p.InStores,
		"butikkinformasjon":           p.StoreInfo,
		"url":                         p.URL,
		"produktutvalg":               p.Selection,
		"bærekraftig":                 p.Sustainable,
		"bilde":                       p.Images,
	}
	for month, value := range p.Prices {
		patch[month.Key()] = value
	}
	return patch
}

// WriteSummary reports the outcome of a bulk reconciliation write.
type WriteSummary struct {
	Matched  int64
	Inserted int64
}

// Add accumulates another summary into s.
func (s *WriteSummary) Add(other WriteSummary) {
	s.Matched += other.Matched
	s.Inserted += other.Inserted
}

// RunResult summarises one full scrape run across all categories.
type RunResult struct {
	Categories       int
	FailedCategories []Category
	SkippedPages     int
	Products         int64
	Writes           WriteSummary
	Derived          WriteSummary
	Archived         int64
}
