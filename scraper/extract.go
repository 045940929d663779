package scraper

import (
	"log/slog"
	"strconv"
	"strings"

	"vinskraper/models"
)

// searchResult mirrors the vendor search payload.
type searchResult struct {
	ProductSearchResult struct {
		Products []RawProduct `json:"products"`
	} `json:"productSearchResult"`
}

type namedValue struct {
	Name string `json:"name"`
}

type priceValue struct {
	Value float64 `json:"value"`
}

type rawImage struct {
	Format string `json:"format"`
	URL    string `json:"url"`
}

type availabilityBranch struct {
	AvailableForPurchase bool `json:"availableForPurchase"`
	Infos                []struct {
		ReadableValue string `json:"readableValue"`
	} `json:"infos"`
}

// RawProduct is one vendor record as returned by the search endpoint.
// Every field is optional; extraction substitutes sentinels for whatever
// is missing.
type RawProduct struct {
	Code             string      `json:"code"`
	Name             string      `json:"name"`
	URL              string      `json:"url"`
	Status           string      `json:"status"`
	Buyable          bool        `json:"buyable"`
	Expired          bool        `json:"expired"`
	Sustainable      bool        `json:"sustainable"`
	ProductSelection string      `json:"product_selection"`
	Price            *priceValue `json:"price"`
	Volume           *priceValue `json:"volume"`
	MainCountry      *namedValue `json:"main_country"`
	District         *namedValue `json:"district"`
	SubDistrict      *namedValue `json:"sub_District"`
	MainCategory     *namedValue `json:"main_category"`
	MainSubCategory  *namedValue `json:"main_sub_category"`
	Images           []rawImage  `json:"images"`

	ProductAvailability *struct {
		DeliveryAvailability *availabilityBranch `json:"deliveryAvailability"`
		StoresAvailability   *availabilityBranch `json:"storesAvailability"`
	} `json:"productAvailability"`
}

// Extractor maps raw vendor records into normalized products. The month
// is fixed at construction so every product in one run shares the same
// price-series key.
type Extractor struct {
	month   models.Month
	metrics *Metrics
}

// NewExtractor builds an extractor stamping prices with the given month.
func NewExtractor(month models.Month, metrics *Metrics) *Extractor {
	return &Extractor{month: month, metrics: metrics}
}

// ExtractAll maps a page of raw records, dropping any record without a
// usable product code. Extraction is total: a missing nested field
// degrades to a sentinel, never an error.
func (e *Extractor) ExtractAll(raws []RawProduct) []*models.Product {
	products := make([]*models.Product, 0, len(raws))
	for _, raw := range raws {
		product, ok := e.Extract(raw)
		if !ok {
			e.metrics.IncSkipped()
			slog.Warn("dropping record without product code", slog.String("name", raw.Name))
			continue
		}
		products = append(products, product)
	}
	e.metrics.AddProducts(len(products))
	return products
}

// Extract maps one raw record. ok is false when the record carries no
// parseable product code.
func (e *Extractor) Extract(raw RawProduct) (*models.Product, bool) {
	code := strings.TrimSpace(raw.Code)
	if code == "" {
		return nil, false
	}
	index, err := strconv.Atoi(code)
	if err != nil {
		return nil, false
	}

	product := &models.Product{
		Index:       index,
		Name:        stringOr(raw.Name),
		Country:     namedOr(raw.MainCountry),
		District:    namedOr(raw.District),
		SubDistrict: namedOr(raw.SubDistrict),
		Category:    namedOr(raw.MainCategory),
		SubCategory: namedOr(raw.MainSubCategory),
		Volume:      valueOr(raw.Volume),
		Status:      stringOr(raw.Status),
		Buyable:     raw.Buyable,
		Expired:     raw.Expired,
		Selection:   stringOr(raw.ProductSelection),
		Sustainable: raw.Sustainable,
		Images:      imageMap(raw.Images),
		Prices: models.PriceSeries{
			e.month: valueOr(raw.Price),
		},
	}

	if raw.URL != "" {
		product.URL = "https://www.vinmonopolet.no" + raw.URL
	} else {
		product.URL = models.Unknown
	}

	if raw.ProductAvailability != nil {
		product.Orderable, product.OrderInfo = branchInfo(raw.ProductAvailability.DeliveryAvailability)
		product.InStores, product.StoreInfo = branchInfo(raw.ProductAvailability.StoresAvailability)
	} else {
		product.OrderInfo = models.Unknown
		product.StoreInfo = models.Unknown
	}

	return product, true
}

func stringOr(value string) string {
	if strings.TrimSpace(value) == "" {
		return models.Unknown
	}
	return value
}

func namedOr(value *namedValue) string {
	if value == nil {
		return models.Unknown
	}
	return stringOr(value.Name)
}

func valueOr(value *priceValue) float64 {
	if value == nil {
		return 0.0
	}
	return value.Value
}

func imageMap(images []rawImage) map[string]string {
	if len(images) == 0 {
		return models.PlaceholderImage
	}
	byFormat := make(map[string]string, len(images))
	for _, img := range images {
		byFormat[img.Format] = img.URL
	}
	return byFormat
}

func branchInfo(branch *availabilityBranch) (bool, string) {
	if branch == nil {
		return false, models.Unknown
	}
	info := models.Unknown
	if len(branch.Infos) > 0 && strings.TrimSpace(branch.Infos[0].ReadableValue) != "" {
		info = branch.Infos[0].ReadableValue
	}
	return branch.AvailableForPurchase, info
}
