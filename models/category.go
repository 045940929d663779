package models

// Category is a top-level vendor product classification. The value extends
// the search endpoint's mainCategory filter.
type Category string

const (
	RedWine       Category = "rødvin"
	WhiteWine     Category = "hvitvin"
	SparklingWine Category = "musserende_vin"
	PearlingWine  Category = "perlende_vin"
	FortifiedWine Category = "sterkvin"
	AromaticWine  Category = "aromatisert_vin"
	FruitWine     Category = "fruktvin"
	RoseWine      Category = "rosévin"
	Spirit        Category = "brennevin"
	Beer          Category = "øl"
	Cider         Category = "sider"
	Sake          Category = "sake"
	Mead          Category = "mjød"
	AlcoholFree   Category = "alkoholfritt"

	// Cognac narrows the spirit category through the vendor's nested
	// sub-category filter syntax.
	Cognac Category = "brennevin%3AmainSubCategory%3Abrennevin_druebrennevin" +
		"%3AmainSubSubCategory%3Abrennevin_druebrennevin_cognac_tradisjonell"
)

// AllCategories lists every category covered by a full scrape run.
func AllCategories() []Category {
	return []Category{
		RedWine, WhiteWine, SparklingWine, PearlingWine, FortifiedWine,
		AromaticWine, FruitWine, RoseWine, Spirit, Cognac, Beer, Cider,
		Sake, Mead, AlcoholFree,
	}
}

// Filter returns the value substituted into the search query's
// mainCategory position.
func (c Category) Filter() string {
	return string(c)
}

func (c Category) String() string {
	switch c {
	case Cognac:
		return "cognac"
	default:
		return string(c)
	}
}
