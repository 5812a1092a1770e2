package models

// OffsetProject is a registered carbon-offset project normalized from
// either the primary or the secondary registry.
type OffsetProject struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Location         string  `json:"location"`
	Category         string  `json:"category"`
	Description      string  `json:"description"`
	CreditsAvailable int64   `json:"credits_available"`
	PricePerCredit   float64 `json:"price_per_credit"`
	Standard         string  `json:"standard"`
	URL              string  `json:"url,omitempty"`
	ImageURL         string  `json:"image_url,omitempty"`

	// Registry is the registry that answered the request ("primary" or "secondary").
	Registry string `json:"registry"`
	// PriceSimulated is set when upstream had no price and one was drawn from the configured range.
	PriceSimulated bool `json:"price_simulated"`
}
