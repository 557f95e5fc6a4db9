package domain

import (
	"strings"
	"time"
)

// ListingRequest is the normalized input to a listing submission.
type ListingRequest struct {
	Title       string `json:"title"        yaml:"title"        validate:"required,max=80"`
	Description string `json:"description"  yaml:"description"`
	// Price is a decimal string such as "5.00".
	Price       string `json:"price"        yaml:"price"        validate:"required,numeric"`
	Currency    string `json:"currency"     yaml:"currency"     validate:"omitempty,len=3"`
	ConditionID int    `json:"condition_id" yaml:"condition_id" validate:"required"`
	Quantity    int    `json:"quantity"     yaml:"quantity"     validate:"gte=0"`
	CategoryID  string `json:"category_id"  yaml:"category_id"  validate:"required,numeric"`
	// Country is the ISO 3166 alpha-2 country of origin.
	Country         string              `json:"country"                    yaml:"country"          validate:"required,len=2"`
	Location        string              `json:"location"                   yaml:"location"`
	ListingDuration string              `json:"listing_duration,omitempty" yaml:"listing_duration"`
	ImageURLs       []string            `json:"image_urls"                 yaml:"image_urls"       validate:"min=1,dive,url"`
	Aspects         map[string][]string `json:"aspects,omitempty"          yaml:"aspects"`

	// Policies is filled in from the seller's business policies before
	// submission. Absent members are left out of the request.
	Policies BusinessPolicySet `json:"policies" yaml:"-"`
}

// BusinessPolicySet holds the seller's policy identifiers. Each member is
// independently optional: an empty string means the policy could not be
// resolved and must be omitted from the listing.
type BusinessPolicySet struct {
	FulfillmentID string `json:"fulfillment_id,omitempty"`
	PaymentID     string `json:"payment_id,omitempty"`
	ReturnID      string `json:"return_id,omitempty"`
}

// Empty reports whether no policy was resolved.
func (p BusinessPolicySet) Empty() bool {
	return p.FulfillmentID == "" && p.PaymentID == "" && p.ReturnID == ""
}

// ProtocolErrorDetail is one error node of a Trading API response.
type ProtocolErrorDetail struct {
	Code         string   `json:"code"`
	ShortMessage string   `json:"short_message"`
	LongMessage  string   `json:"long_message"`
	Severity     string   `json:"severity,omitempty"`
	Parameters   []string `json:"parameters,omitempty"`
}

// Message prefers the long message and falls back to the short one.
func (d ProtocolErrorDetail) Message() string {
	if strings.TrimSpace(d.LongMessage) != "" {
		return d.LongMessage
	}
	return d.ShortMessage
}

// ProtocolResult is the outcome of a marketplace operation.
type ProtocolResult struct {
	Success bool   `json:"success"`
	Ack     string `json:"ack,omitempty"`

	ItemID   string `json:"item_id,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	// ImageExpiresAt is set by media uploads.
	ImageExpiresAt *time.Time `json:"image_expires_at,omitempty"`

	// Fees lists what eBay charged, or would charge on verify.
	Fees []ListingFee `json:"fees,omitempty"`

	Warnings []string              `json:"warnings,omitempty"`
	Errors   []ProtocolErrorDetail `json:"errors,omitempty"`
	Message  string                `json:"message,omitempty"`
}

// ListingFee is one fee line of a listing response.
type ListingFee struct {
	Name     string `json:"name"`
	Amount   string `json:"amount"`
	Currency string `json:"currency,omitempty"`
}
