package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fizic37/delcampe-ebay/internal/ebay"
	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

// ListingService publishes listings and hosts images for the active
// account.
type ListingService interface {
	Publish(ctx context.Context, req domain.ListingRequest, verify bool) (*domain.ProtocolResult, error)
	UploadImage(ctx context.Context, filename string, data []byte, viaTrading bool) (*domain.ProtocolResult, error)
}

// ListingHandler submits fixed price listings.
type ListingHandler struct {
	svc ListingService
}

// NewListingHandler creates a new ListingHandler.
func NewListingHandler(svc ListingService) *ListingHandler {
	return &ListingHandler{svc: svc}
}

// ListingBody is the listing submitted by a client.
type ListingBody struct {
	Title           string                    `json:"title"                      maxLength:"80" doc:"Listing title"                                    example:"Bucuresti - Calea Victoriei, 1910"`
	Description     string                    `json:"description,omitempty"                     doc:"Plain text description, escaped before submission"`
	Price           string                    `json:"price"                                     doc:"Decimal start price"                              example:"5.00"`
	Currency        string                    `json:"currency,omitempty"         minLength:"3"  doc:"ISO 4217 currency; defaults to the configured one" example:"USD"     maxLength:"3"`
	ConditionID     int                       `json:"condition_id"                              doc:"eBay condition ID"                                example:"3000"`
	Quantity        int                       `json:"quantity,omitempty"         minimum:"0"    doc:"Quantity; defaults to 1"`
	CategoryID      string                    `json:"category_id"                               doc:"eBay category ID"                                 example:"262042"`
	Country         string                    `json:"country"                    minLength:"2"  doc:"ISO 3166 country of origin"                       example:"RO"      maxLength:"2"`
	Location        string                    `json:"location,omitempty"                        doc:"Item location"                                    example:"Bucharest"`
	ListingDuration string                    `json:"listing_duration,omitempty"                doc:"Listing duration; defaults to the configured one" example:"GTC"`
	ImageURLs       []string                  `json:"image_urls"                 minItems:"1"   doc:"Hosted picture URLs"`
	Aspects         map[string][]string       `json:"aspects,omitempty"                         doc:"Item specifics by name"`
	Policies        *domain.BusinessPolicySet `json:"policies,omitempty"                        doc:"Business policy IDs; resolved from the account when omitted"`
}

func (b *ListingBody) request() domain.ListingRequest {
	req := domain.ListingRequest{
		Title:           b.Title,
		Description:     b.Description,
		Price:           b.Price,
		Currency:        b.Currency,
		ConditionID:     b.ConditionID,
		Quantity:        b.Quantity,
		CategoryID:      b.CategoryID,
		Country:         b.Country,
		Location:        b.Location,
		ListingDuration: b.ListingDuration,
		ImageURLs:       b.ImageURLs,
		Aspects:         b.Aspects,
	}
	if b.Policies != nil {
		req.Policies = *b.Policies
	}
	return req
}

// ListingInput is the request for publishing or verifying a listing.
type ListingInput struct {
	Body ListingBody
}

// ResultOutput carries a marketplace result and its status code.
type ResultOutput struct {
	Status int
	Body   *domain.ProtocolResult
}

// Publish submits the listing for the active account.
func (h *ListingHandler) Publish(ctx context.Context, in *ListingInput) (*ResultOutput, error) {
	return h.submit(ctx, in, false)
}

// Verify validates the listing with eBay without publishing it.
func (h *ListingHandler) Verify(ctx context.Context, in *ListingInput) (*ResultOutput, error) {
	return h.submit(ctx, in, true)
}

func (h *ListingHandler) submit(ctx context.Context, in *ListingInput, verify bool) (*ResultOutput, error) {
	res, err := h.svc.Publish(ctx, in.Body.request(), verify)
	if err != nil {
		return resultOrError(res, err)
	}

	status := http.StatusCreated
	if verify {
		status = http.StatusOK
	}
	return &ResultOutput{Status: status, Body: res}, nil
}

// ImageInput is an image to host for the active account.
type ImageInput struct {
	Body struct {
		Filename   string `json:"filename"              doc:"File name; its extension selects the content type" example:"front.jpg"`
		Data       []byte `json:"data"                  doc:"Base64 encoded image"`
		ViaTrading bool   `json:"via_trading,omitempty" doc:"Upload through the Trading API even when the Media API is enabled"`
	}
}

// UploadImage hosts an image and returns its URL.
func (h *ListingHandler) UploadImage(ctx context.Context, in *ImageInput) (*ResultOutput, error) {
	if len(in.Body.Data) == 0 {
		return nil, huma.Error422UnprocessableEntity("image data is empty")
	}
	res, err := h.svc.UploadImage(ctx, in.Body.Filename, in.Body.Data, in.Body.ViaTrading)
	if err != nil {
		return resultOrError(res, err)
	}
	return &ResultOutput{Status: http.StatusCreated, Body: res}, nil
}

// resultOrError returns eBay's rejection with its error list as a 422 body
// when a result is available.
func resultOrError(res *domain.ProtocolResult, err error) (*ResultOutput, error) {
	var apiErr *ebay.APIError
	if res != nil && errors.As(err, &apiErr) {
		return &ResultOutput{Status: http.StatusUnprocessableEntity, Body: res}, nil
	}
	return nil, toHumaError(err)
}

// RegisterListingRoutes registers listing and image endpoints with the
// Huma API.
func RegisterListingRoutes(api huma.API, h *ListingHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "publish-listing",
		Method:      http.MethodPost,
		Path:        "/api/v1/listings",
		Summary:     "Publish a fixed price listing",
		Description: "Submits the listing for the active account. Business policies are resolved when omitted.",
		Tags:        []string{"listings"},
	}, h.Publish)

	huma.Register(api, huma.Operation{
		OperationID: "verify-listing",
		Method:      http.MethodPost,
		Path:        "/api/v1/listings/verify",
		Summary:     "Verify a fixed price listing",
		Description: "Validates the listing with eBay and reports fees, warnings and errors without publishing it.",
		Tags:        []string{"listings"},
	}, h.Verify)

	huma.Register(api, huma.Operation{
		OperationID: "upload-image",
		Method:      http.MethodPost,
		Path:        "/api/v1/images",
		Summary:     "Host an image",
		Description: "Uploads an image for the active account and returns its hosted URL.",
		Tags:        []string{"listings"},
	}, h.UploadImage)
}
