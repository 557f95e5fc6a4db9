package ebay

import (
	"encoding/xml"
	"html"
	"sort"
	"strings"

	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

// TradingNamespace is the XML namespace of every Trading API document.
const TradingNamespace = "urn:ebay:apis:eBLBaseComponents"

// Trading API call names.
const (
	CallAddFixedPriceItem       = "AddFixedPriceItem"
	CallVerifyAddFixedPriceItem = "VerifyAddFixedPriceItem"
	CallUploadPicture           = "UploadSiteHostedPictures"
)

// Acknowledgement values.
const (
	AckSuccess = "Success"
	AckWarning = "Warning"
	AckFailure = "Failure"
)

const severityWarning = "Warning"

type requesterCredentials struct {
	EBayAuthToken string `xml:"eBayAuthToken"`
}

type itemRequest struct {
	XMLName              xml.Name
	RequesterCredentials requesterCredentials `xml:"RequesterCredentials"`
	ErrorLanguage        string               `xml:"ErrorLanguage"`
	WarningLevel         string               `xml:"WarningLevel"`
	Item                 xmlItem              `xml:"Item"`
}

type xmlItem struct {
	Country         string             `xml:"Country"`
	Location        string             `xml:"Location,omitempty"`
	Currency        string             `xml:"Currency"`
	Title           string             `xml:"Title"`
	Description     string             `xml:"Description"`
	PrimaryCategory xmlCategory        `xml:"PrimaryCategory"`
	StartPrice      xmlAmount          `xml:"StartPrice"`
	ConditionID     int                `xml:"ConditionID"`
	Quantity        int                `xml:"Quantity"`
	ListingDuration string             `xml:"ListingDuration"`
	PictureDetails  *xmlPictureDetails `xml:"PictureDetails,omitempty"`
	ItemSpecifics   *xmlItemSpecifics  `xml:"ItemSpecifics,omitempty"`
	SellerProfiles  *xmlSellerProfiles `xml:"SellerProfiles,omitempty"`
}

type xmlCategory struct {
	CategoryID string `xml:"CategoryID"`
}

type xmlAmount struct {
	CurrencyID string `xml:"currencyID,attr"`
	Value      string `xml:",chardata"`
}

type xmlPictureDetails struct {
	PictureURL []string `xml:"PictureURL"`
}

type xmlItemSpecifics struct {
	NameValueList []xmlNameValueList `xml:"NameValueList"`
}

type xmlNameValueList struct {
	Name  string   `xml:"Name"`
	Value []string `xml:"Value"`
}

type xmlSellerProfiles struct {
	Shipping *xmlShippingProfile `xml:"SellerShippingProfile,omitempty"`
	Payment  *xmlPaymentProfile  `xml:"SellerPaymentProfile,omitempty"`
	Return   *xmlReturnProfile   `xml:"SellerReturnProfile,omitempty"`
}

type xmlShippingProfile struct {
	ID string `xml:"ShippingProfileID"`
}

type xmlPaymentProfile struct {
	ID string `xml:"PaymentProfileID"`
}

type xmlReturnProfile struct {
	ID string `xml:"ReturnProfileID"`
}

type uploadPictureRequest struct {
	XMLName              xml.Name
	RequesterCredentials requesterCredentials `xml:"RequesterCredentials"`
	PictureName          string               `xml:"PictureName,omitempty"`
	PictureSet           string               `xml:"PictureSet"`
	PictureData          string               `xml:"PictureData"`
}

func requestName(call string) xml.Name {
	return xml.Name{Space: TradingNamespace, Local: call + "Request"}
}

// itemDefaults fills listing fields the request left empty.
type itemDefaults struct {
	Currency        string
	ListingDuration string
}

func buildItemRequest(call, token string, req domain.ListingRequest, d itemDefaults) itemRequest {
	currency := req.Currency
	if currency == "" {
		currency = d.Currency
	}
	duration := req.ListingDuration
	if duration == "" {
		duration = d.ListingDuration
	}
	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	item := xmlItem{
		Country:         strings.ToUpper(req.Country),
		Location:        req.Location,
		Currency:        currency,
		Title:           req.Title,
		Description:     descriptionHTML(req.Title, req.Description),
		PrimaryCategory: xmlCategory{CategoryID: req.CategoryID},
		StartPrice:      xmlAmount{CurrencyID: currency, Value: req.Price},
		ConditionID:     req.ConditionID,
		Quantity:        quantity,
		ListingDuration: duration,
		SellerProfiles:  sellerProfiles(req.Policies),
	}
	if len(req.ImageURLs) > 0 {
		item.PictureDetails = &xmlPictureDetails{PictureURL: req.ImageURLs}
	}
	if len(req.Aspects) > 0 {
		item.ItemSpecifics = &xmlItemSpecifics{NameValueList: nameValueLists(req.Aspects)}
	}

	return itemRequest{
		XMLName:              requestName(call),
		RequesterCredentials: requesterCredentials{EBayAuthToken: token},
		ErrorLanguage:        "en_US",
		WarningLevel:         "High",
		Item:                 item,
	}
}

// descriptionHTML wraps the description in a heading and paragraph.
func descriptionHTML(title, desc string) string {
	return "<h1>" + html.EscapeString(title) + "</h1><p>" + html.EscapeString(desc) + "</p>"
}

// nameValueLists emits aspects sorted by name so requests are stable.
// Aspects without values are dropped.
func nameValueLists(aspects map[string][]string) []xmlNameValueList {
	names := make([]string, 0, len(aspects))
	for name := range aspects {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]xmlNameValueList, 0, len(names))
	for _, name := range names {
		var values []string
		for _, v := range aspects[name] {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}
		out = append(out, xmlNameValueList{Name: name, Value: values})
	}
	return out
}

func sellerProfiles(p domain.BusinessPolicySet) *xmlSellerProfiles {
	if p.Empty() {
		return nil
	}
	sp := &xmlSellerProfiles{}
	if p.FulfillmentID != "" {
		sp.Shipping = &xmlShippingProfile{ID: p.FulfillmentID}
	}
	if p.PaymentID != "" {
		sp.Payment = &xmlPaymentProfile{ID: p.PaymentID}
	}
	if p.ReturnID != "" {
		sp.Return = &xmlReturnProfile{ID: p.ReturnID}
	}
	return sp
}

func marshalRequest(v any) ([]byte, error) {
	body, err := xml.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

// parseTradingResponse classifies a Trading API response. A failing
// acknowledgement returns the result together with an *APIError; a document
// that does not parse returns a *ProtocolError.
func parseTradingResponse(call string, body []byte) (*domain.ProtocolResult, *xmlNode, error) {
	root, err := parseXMLTree(body)
	if err != nil {
		return nil, nil, &ProtocolError{Op: call, Err: err}
	}

	ack := root.FindText("Ack")
	details := errorDetails(root)

	res := &domain.ProtocolResult{Ack: ack}
	switch ack {
	case AckSuccess, AckWarning:
		res.Success = true
		for _, d := range details {
			if d.Severity == severityWarning {
				res.Warnings = append(res.Warnings, d.Message())
			}
		}
		return res, root, nil
	default:
		res.Errors = details
		res.Message = joinErrorDetails(details)
		return res, root, &APIError{Call: call, Ack: ack, Errors: details}
	}
}

func errorDetails(root *xmlNode) []domain.ProtocolErrorDetail {
	nodes := root.FindAll("Errors")
	if len(nodes) == 0 {
		return nil
	}
	out := make([]domain.ProtocolErrorDetail, 0, len(nodes))
	for _, n := range nodes {
		d := domain.ProtocolErrorDetail{
			Code:         n.ChildText("ErrorCode"),
			ShortMessage: n.ChildText("ShortMessage"),
			LongMessage:  n.ChildText("LongMessage"),
			Severity:     n.ChildText("SeverityCode"),
		}
		for _, p := range n.FindAll("ErrorParameters") {
			if v := p.ChildText("Value"); v != "" {
				d.Parameters = append(d.Parameters, v)
			}
		}
		out = append(out, d)
	}
	return out
}

// listingFees reads Fees/Fee. Each entry nests its amount in a second Fee
// element that carries the currency.
func listingFees(root *xmlNode) []domain.ListingFee {
	fees := root.Find("Fees")
	if fees == nil {
		return nil
	}
	var out []domain.ListingFee
	for _, f := range fees.Children {
		if f.Name != "Fee" {
			continue
		}
		fee := domain.ListingFee{Name: f.ChildText("Name")}
		if amount := f.Child("Fee"); amount != nil {
			fee.Amount = amount.Text
			fee.Currency = amount.Attrs["currencyID"]
		}
		out = append(out, fee)
	}
	return out
}
