package webhook

import (
	"errors"

	"github.com/tidwall/gjson"

	"github.com/CamDog38/ShopDelta2-sub001/internal/tenant"
)

// ErrMalformedPayload marks a verified body that cannot identify its shop.
// Redelivery would carry the same body, so it is acknowledged, not retried.
var ErrMalformedPayload = errors.New("malformed webhook payload")

// shopFields are the payload paths that can carry the shop domain,
// in order of preference.
var shopFields = []string{"shop_domain", "myshopify_domain", "domain"}

// ParseEvent builds an Event from a verified delivery. shopHeader wins over
// the payload fields when present.
func ParseEvent(topic Topic, shopHeader, webhookID, signature string, rawBody []byte) (Event, error) {
	if !gjson.ValidBytes(rawBody) {
		return Event{}, ErrMalformedPayload
	}
	root := gjson.ParseBytes(rawBody)
	if !root.IsObject() {
		return Event{}, ErrMalformedPayload
	}

	shop := tenant.NormalizeDomain(shopHeader)
	if shop == "" {
		for _, field := range shopFields {
			if v := root.Get(field); v.Type == gjson.String {
				if shop = tenant.NormalizeDomain(v.Str); shop != "" {
					break
				}
			}
		}
	}
	if shop == "" {
		return Event{}, ErrMalformedPayload
	}

	payload, _ := root.Value().(map[string]any)
	return Event{
		Topic:     topic,
		Shop:      shop,
		WebhookID: webhookID,
		Signature: signature,
		RawBody:   rawBody,
		Payload:   payload,
	}, nil
}
