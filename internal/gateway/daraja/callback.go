package daraja

import (
	"encoding/json"
	"strconv"
	"strings"

	gatewaydomain "github.com/Alecckie/randa-web-sub001/internal/gateway/domain"
)

// CallbackNotice is a webhook payload reduced to the fields the reconciler
// needs. Parsing happens once at the boundary; nothing downstream ever sees
// raw provider JSON.
type CallbackNotice struct {
	CorrelationToken string
	Outcome          gatewaydomain.Outcome
	Code             string
	Receipt          string
	Message          string
}

type callbackBody struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string          `json:"MerchantRequestID"`
			CheckoutRequestID string          `json:"CheckoutRequestID"`
			ResultCode        json.RawMessage `json:"ResultCode"`
			ResultDesc        string          `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string          `json:"Name"`
					Value json.RawMessage `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseCallback decodes an inbound STK callback. A malformed payload or a
// missing checkout request id yields an unrecognized notice with whatever
// token could be read, never an error; the caller acknowledges regardless.
func ParseCallback(payload []byte) CallbackNotice {
	var body callbackBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return CallbackNotice{Outcome: gatewaydomain.OutcomeUnrecognized, Message: "malformed callback payload"}
	}

	cb := body.Body.StkCallback
	code := rawCodeString(cb.ResultCode)
	notice := CallbackNotice{
		CorrelationToken: strings.TrimSpace(cb.CheckoutRequestID),
		Outcome:          MapResultCode(code),
		Code:             code,
		Message:          cb.ResultDesc,
	}

	if notice.Outcome == gatewaydomain.OutcomeSuccess {
		for _, item := range cb.CallbackMetadata.Item {
			if item.Name == "MpesaReceiptNumber" {
				notice.Receipt = rawValueString(item.Value)
			}
		}
	}
	return notice
}

// AckBody is the acknowledgement Daraja expects on every callback delivery,
// whatever the internal outcome was. Returning anything else triggers
// redelivery storms.
func AckBody() map[string]any {
	return map[string]any{"ResultCode": 0, "ResultDesc": "Accepted"}
}

// The provider sends ResultCode as a number in callbacks but as a string
// from the query API.
func rawCodeString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var asNumber int64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return strconv.FormatInt(asNumber, 10)
	}
	return ""
}

func rawValueString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var asNumber json.Number
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return asNumber.String()
	}
	return ""
}
