package model

import "fmt"

// CallbackEnvelope is the provider's webhook body. The nesting and field
// casing are fixed by the provider contract.
type CallbackEnvelope struct {
	Body struct {
		StkCallback STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

// STKCallback is the asynchronous result of an STK push.
// ResultCode 0 means the customer authorized the payment.
type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

// CallbackItem values are untyped on the wire: receipt numbers arrive as
// strings, amounts and dates as numbers.
type CallbackItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value,omitempty"`
}

func (c STKCallback) Succeeded() bool {
	return c.ResultCode == 0
}

// ReceiptNumber extracts the MpesaReceiptNumber metadata item, if present.
func (c STKCallback) ReceiptNumber() string {
	if c.CallbackMetadata == nil {
		return ""
	}
	for _, item := range c.CallbackMetadata.Item {
		if item.Name == "MpesaReceiptNumber" && item.Value != nil {
			return fmt.Sprintf("%v", item.Value)
		}
	}
	return ""
}

// CallbackAck is the acknowledgment payload returned to the provider.
// Anything other than ResultCode 0 causes the provider to re-deliver.
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

var (
	AckAccepted = CallbackAck{ResultCode: 0, ResultDesc: "Accepted"}
	AckFailed   = CallbackAck{ResultCode: 1, ResultDesc: "Failed"}
)
