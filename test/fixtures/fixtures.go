package fixtures

import (
	"time"

	"github.com/afriproperty/payment-gateway/internal/model"
)

var (
	TestInvestor1 = model.Investor{
		ID:       1,
		FullName: "Amina Odhiambo",
		Email:    "amina@example.com",
		Phone:    "254712345678",
		APIKey:   "test-api-key-1",
	}

	TestInvestor2 = model.Investor{
		ID:       2,
		FullName: "Brian Mwangi",
		Email:    "brian@example.com",
		Phone:    "254722000111",
		APIKey:   "test-api-key-2",
	}
)

func NewTestInvestment(investorID, propertyID int64, amount float64) *model.Investment {
	return &model.Investment{
		InvestorID:    investorID,
		PropertyID:    propertyID,
		Amount:        amount,
		PaymentStatus: model.InvestmentPaymentPending,
		CreatedAt:     time.Now(),
	}
}

func NewTestClaim(investorID, propertyID int64, amount float64) *model.RentalClaim {
	return &model.RentalClaim{
		InvestorID: investorID,
		PropertyID: propertyID,
		Amount:     amount,
		Status:     model.ClaimStatusPending,
		CreatedAt:  time.Now(),
	}
}

func CollectionRequestFor(investmentID, requesterID int64, amount float64) model.CollectionRequest {
	return model.CollectionRequest{
		InvestmentID: investmentID,
		RequesterID:  requesterID,
		PhoneNumber:  "0712345678",
		Amount:       amount,
	}
}

func WithdrawalRequestFor(claimID, requesterID int64, amount float64) model.WithdrawalRequest {
	return model.WithdrawalRequest{
		ClaimID:     claimID,
		RequesterID: requesterID,
		PhoneNumber: "0712345678",
		Amount:      amount,
	}
}

// SuccessCallback builds a provider success callback for a correlation id.
func SuccessCallback(checkoutRequestID, receipt string, amount float64) model.STKCallback {
	return model.STKCallback{
		MerchantRequestID: "MR-" + checkoutRequestID,
		CheckoutRequestID: checkoutRequestID,
		ResultCode:        0,
		ResultDesc:        "The service request is processed successfully.",
		CallbackMetadata: &model.CallbackMetadata{
			Item: []model.CallbackItem{
				{Name: "Amount", Value: amount},
				{Name: "MpesaReceiptNumber", Value: receipt},
				{Name: "TransactionDate", Value: time.Now().Format("20060102150405")},
				{Name: "PhoneNumber", Value: 254712345678.0},
			},
		},
	}
}

// CancelledCallback builds the user-cancelled failure callback.
func CancelledCallback(checkoutRequestID string) model.STKCallback {
	return model.STKCallback{
		MerchantRequestID: "MR-" + checkoutRequestID,
		CheckoutRequestID: checkoutRequestID,
		ResultCode:        1032,
		ResultDesc:        "Request cancelled by user",
	}
}

var (
	ValidPhoneNumbers = []string{
		"0712345678",
		"254712345678",
		"+254-712-345-678",
		"712345678",
	}

	InvalidPhoneNumbers = []string{
		"",
		"123",
		"invalid",
		"+",
	}
)
