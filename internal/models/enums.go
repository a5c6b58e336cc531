package models

type ReceiptCategory string

const (
	CategoryGas           ReceiptCategory = "gas"
	CategoryFood          ReceiptCategory = "food"
	CategoryOffice        ReceiptCategory = "office"
	CategoryTravel        ReceiptCategory = "travel"
	CategoryLodging       ReceiptCategory = "lodging"
	CategoryEntertainment ReceiptCategory = "entertainment"
	CategoryMedical       ReceiptCategory = "medical"
	CategoryPersonal      ReceiptCategory = "personal"
	CategoryOther         ReceiptCategory = "other"
)

var ReceiptCategories = []ReceiptCategory{
	CategoryGas, CategoryFood, CategoryOffice, CategoryTravel, CategoryLodging,
	CategoryEntertainment, CategoryMedical, CategoryPersonal, CategoryOther,
}

func (c ReceiptCategory) Valid() bool { return contains(ReceiptCategories, c) }

type PaymentType string

const (
	PaymentCreditCard PaymentType = "credit_card"
	PaymentDebitCard  PaymentType = "debit_card"
	PaymentCash       PaymentType = "cash"
	PaymentTransfer   PaymentType = "transfer"
	PaymentMobilePay  PaymentType = "mobile_pay"
	PaymentOther      PaymentType = "other"
)

var PaymentTypes = []PaymentType{
	PaymentCreditCard, PaymentDebitCard, PaymentCash, PaymentTransfer, PaymentMobilePay, PaymentOther,
}

func (p PaymentType) Valid() bool { return contains(PaymentTypes, p) }

type CardType string

const (
	CardVisa       CardType = "visa"
	CardMastercard CardType = "mastercard"
	CardAmex       CardType = "amex"
	CardDiscover   CardType = "discover"
	CardOther      CardType = "other"
	CardUnknown    CardType = "unknown"
)

var CardTypes = []CardType{CardVisa, CardMastercard, CardAmex, CardDiscover, CardOther, CardUnknown}

func (c CardType) Valid() bool { return contains(CardTypes, c) }

type ReceiptStatus string

const (
	ReceiptStatusDraft     ReceiptStatus = "draft"
	ReceiptStatusConfirmed ReceiptStatus = "confirmed"
)

type ExtractionStatus string

const (
	ExtractionPending   ExtractionStatus = "pending"
	ExtractionCompleted ExtractionStatus = "completed"
	ExtractionFailed    ExtractionStatus = "failed"
)

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
