package sales

import "github.com/shopspring/decimal"

// CreateRequest is the payload of a new sales order.
type CreateRequest struct {
	BookingDate         string           `json:"booking_date" validate:"required,datetime=2006-01-02"`
	Subtotal            *decimal.Decimal `json:"subtotal" validate:"required,gte=0"`
	DiscountAmount      *decimal.Decimal `json:"discount_amount" validate:"omitempty,gte=0"`
	DepositAmount       *decimal.Decimal `json:"deposit_amount" validate:"omitempty,gte=0"`
	TotalAmount         *decimal.Decimal `json:"total_amount" validate:"required,gte=0"`
	PaidAmount          *decimal.Decimal `json:"paid_amount" validate:"required,gte=0"`
	PrintOption         string           `json:"print_option" validate:"required,oneof=NO_PRINT SINGLE_PRINT SEP_PRINT"`
	SpecialInstructions string           `json:"special_instructions"`
	BookingThrough      string           `json:"booking_through" validate:"omitempty,max=50"`
	Items               []ItemRequest    `json:"items" validate:"required,min=1,dive"`
	Devotee             *DevoteeRequest  `json:"devotee" validate:"omitempty"`
	Payment             PaymentRequest   `json:"payment"`
}

// ItemRequest is one sold line.
type ItemRequest struct {
	ID            int64            `json:"id" validate:"required,gt=0"`
	DeityID       *int64           `json:"deity_id"`
	NamePrimary   string           `json:"name_primary" validate:"required,max=255"`
	NameSecondary string           `json:"name_secondary" validate:"max=255"`
	ShortCode     string           `json:"short_code" validate:"max=50"`
	SaleType      string           `json:"sale_type" validate:"required,max=50"`
	Price         *decimal.Decimal `json:"price" validate:"required,gte=0"`
	Quantity      int64            `json:"quantity" validate:"required,min=1"`
	Total         *decimal.Decimal `json:"total" validate:"required,gte=0"`
	Vehicles      []VehicleRequest `json:"vehicles" validate:"omitempty,dive"`
}

// VehicleRequest describes a vehicle attached to an item.
type VehicleRequest struct {
	Number string `json:"number" validate:"max=50"`
	Type   string `json:"type" validate:"max=50"`
	Owner  string `json:"owner" validate:"max=255"`
}

// DevoteeRequest is the optional devotee profile.
type DevoteeRequest struct {
	Name      string `json:"name" validate:"max=255"`
	Email     string `json:"email" validate:"omitempty,email,max=255"`
	NRIC      string `json:"nric" validate:"max=50"`
	PhoneCode string `json:"phone_code" validate:"max=10"`
	Phone     string `json:"phone" validate:"max=50"`
	DOB       string `json:"dob" validate:"omitempty,datetime=2006-01-02"`
	Address   string `json:"address"`
	Remarks   string `json:"remarks"`
}

// PaymentRequest is the single payment captured with the order.
type PaymentRequest struct {
	Amount        *decimal.Decimal `json:"amount" validate:"required,gte=0"`
	PaymentModeID int64            `json:"payment_mode_id" validate:"required,gt=0"`
}

// ListRequest carries raw list query parameters.
type ListRequest struct {
	Search        string `json:"search" validate:"max=255"`
	Status        string `json:"status" validate:"omitempty,oneof=CONFIRMED CANCELLED COMPLETED"`
	PaymentStatus string `json:"payment_status" validate:"omitempty,oneof=PENDING PARTIAL FULL"`
	FromDate      string `json:"from_date" validate:"omitempty,datetime=2006-01-02"`
	ToDate        string `json:"to_date" validate:"omitempty,datetime=2006-01-02"`
	Page          int    `json:"page" validate:"gte=0"`
	PerPage       int    `json:"per_page" validate:"gte=0,lte=100"`
}
