package sales

import (
	"time"
)

const timestampLayout = "2006-01-02 15:04:05"

// Order is the client representation of a booking, shared by every read and
// write endpoint.
type Order struct {
	ID                  int64         `json:"id"`
	BookingNumber       string        `json:"booking_number"`
	BookingType         string        `json:"booking_type"`
	BookingDate         string        `json:"booking_date"`
	BookingStatus       BookingStatus `json:"booking_status"`
	PaymentStatus       PaymentStatus `json:"payment_status"`
	Subtotal            float64       `json:"subtotal"`
	DiscountAmount      float64       `json:"discount_amount"`
	DepositAmount       float64       `json:"deposit_amount"`
	TotalAmount         float64       `json:"total_amount"`
	PaidAmount          float64       `json:"paid_amount"`
	BalanceAmount       float64       `json:"balance_amount"`
	PrintOption         PrintOption   `json:"print_option"`
	SpecialInstructions *string       `json:"special_instructions"`
	Items               []OrderItem   `json:"items"`
	ItemsCount          int           `json:"items_count"`
	Devotee             Devotee       `json:"devotee"`
	Payment             *OrderPayment `json:"payment"`
	CreatedAt           string        `json:"created_at"`
	UpdatedAt           string        `json:"updated_at"`
	CreatedBy           *UserView     `json:"created_by"`
	User                *UserView     `json:"user"`
}

type OrderItem struct {
	ID                int64         `json:"id"`
	ItemID            int64         `json:"item_id"`
	DeityID           *int64        `json:"deity_id"`
	ItemType          string        `json:"item_type"`
	ItemName          string        `json:"item_name"`
	ItemNameSecondary *string       `json:"item_name_secondary"`
	ShortCode         *string       `json:"short_code"`
	Quantity          int64         `json:"quantity"`
	UnitPrice         float64       `json:"unit_price"`
	TotalPrice        float64       `json:"total_price"`
	Status            string        `json:"status"`
	Vehicles          []VehicleView `json:"vehicles,omitempty"`
}

type VehicleView struct {
	Number string `json:"number,omitempty"`
	Type   string `json:"type,omitempty"`
	Owner  string `json:"owner,omitempty"`
}

type Devotee struct {
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	NRIC      *string `json:"nric"`
	PhoneCode string  `json:"phone_code"`
	Phone     *string `json:"phone"`
	DOB       *string `json:"dob"`
	Address   *string `json:"address"`
	Remarks   *string `json:"remarks"`
}

type OrderPayment struct {
	ID               int64   `json:"id"`
	Amount           float64 `json:"amount"`
	PaymentReference string  `json:"payment_reference"`
	PaymentMethod    string  `json:"payment_method"`
	PaymentStatus    string  `json:"payment_status"`
	PaymentDate      string  `json:"payment_date"`
}

type UserView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Format renders b for clients.
func Format(b Booking) Order {
	order := Order{
		ID:                  b.ID,
		BookingNumber:       b.Number,
		BookingType:         b.Type,
		BookingDate:         formatDate(b.Date),
		BookingStatus:       b.Status,
		PaymentStatus:       b.PaymentStatus,
		Subtotal:            b.Subtotal.InexactFloat64(),
		DiscountAmount:      b.Discount.InexactFloat64(),
		DepositAmount:       b.Deposit.InexactFloat64(),
		TotalAmount:         b.Total.InexactFloat64(),
		PaidAmount:          b.Paid.InexactFloat64(),
		BalanceAmount:       b.Balance().InexactFloat64(),
		PrintOption:         b.PrintOption,
		SpecialInstructions: optional(b.SpecialInstructions),
		Items:               make([]OrderItem, 0, len(b.Items)),
		CreatedAt:           formatTimestamp(b.CreatedAt),
		UpdatedAt:           formatTimestamp(b.UpdatedAt),
	}
	if order.BookingType == "" {
		order.BookingType = BookingTypeSales
	}
	for _, item := range b.Items {
		order.Items = append(order.Items, OrderItem{
			ID:                item.ID,
			ItemID:            item.ItemID,
			DeityID:           item.DeityID,
			ItemType:          item.ItemType,
			ItemName:          item.Name,
			ItemNameSecondary: optional(item.NameSecondary),
			ShortCode:         optional(item.ShortCode),
			Quantity:          item.Quantity,
			UnitPrice:         item.UnitPrice.InexactFloat64(),
			TotalPrice:        item.TotalPrice.InexactFloat64(),
			Status:            item.Status,
			Vehicles:          vehicles(item.Meta),
		})
	}
	order.ItemsCount = len(order.Items)
	order.Devotee = devotee(MetaMap(b.Meta))
	if p, ok := b.LatestPayment(); ok {
		order.Payment = &OrderPayment{
			ID:               p.ID,
			Amount:           p.Amount.InexactFloat64(),
			PaymentReference: p.Reference,
			PaymentMethod:    p.PaymentMethod,
			PaymentStatus:    p.Status,
			PaymentDate:      formatTimestamp(p.PaymentDate),
		}
	}
	if b.Creator != nil {
		order.CreatedBy = &UserView{ID: b.Creator.ID, Name: b.Creator.Name}
		order.User = &UserView{ID: b.Creator.ID, Name: b.Creator.Name}
	}
	return order
}

func devotee(meta map[MetaKey]MetaValue) Devotee {
	get := func(key MetaKey) *string {
		v, ok := meta[key]
		if !ok {
			return nil
		}
		return optional(v.String())
	}
	d := Devotee{
		Name:      get(MetaDevoteeName),
		Email:     get(MetaDevoteeEmail),
		NRIC:      get(MetaDevoteeNRIC),
		PhoneCode: DefaultPhoneCode,
		Phone:     get(MetaDevoteePhone),
		DOB:       get(MetaDevoteeDOB),
		Address:   get(MetaDevoteeAddress),
		Remarks:   get(MetaDevoteeRemarks),
	}
	if code := get(MetaDevoteePhoneCode); code != nil {
		d.PhoneCode = *code
	}
	return d
}

func vehicles(rows []Meta) []VehicleView {
	meta := MetaMap(rows)
	count, ok := meta[MetaVehicleCount].Int()
	if !ok || count <= 0 {
		return nil
	}
	out := make([]VehicleView, 0, count)
	for n := 1; n <= int(count); n++ {
		out = append(out, VehicleView{
			Number: meta[VehicleNumberKey(n)].String(),
			Type:   meta[VehicleTypeKey(n)].String(),
			Owner:  meta[VehicleOwnerKey(n)].String(),
		})
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timestampLayout)
}
