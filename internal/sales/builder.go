package sales

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
	"golang.org/x/text/unicode/norm"

	"github.com/temple-erp/temple-pos/internal/shared"
)

const dateLayout = "2006-01-02"

var indexPattern = regexp.MustCompile(`\[(\d+)\]`)

// Draft is a validated order ready to be persisted.
type Draft struct {
	Booking Booking
	Items   []BookingItem
	Meta    []Meta
	Payment Payment
}

// Builder validates create requests and assembles the booking aggregate.
type Builder struct {
	validate *validator.Validate
}

// NewBuilder constructs a Builder with decimal-aware validation.
func NewBuilder() *Builder {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return &Builder{validate: v}
}

// Validate checks the request shape and returns a validation error keyed by
// JSON path, e.g. items.0.quantity.
func (b *Builder) Validate(req any) error {
	err := b.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		path := fieldPath(fe.Namespace())
		if _, seen := fields[path]; !seen {
			fields[path] = fieldMessage(path, fe)
		}
	}
	return shared.ValidationError(fields)
}

func fieldPath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		namespace = namespace[idx+1:]
	}
	return indexPattern.ReplaceAllString(namespace, ".$1")
}

func fieldMessage(path string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", path)
	case "gte", "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("The %s field must have at least %s items.", path, fe.Param())
		}
		return fmt.Sprintf("The %s field must be at least %s.", path, fe.Param())
	case "gt":
		return fmt.Sprintf("The %s field must be greater than %s.", path, fe.Param())
	case "max", "lte":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("The %s field must not be greater than %s characters.", path, fe.Param())
		}
		return fmt.Sprintf("The %s field must not be greater than %s.", path, fe.Param())
	case "oneof":
		return fmt.Sprintf("The selected %s is invalid.", path)
	case "email":
		return fmt.Sprintf("The %s field must be a valid email address.", path)
	case "datetime":
		return fmt.Sprintf("The %s field must be a valid date.", path)
	}
	return fmt.Sprintf("The %s field is invalid.", path)
}

// Build validates req and assembles the draft for actor at the request time.
// The booking number and payment reference are assigned later inside the
// unit of work.
func (b *Builder) Build(req CreateRequest, rc shared.RequestContext) (Draft, error) {
	if err := b.Validate(req); err != nil {
		return Draft{}, err
	}
	bookingDate, _ := time.Parse(dateLayout, req.BookingDate)
	now := rc.Clock(time.Now)
	through := strings.TrimSpace(req.BookingThrough)
	if through == "" {
		through = BookingThroughAdmin
	}

	paid := value(req.PaidAmount)
	total := value(req.TotalAmount)
	booking := Booking{
		Type:                BookingTypeSales,
		Date:                bookingDate,
		Status:              StatusConfirmed,
		PaymentStatus:       DeterminePaymentStatus(paid, total),
		Subtotal:            value(req.Subtotal),
		Discount:            value(req.DiscountAmount),
		Deposit:             value(req.DepositAmount),
		Tax:                 decimal.Zero,
		Total:               total,
		Paid:                paid,
		PrintOption:         PrintOption(req.PrintOption),
		SpecialInstructions: clean(req.SpecialInstructions),
		BookingThrough:      through,
		CreatedBy:           rc.Actor.ID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	items := make([]BookingItem, 0, len(req.Items))
	for _, in := range req.Items {
		item := BookingItem{
			ItemType:      in.SaleType,
			ItemID:        in.ID,
			DeityID:       in.DeityID,
			Name:          clean(in.NamePrimary),
			NameSecondary: clean(in.NameSecondary),
			ShortCode:     strings.TrimSpace(in.ShortCode),
			ServiceDate:   bookingDate,
			Quantity:      in.Quantity,
			UnitPrice:     value(in.Price),
			TotalPrice:    value(in.Total),
			Status:        ItemStatusCompleted,
			Meta:          vehicleMeta(in.Vehicles),
		}
		items = append(items, item)
	}

	payment := Payment{
		PaymentDate:   now,
		Amount:        value(req.Payment.Amount),
		PaymentModeID: req.Payment.PaymentModeID,
		PaymentType:   PaymentTypeFull,
		Status:        PaymentSuccess,
		PaidThrough:   through,
		CreatedBy:     rc.Actor.ID,
	}

	return Draft{Booking: booking, Items: items, Meta: devoteeMeta(req.Devotee), Payment: payment}, nil
}

func vehicleMeta(vehicles []VehicleRequest) []Meta {
	if len(vehicles) == 0 {
		return nil
	}
	var rows []Meta
	for i, v := range vehicles {
		n := i + 1
		if s := clean(v.Number); s != "" {
			rows = append(rows, Meta{Key: VehicleNumberKey(n), Value: StringValue(s)})
		}
		if s := clean(v.Type); s != "" {
			rows = append(rows, Meta{Key: VehicleTypeKey(n), Value: StringValue(s)})
		}
		if s := clean(v.Owner); s != "" {
			rows = append(rows, Meta{Key: VehicleOwnerKey(n), Value: StringValue(s)})
		}
	}
	return append(rows, Meta{Key: MetaVehicleCount, Value: IntValue(int64(len(vehicles)))})
}

func devoteeMeta(d *DevoteeRequest) []Meta {
	if d == nil || !hasDevotee(*d) {
		return nil
	}
	phoneCode := strings.TrimSpace(d.PhoneCode)
	if phoneCode == "" {
		phoneCode = DefaultPhoneCode
	}
	var rows []Meta
	add := func(key MetaKey, s string) {
		if s != "" {
			rows = append(rows, Meta{Key: key, Value: StringValue(s)})
		}
	}
	add(MetaDevoteeName, clean(d.Name))
	add(MetaDevoteeEmail, strings.TrimSpace(d.Email))
	add(MetaDevoteeNRIC, strings.TrimSpace(d.NRIC))
	add(MetaDevoteePhoneCode, phoneCode)
	add(MetaDevoteePhone, NormalizePhone(phoneCode, d.Phone))
	if dob, err := time.Parse(dateLayout, strings.TrimSpace(d.DOB)); err == nil {
		rows = append(rows, Meta{Key: MetaDevoteeDOB, Value: DateValue(dob)})
	}
	add(MetaDevoteeAddress, clean(d.Address))
	add(MetaDevoteeRemarks, clean(d.Remarks))
	return rows
}

func hasDevotee(d DevoteeRequest) bool {
	for _, s := range []string{d.Name, d.Email, d.NRIC, d.PhoneCode, d.Phone, d.DOB, d.Address, d.Remarks} {
		if strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}

// NormalizePhone reduces phone to its national significant number when it is
// valid for the region of phoneCode. Anything else is returned trimmed.
func NormalizePhone(phoneCode, phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	code, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(phoneCode), "+"))
	if err != nil {
		return phone
	}
	region := libphonenumber.GetRegionCodeForCountryCode(code)
	if region == "" || region == "ZZ" {
		return phone
	}
	num, err := libphonenumber.Parse(phone, region)
	if err != nil || !libphonenumber.IsValidNumber(num) {
		return phone
	}
	return libphonenumber.GetNationalSignificantNumber(num)
}

func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func value(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
