package sales

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MetaKey is a closed set of keys stored against bookings and booking items.
type MetaKey string

const (
	MetaDevoteeName      MetaKey = "devotee_name"
	MetaDevoteeEmail     MetaKey = "devotee_email"
	MetaDevoteeNRIC      MetaKey = "devotee_nric"
	MetaDevoteePhoneCode MetaKey = "devotee_phone_code"
	MetaDevoteePhone     MetaKey = "devotee_phone"
	MetaDevoteeDOB       MetaKey = "devotee_dob"
	MetaDevoteeAddress   MetaKey = "devotee_address"
	MetaDevoteeRemarks   MetaKey = "devotee_remarks"
	MetaVehicleCount     MetaKey = "vehicle_count"
)

const (
	vehicleNumberPrefix = "vehicle_number_"
	vehicleTypePrefix   = "vehicle_type_"
	vehicleOwnerPrefix  = "vehicle_owner_"
)

var ErrUnknownMetaKey = errors.New("sales: unknown meta key")

// VehicleNumberKey returns the key of the n-th vehicle number, 1-based.
func VehicleNumberKey(n int) MetaKey { return MetaKey(vehicleNumberPrefix + strconv.Itoa(n)) }

// VehicleTypeKey returns the key of the n-th vehicle type, 1-based.
func VehicleTypeKey(n int) MetaKey { return MetaKey(vehicleTypePrefix + strconv.Itoa(n)) }

// VehicleOwnerKey returns the key of the n-th vehicle owner, 1-based.
func VehicleOwnerKey(n int) MetaKey { return MetaKey(vehicleOwnerPrefix + strconv.Itoa(n)) }

// ParseMetaKey validates a stored key.
func ParseMetaKey(raw string) (MetaKey, error) {
	switch key := MetaKey(raw); key {
	case MetaDevoteeName, MetaDevoteeEmail, MetaDevoteeNRIC, MetaDevoteePhoneCode,
		MetaDevoteePhone, MetaDevoteeDOB, MetaDevoteeAddress, MetaDevoteeRemarks, MetaVehicleCount:
		return key, nil
	}
	for _, prefix := range []string{vehicleNumberPrefix, vehicleTypePrefix, vehicleOwnerPrefix} {
		suffix, ok := strings.CutPrefix(raw, prefix)
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(suffix); err == nil && n >= 1 && strconv.Itoa(n) == suffix {
			return MetaKey(raw), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetaKey, raw)
}

// MetaType tags the variant held by a MetaValue.
type MetaType string

const (
	MetaString  MetaType = "STRING"
	MetaInteger MetaType = "INTEGER"
	MetaDate    MetaType = "DATE"
)

const metaDateLayout = "2006-01-02"

// MetaValue is a STRING, INTEGER or DATE value.
type MetaValue struct {
	typ  MetaType
	str  string
	num  int64
	date time.Time
}

func StringValue(s string) MetaValue { return MetaValue{typ: MetaString, str: s} }

func IntValue(n int64) MetaValue { return MetaValue{typ: MetaInteger, num: n} }

func DateValue(t time.Time) MetaValue { return MetaValue{typ: MetaDate, date: t} }

func (v MetaValue) Type() MetaType { return v.typ }

// Int returns the value when it holds an integer.
func (v MetaValue) Int() (int64, bool) { return v.num, v.typ == MetaInteger }

// Date returns the value when it holds a date.
func (v MetaValue) Date() (time.Time, bool) { return v.date, v.typ == MetaDate }

// String renders the value in its stored form.
func (v MetaValue) String() string {
	switch v.typ {
	case MetaInteger:
		return strconv.FormatInt(v.num, 10)
	case MetaDate:
		return v.date.Format(metaDateLayout)
	default:
		return v.str
	}
}

// ParseMetaValue decodes a stored value of the given type.
func ParseMetaValue(typ MetaType, raw string) (MetaValue, error) {
	switch typ {
	case MetaString, "":
		return StringValue(raw), nil
	case MetaInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return MetaValue{}, fmt.Errorf("sales: meta integer %q: %w", raw, err)
		}
		return IntValue(n), nil
	case MetaDate:
		t, err := time.Parse(metaDateLayout, raw)
		if err != nil {
			return MetaValue{}, fmt.Errorf("sales: meta date %q: %w", raw, err)
		}
		return DateValue(t), nil
	}
	return MetaValue{}, fmt.Errorf("sales: unknown meta type %q", typ)
}

// Meta is one key/value attribute.
type Meta struct {
	Key   MetaKey
	Value MetaValue
}

// MetaMap indexes meta rows by key, later rows winning.
func MetaMap(rows []Meta) map[MetaKey]MetaValue {
	out := make(map[MetaKey]MetaValue, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out
}
