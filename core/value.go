package core

import (
	"strconv"
	"strings"
	"time"
)

const dateTimeLayout = "2006-01-02T15:04:05-07:00"

// Value is a closed union of everything that can be sent as a query
// parameter or a JSON body field. Only the constructors in this file
// produce Values.
type Value interface {
	cast(escape bool) string
	isValue()
}

type nullValue struct{}

type stringValue string

type boolValue bool

type intValue int64

type floatValue float64

type dateValue time.Time

type timeOfDayValue struct {
	hour   int
	minute int
}

type dateTimeValue time.Time

type listValue []Value

// filesValue carries attachments; it never reaches the wire directly.
type filesValue []FileSource

func Null() Value                { return nullValue{} }
func String(value string) Value  { return stringValue(value) }
func Bool(value bool) Value      { return boolValue(value) }
func Int(value int64) Value      { return intValue(value) }
func Float(value float64) Value  { return floatValue(value) }
func Date(value time.Time) Value { return dateValue(value) }

// TimeOfDay is a bare clock time, serialized as HH:MM.
func TimeOfDay(hour, minute int) Value {
	return timeOfDayValue{hour: hour, minute: minute}
}

// DateTime is serialized as ISO-8601 normalized to UTC with second
// precision, e.g. 2024-05-01T12:30:00+00:00.
func DateTime(value time.Time) Value {
	return dateTimeValue(value)
}

func List(values ...Value) Value {
	return listValue(append([]Value(nil), values...))
}

func Strings(values ...string) Value {
	out := make(listValue, 0, len(values))
	for _, value := range values {
		out = append(out, stringValue(value))
	}
	return out
}

func Files(sources ...FileSource) Value {
	return filesValue(append([]FileSource(nil), sources...))
}

func (nullValue) cast(bool) string { return "" }

func (v stringValue) cast(escape bool) string {
	if escape {
		return EscapeValue(string(v))
	}
	return string(v)
}

func (v boolValue) cast(bool) string {
	return strconv.FormatBool(bool(v))
}

func (v intValue) cast(bool) string {
	return strconv.FormatInt(int64(v), 10)
}

func (v floatValue) cast(bool) string {
	return strconv.FormatFloat(float64(v), 'f', -1, 64)
}

func (v dateValue) cast(bool) string {
	return time.Time(v).Format("2006-01-02")
}

func (v timeOfDayValue) cast(bool) string {
	return twoDigits(v.hour) + ":" + twoDigits(v.minute)
}

func (v dateTimeValue) cast(bool) string {
	return time.Time(v).UTC().Format(dateTimeLayout)
}

func (v listValue) cast(escape bool) string {
	parts := make([]string, 0, len(v))
	for _, item := range v {
		parts = append(parts, Cast(item, escape))
	}
	return strings.Join(parts, ",")
}

func (v filesValue) cast(bool) string {
	names := make([]string, 0, len(v))
	for _, source := range v {
		if source != nil {
			names = append(names, source.Name())
		}
	}
	return strings.Join(names, ",")
}

func (nullValue) isValue()      {}
func (stringValue) isValue()    {}
func (boolValue) isValue()      {}
func (intValue) isValue()       {}
func (floatValue) isValue()     {}
func (dateValue) isValue()      {}
func (timeOfDayValue) isValue() {}
func (dateTimeValue) isValue()  {}
func (listValue) isValue()      {}
func (filesValue) isValue()     {}

// Cast renders a value in its wire form. When escape is set, strings are
// percent-escaped for use inside a query string.
func Cast(value Value, escape bool) string {
	if value == nil {
		return ""
	}
	return value.cast(escape)
}

// FilesOf extracts the file sources held by a Files value.
func FilesOf(value Value) ([]FileSource, bool) {
	files, ok := value.(filesValue)
	if !ok {
		return nil, false
	}
	return append([]FileSource(nil), files...), true
}

// BoolOf reports the boolean held by a Bool value; any other value is false.
func BoolOf(value Value) bool {
	typed, ok := value.(boolValue)
	return ok && bool(typed)
}

func twoDigits(value int) string {
	if value < 10 && value >= 0 {
		return "0" + strconv.Itoa(value)
	}
	return strconv.Itoa(value)
}

// Param is one ordered query parameter. Keys may end in a comparison
// operator such as "=>", "<", or "!=".
type Param struct {
	Key   string
	Value Value
}

type Params []Param

func NewParams() Params {
	return Params{}
}

// Add appends a parameter, keeping insertion order.
func (p Params) Add(key string, value Value) Params {
	return append(p, Param{Key: key, Value: value})
}

// Set replaces the first parameter with the same key in place, or appends.
func (p Params) Set(key string, value Value) Params {
	for i := range p {
		if p[i].Key == key {
			out := append(Params(nil), p...)
			out[i].Value = value
			return out
		}
	}
	return p.Add(key, value)
}

func (p Params) Clone() Params {
	return append(Params(nil), p...)
}

// Fields is a JSON body expressed as named typed values.
type Fields map[string]Value

func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for key, value := range f {
		out[key] = value
	}
	return out
}
