package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// ConversionRequest is the inbound payload of both conversion endpoints.
// HTML is not validated as markup.
type ConversionRequest struct {
	HTML           string       `json:"html"`
	Margin         *MarginInput `json:"margin,omitempty"`
	HeaderTemplate string       `json:"headerTemplate,omitempty"`
	FooterTemplate string       `json:"footerTemplate,omitempty"`
}

// MarginInput holds the four loosely typed margin sides of a request.
type MarginInput struct {
	Top    MarginValue `json:"top"`
	Right  MarginValue `json:"right"`
	Bottom MarginValue `json:"bottom"`
	Left   MarginValue `json:"left"`
}

// MarginValue is either a bare number (millimeters), a unit-qualified string,
// or absent. Decoding never fails: values of any other JSON type are treated
// as absent.
type MarginValue struct {
	set   bool
	isNum bool
	num   float64
	str   string
}

// NumericMargin returns a margin value interpreted in millimeters.
func NumericMargin(v float64) MarginValue {
	return MarginValue{set: true, isNum: true, num: v}
}

// TextMargin returns a margin value that is passed through unchanged.
func TextMargin(s string) MarginValue {
	return MarginValue{set: true, str: s}
}

// IsSet reports whether a usable value was supplied.
func (v MarginValue) IsSet() bool { return v.set }

// Float returns the numeric value, if the margin was given as a number.
func (v MarginValue) Float() (float64, bool) {
	return v.num, v.set && v.isNum
}

// Text returns the string value, if the margin was given as a string.
func (v MarginValue) Text() (string, bool) {
	return v.str, v.set && !v.isNum
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *MarginValue) UnmarshalJSON(b []byte) error {
	*v = MarginValue{}

	raw := bytes.TrimSpace(b)
	if len(raw) == 0 {
		return nil
	}

	switch c := raw[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			*v = TextMargin(s)
		}
	case c == '-' || (c >= '0' && c <= '9'):
		if f, err := strconv.ParseFloat(string(raw), 64); err == nil {
			*v = NumericMargin(f)
		}
	}
	return nil
}
