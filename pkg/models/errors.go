package models

import (
	"errors"
	"fmt"
)

var (
	ErrFormatUnrecognized  = errors.New("format unrecognized")
	ErrNoSettlementData    = errors.New("no settlement data found")
	ErrCourseMatchFailed   = errors.New("course match failed")
	ErrExchangeRateMissing = errors.New("exchange rate missing")
	ErrNoExchangeRates     = errors.New("no exchange rates configured")
)

// FormatUnrecognizedError is returned when no extractor can parse a document.
type FormatUnrecognizedError struct {
	Path string
}

func (e *FormatUnrecognizedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrFormatUnrecognized, e.Path)
}

func (e *FormatUnrecognizedError) Unwrap() error { return ErrFormatUnrecognized }

// NoSettlementDataError is returned when a recognized document yields no rows.
type NoSettlementDataError struct {
	Path   string
	Period string
}

func (e *NoSettlementDataError) Error() string {
	return fmt.Sprintf("%s: %s (period %s)", ErrNoSettlementData, e.Path, e.Period)
}

func (e *NoSettlementDataError) Unwrap() error { return ErrNoSettlementData }

// CourseMatchError records a label that fell back to a placeholder id.
type CourseMatchError struct {
	CourseCode  string
	Label       string
	Period      string
	Placeholder string
}

func (e *CourseMatchError) Error() string {
	return fmt.Sprintf("%s: code %s label %q (period %s), using %s",
		ErrCourseMatchFailed, e.CourseCode, e.Label, e.Period, e.Placeholder)
}

func (e *CourseMatchError) Unwrap() error { return ErrCourseMatchFailed }

// ExchangeRateMissingError records a month converted with a fallback rate.
type ExchangeRateMissingError struct {
	Month         string
	FallbackMonth string
	Rate          float64
}

func (e *ExchangeRateMissingError) Error() string {
	return fmt.Sprintf("%s for %s, using %s rate %.2f", ErrExchangeRateMissing, e.Month, e.FallbackMonth, e.Rate)
}

func (e *ExchangeRateMissingError) Unwrap() error { return ErrExchangeRateMissing }
