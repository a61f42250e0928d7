/*
validate.go - Defensive input validation

PURPOSE:
  The request layer is responsible for syntactic validation before calling
  the core. These checks are the last line of defense: malformed input that
  slips past the outer validator is rejected here rather than persisted.

BOUNDS:
  title        5–100 characters
  description  10–500 characters
  location     lat in [-90, 90], lng in [-180, 180]
  imageUrl     required, otherwise opaque
*/
package core

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	TitleMinLen       = 5
	TitleMaxLen       = 100
	DescriptionMinLen = 10
	DescriptionMaxLen = 500
)

// ValidateSubmission checks the fields of a new report. Returns a
// *ValidationError naming the first offending field.
func ValidateSubmission(title, description string, loc Location, imageURL string, reporterID UserID) error {
	if reporterID == "" {
		return &ValidationError{Field: "reporterId", Message: "reporter is required"}
	}
	if err := validateLength("title", title, TitleMinLen, TitleMaxLen); err != nil {
		return err
	}
	if err := validateLength("description", description, DescriptionMinLen, DescriptionMaxLen); err != nil {
		return err
	}
	if err := ValidateLocation(loc); err != nil {
		return err
	}
	if strings.TrimSpace(imageURL) == "" {
		return &ValidationError{Field: "imageUrl", Message: "image URL is required"}
	}
	return nil
}

// ValidateLocation checks coordinate bounds.
func ValidateLocation(loc Location) error {
	if loc.Lat < -90 || loc.Lat > 90 {
		return &ValidationError{Field: "location.lat", Message: "latitude must be between -90 and 90"}
	}
	if loc.Lng < -180 || loc.Lng > 180 {
		return &ValidationError{Field: "location.lng", Message: "longitude must be between -180 and 180"}
	}
	return nil
}

func validateLength(field, value string, min, max int) error {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	if n < min {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be at least %d characters", min)}
	}
	if n > max {
		return &ValidationError{Field: field, Message: fmt.Sprintf("cannot exceed %d characters", max)}
	}
	return nil
}
