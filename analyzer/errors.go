package analyzer

import "errors"

var (
	// ErrInsufficientData is recorded on a result when no threshold has
	// collected enough peaks for an estimate yet
	ErrInsufficientData = errors.New("not enough peaks for a reliable detection")

	// ErrUnknownOption is returned for configuration keys the analyzer does not recognise
	ErrUnknownOption = errors.New("unknown option")

	// ErrInvalidOptionValue is returned when an option value cannot be coerced
	ErrInvalidOptionValue = errors.New("invalid option value")

	// ErrEmptyBlock is recorded when a zero-length block is submitted
	ErrEmptyBlock = errors.New("empty sample block")

	// ErrInvalidSampleRate is recorded when the sample rate is not positive
	ErrInvalidSampleRate = errors.New("invalid sample rate")
)
