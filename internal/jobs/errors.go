package jobs

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrTerminal   = errors.New("job already terminal")
	ErrStageOrder = errors.New("stage transition out of order")
	ErrNotReady   = errors.New("job not finished")
)

const (
	ErrorCodeValidation = "VALIDATION_ERROR"
	ErrorCodeExtraction = "EXTRACTION_ERROR"
	ErrorCodeLLM        = "LLM_ERROR"
	ErrorCodeTimeout    = "TIMEOUT"
	ErrorCodeCancelled  = "CANCELLED"
	ErrorCodeInternal   = "INTERNAL_ERROR"
)
