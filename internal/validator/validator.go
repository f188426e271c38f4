package validator

import (
	"regexp"
)

var symbolRegex = regexp.MustCompile(`^[A-Z]{1,5}$`)

type Validator struct {
	Errors map[string]string
}

func New() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

func (v *Validator) AddError(key, message string) {
	if _, exists := v.Errors[key]; !exists {
		v.Errors[key] = message
	}
}

func (v *Validator) Check(ok bool, key, message string) {
	if !ok {
		v.AddError(key, message)
	}
}

func (v *Validator) ValidateSymbol(symbol string) {
	v.Check(symbolRegex.MatchString(symbol), "symbol", "must be 1-5 uppercase letters")
}

func (v *Validator) ValidatePositive(value float64, key string) {
	v.Check(value > 0, key, "must be greater than zero")
}
