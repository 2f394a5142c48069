package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Date  string `validate:"required,caldate"`
	Start string `validate:"required,clock"`
	Cap   int    `validate:"gte=1"`
}

func TestValidate(t *testing.T) {
	assert.Nil(t, Validate(sample{Date: "2026-10-19", Start: "18:00", Cap: 1}))

	errs := Validate(sample{Date: "19.10.2026", Start: "6pm", Cap: 0})
	assert.Equal(t, "caldate", errs["Date"])
	assert.Equal(t, "clock", errs["Start"])
	assert.Equal(t, "gte", errs["Cap"])
}
