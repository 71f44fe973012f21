package main

import (
	"errors"
	"testing"

	"github.com/pbaille/learnlog/internal/client"
	"github.com/stretchr/testify/assert"
)

func TestDescribe(t *testing.T) {
	assert.Equal(t, "boom", describe(errors.New("boom")))
	assert.Equal(t, "category already exists", describe(&client.APIError{Status: 409, Message: "category already exists"}))
	assert.Contains(t, describe(&client.APIError{Status: 401, Message: "invalid or expired token"}), "learnlog login")
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "a**e@example.com", maskEmail("anne@example.com"))
	assert.Equal(t, "é*è@example.com", maskEmail("éaè@example.com"))
	assert.Equal(t, "ab@example.com", maskEmail("ab@example.com"))
	assert.Equal(t, "not-an-email", maskEmail("not-an-email"))
}
