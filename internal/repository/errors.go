package repository

import "errors"

var (
	ErrCardNotFound     = errors.New("card not found")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrRuleNotFound     = errors.New("rule not found")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrDuplicatePayment = errors.New("payment reference already exists")
)
