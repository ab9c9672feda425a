package services

import "montisprint/internal/repositories"

// Re-exported storage sentinels so handlers only depend on the services
// package for error classification.
var (
	ErrTokenInvalid     = repositories.ErrTokenInvalid
	ErrTokenAlreadyUsed = repositories.ErrTokenAlreadyUsed
	ErrTokenExpired     = repositories.ErrTokenExpired
	ErrPrinterNotFound  = repositories.ErrPrinterNotFound
)
