package config

import (
	"errors"
	"fmt"
)

// Validate reports every missing or inconsistent setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("missing required env DATABASE_URL"))
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT out of range: %d", c.ServerPort))
	}
	if c.OTPMaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("OTP_MAX_ATTEMPTS must be positive: %d", c.OTPMaxAttempts))
	}
	if c.IsProduction() && c.OTPEchoCode {
		errs = append(errs, errors.New("OTP_ECHO_CODE must be off in production"))
	}
	return errors.Join(errs...)
}
