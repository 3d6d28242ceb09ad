package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// Validate checks the settings every command needs. requireRemote adds the
// checks that only matter when the remote API will be called.
func (c Config) Validate(requireRemote bool) error {
	var errs ValidationErrors

	if requireRemote {
		if strings.TrimSpace(c.Remote.BaseURL) == "" {
			errs.Add("remote.baseURL", "is required (or set OFFERSYNC_API_BASE)")
		} else if u, err := url.Parse(c.Remote.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs.Add("remote.baseURL", "must be an absolute URL", c.Remote.BaseURL)
		}
	}
	if c.Remote.PageSize <= 0 {
		errs.Add("remote.pageSize", "must be positive", c.Remote.PageSize)
	}
	if c.Remote.MaxPages <= 0 {
		errs.Add("remote.maxPages", "must be positive", c.Remote.MaxPages)
	}
	if c.Remote.RequestTimeout <= 0 {
		errs.Add("remote.requestTimeout", "must be positive", c.Remote.RequestTimeout)
	}

	if err := ValidateOneOf("store.driver", c.Store.Driver, []string{StoreDriverSQLite, StoreDriverFile}); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if strings.TrimSpace(c.Store.DSN) == "" {
		errs.Add("store.dsn", "is required")
	}

	r := c.Reconcile
	if r.BatchSize <= 0 {
		errs.Add("reconcile.batchSize", "must be positive", r.BatchSize)
	}
	if r.RemoveBatchSize <= 0 {
		errs.Add("reconcile.removeBatchSize", "must be positive", r.RemoveBatchSize)
	}
	if r.MaxRetries < 0 {
		errs.Add("reconcile.maxRetries", "must not be negative", r.MaxRetries)
	}
	if r.BackoffBase < 0 || r.RateLimitDelay < 0 || r.RemoveRateLimitDelay < 0 {
		errs.Add("reconcile", "delays must not be negative")
	}
	if r.LockWaitBudget < 0 {
		errs.Add("reconcile.lockWaitBudget", "must not be negative", r.LockWaitBudget)
	}
	if r.LockBackoffFactor < 1 {
		errs.Add("reconcile.lockBackoffFactor", "must be at least 1", r.LockBackoffFactor)
	}
	if r.LockBackoffCap < r.LockBackoffStart {
		errs.Add("reconcile.lockBackoffCap", "must not be below lockBackoffStart", r.LockBackoffCap)
	}
	if r.Concurrency <= 0 {
		errs.Add("reconcile.concurrency", "must be positive", r.Concurrency)
	}
	if len(r.Operations) == 0 {
		errs.Add("reconcile.operations", "must name at least one operation")
	}
	for _, op := range r.Operations {
		if err := ValidateOneOf("reconcile.operations", op, []string{OperationRemove, OperationAdd}); err != nil {
			errs = append(errs, err.(ValidationError))
		}
	}

	if c.Report.SampleSize < 0 {
		errs.Add("report.sampleSize", "must not be negative", c.Report.SampleSize)
	}
	if err := ValidateOneOf("report.format", c.Report.Format, []string{ReportFormatTable, ReportFormatJSON, ReportFormatYAML}); err != nil {
		errs = append(errs, err.(ValidationError))
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
