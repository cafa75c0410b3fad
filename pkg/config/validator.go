package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Validator validates configuration comprehensively with clear error messages.
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast — stops at the
// first error). Store is validated before Vault since the vault key is only
// needed once there is something to decrypt.
func (v *Validator) ValidateAll() error {
	if err := v.validateStore(); err != nil {
		return fmt.Errorf("store validation failed: %w", err)
	}

	if err := v.validateVault(); err != nil {
		return fmt.Errorf("vault validation failed: %w", err)
	}

	if err := v.validateHTTP(); err != nil {
		return fmt.Errorf("http validation failed: %w", err)
	}

	if err := v.validateRuntime(); err != nil {
		return fmt.Errorf("runtime validation failed: %w", err)
	}

	if err := v.validateIngestion(); err != nil {
		return fmt.Errorf("ingestion validation failed: %w", err)
	}

	if err := v.validateAnalysis(); err != nil {
		return fmt.Errorf("analysis validation failed: %w", err)
	}

	return nil
}

func (v *Validator) validateStore() error {
	s := v.cfg.Store
	if s.Host == "" {
		return NewValidationError("store", "", "host", fmt.Errorf("required"))
	}
	if s.Port < 1 || s.Port > 65535 {
		return NewValidationError("store", "", "port", fmt.Errorf("must be between 1 and 65535, got %d", s.Port))
	}
	if s.Database == "" {
		return NewValidationError("store", "", "database", fmt.Errorf("required"))
	}
	if s.MaxConns < 1 {
		return NewValidationError("store", "", "max_conns", fmt.Errorf("must be at least 1, got %d", s.MaxConns))
	}
	if s.MinConns < 0 || s.MinConns > s.MaxConns {
		return NewValidationError("store", "", "min_conns", fmt.Errorf("must be between 0 and max_conns, got %d", s.MinConns))
	}
	if s.MaxConnLifetime != "" {
		if _, err := time.ParseDuration(s.MaxConnLifetime); err != nil {
			return NewValidationError("store", "", "max_conn_lifetime", fmt.Errorf("invalid duration %q: %w", s.MaxConnLifetime, err))
		}
	}
	if s.MaxConnIdleTime != "" {
		if _, err := time.ParseDuration(s.MaxConnIdleTime); err != nil {
			return NewValidationError("store", "", "max_conn_idle_time", fmt.Errorf("invalid duration %q: %w", s.MaxConnIdleTime, err))
		}
	}
	return nil
}

func (v *Validator) validateVault() error {
	vc := v.cfg.Vault
	if vc.KeyEnv == "" && vc.KeyFile == "" {
		return NewValidationError("vault", "", "key_env", fmt.Errorf("either key_env or key_file must be set"))
	}
	if vc.KeyEnv != "" {
		if _, ok := os.LookupEnv(vc.KeyEnv); !ok && vc.KeyFile == "" {
			return NewValidationError("vault", "", "key_env", fmt.Errorf("environment variable %s is not set", vc.KeyEnv))
		}
	}
	return nil
}

func (v *Validator) validateHTTP() error {
	h := v.cfg.HTTP
	if h.Addr == "" {
		return NewValidationError("http", "", "addr", fmt.Errorf("required"))
	}
	return nil
}

func (v *Validator) validateRuntime() error {
	if v.cfg.Runtime.GracefulShutdownTimeout <= 0 {
		return NewValidationError("runtime", "", "graceful_shutdown_timeout", fmt.Errorf("must be positive"))
	}
	return nil
}

var validEarlyAccessFilters = map[string]bool{"include": true, "exclude": true, "only": true}

func (v *Validator) validateIngestion() error {
	ing := v.cfg.Ingestion
	if ing.MaxReviews < 1 {
		return NewValidationError("ingestion", "", "max_reviews", fmt.Errorf("must be at least 1, got %d", ing.MaxReviews))
	}
	if ing.RateLimitRPM < 1 {
		return NewValidationError("ingestion", "", "rate_limit_rpm", fmt.Errorf("must be at least 1, got %d", ing.RateLimitRPM))
	}
	if !validEarlyAccessFilters[ing.EarlyAccess] {
		return NewValidationError("ingestion", "", "early_access", fmt.Errorf("must be one of include, exclude, only; got %q", ing.EarlyAccess))
	}
	if !validEarlyAccessFilters[ing.ReceivedForFree] {
		return NewValidationError("ingestion", "", "received_for_free", fmt.Errorf("must be one of include, exclude, only; got %q", ing.ReceivedForFree))
	}
	return nil
}

func (v *Validator) validateAnalysis() error {
	an := v.cfg.Analysis
	if an.Provider == "" {
		return NewValidationError("analysis", "", "provider", fmt.Errorf("required"))
	}
	if an.Model == "" {
		return NewValidationError("analysis", "", "model", fmt.Errorf("required"))
	}
	if an.ReviewsPerBatch < 1 {
		return NewValidationError("analysis", "", "reviews_per_batch", fmt.Errorf("must be at least 1, got %d", an.ReviewsPerBatch))
	}
	if an.BatchesPerRequest < 1 {
		return NewValidationError("analysis", "", "batches_per_request", fmt.Errorf("must be at least 1, got %d", an.BatchesPerRequest))
	}
	if an.ReasoningEffort != "" {
		effort := strings.ToLower(an.ReasoningEffort)
		if effort != "low" && effort != "medium" && effort != "high" {
			return NewValidationError("analysis", "", "reasoning_effort", fmt.Errorf("must be one of low, medium, high; got %q", an.ReasoningEffort))
		}
	}
	return nil
}
