package utils

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
)

// Retry ejecuta fn hasta attempts veces con backoff exponencial a partir de delay.
// Los errores de negocio (validación, no encontrado, conflicto de versión, terminal) no se reintentan.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = delay
	policy.MaxElapsedTime = 0

	var retries uint64
	if attempts > 1 {
		retries = uint64(attempts - 1)
	}

	return backoff.Retry(func() error {
		err := fn()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, retries), ctx))
}

func retryable(err error) bool {
	switch {
	case sharedDomain.IsValidation(err),
		sharedDomain.IsTerminal(err),
		errors.Is(err, sharedDomain.ErrNotFound),
		errors.Is(err, sharedDomain.ErrConcurrentModification),
		errors.Is(err, sharedDomain.ErrAlreadyProcessing),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
