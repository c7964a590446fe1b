package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type correlationKey struct{}

// WithCorrelationID guarda el correlation id de la cadena causal en el contexto.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFrom devuelve el correlation id del contexto o uno nuevo si no hay.
func CorrelationIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

type redriveKey struct{}

// WithRedrive marca el contexto de un mensaje que un operador reenvió desde la DLQ.
func WithRedrive(ctx context.Context) context.Context {
	return context.WithValue(ctx, redriveKey{}, true)
}

// IsRedrive informa si el mensaje en curso viene de un reenvío de la DLQ.
// Los consumidores lo usan para reintentar trabajo que su hook de DLQ dio por fallido.
func IsRedrive(ctx context.Context) bool {
	v, _ := ctx.Value(redriveKey{}).(bool)
	return v
}

// ConsistencyTier es la política de publicación de un command handler.
//   - TierCP: tras confirmar la transacción se avisa al relayer para publicar sin esperar al siguiente sondeo.
//   - TierAP: la publicación queda en manos del sondeo periódico.
//
// En ambos casos el evento viaja por el outbox.
type ConsistencyTier string

const (
	TierCP ConsistencyTier = "cp"
	TierAP ConsistencyTier = "ap"
)

// ParseConsistencyTier interpreta "cp" o "ap".
func ParseConsistencyTier(s string) (ConsistencyTier, error) {
	switch ConsistencyTier(strings.ToLower(s)) {
	case TierCP:
		return TierCP, nil
	case TierAP:
		return TierAP, nil
	}
	return "", fmt.Errorf("unknown consistency tier %q", s)
}

// AfterCommit aplica la política del tier una vez confirmada la escritura.
func (t ConsistencyTier) AfterCommit(n OutboxNotifier) {
	if t == TierCP && n != nil {
		n.Nudge()
	}
}

// CommandPolicy agrupa lo que un command handler hace tras confirmar una escritura.
type CommandPolicy struct {
	Tier     ConsistencyTier
	Notifier OutboxNotifier
}

// AfterCommit aplica el tier configurado. Sin tier se comporta como AP.
func (p CommandPolicy) AfterCommit() {
	p.Tier.AfterCommit(p.Notifier)
}
