package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/palisade-sh/palisade/internal/core/domain"
	"github.com/palisade-sh/palisade/internal/core/ports"
)

// alertThreshold is the policy confidence above which a blocked request
// raises an alert.
const alertThreshold = 0.8

// Service applies a policy decision exactly once per request ID. Replays
// return the recorded outcome without re-logging or re-alerting.
type Service struct {
	store   ports.IdempotencyStore
	alerter ports.Alerter
	tenant  ports.TenantProvider
	logger  *slog.Logger
}

func New(store ports.IdempotencyStore, alerter ports.Alerter, tenant ports.TenantProvider, logger *slog.Logger) *Service {
	return &Service{store: store, alerter: alerter, tenant: tenant, logger: logger}
}

// Execute logs the decision, raises alerts for high-confidence blocks and
// records the outcome for idempotency.
func (s *Service) Execute(ctx context.Context, decision *domain.PolicyDecision, signals *domain.MLSignals, pre *domain.PreprocessedText, reqCtx domain.RequestContext) (*domain.ActionOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if existing, ok := s.store.Seen(reqCtx.RequestID); ok {
		s.logger.Debug("request already processed", "request_id", reqCtx.RequestID)
		replay := *existing
		replay.Replayed = true
		return &replay, nil
	}

	outcome := &domain.ActionOutcome{
		RequestID: reqCtx.RequestID,
		Action:    domain.ActionAllow,
		Reason:    decision.Reason,
		Timestamp: time.Now().UTC(),
	}

	if decision.Blocked {
		outcome.Action = domain.ActionBlock
		s.logger.Warn("request blocked",
			"request_id", reqCtx.RequestID,
			"reason", decision.Reason,
			"confidence", decision.Confidence,
			"matched_rule", decision.MatchedRule,
		)

		if s.alerter != nil && decision.Confidence > alertThreshold {
			s.alerter.Alert(ctx, domain.Alert{
				RequestID:  reqCtx.RequestID,
				Severity:   domain.AlertSeverityFor(decision.Confidence),
				Reason:     decision.Reason,
				Confidence: decision.Confidence,
				TenantID:   s.tenant.TenantID(reqCtx),
				Timestamp:  outcome.Timestamp,
			})
			outcome.Alerted = true
		}
	} else {
		s.logger.Info("request allowed",
			"request_id", reqCtx.RequestID,
			"confidence", decision.Confidence,
		)
	}

	s.store.Record(reqCtx.RequestID, outcome)
	return outcome, nil
}
