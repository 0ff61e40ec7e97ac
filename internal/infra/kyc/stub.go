package kyc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Adekabang/DigitalID-sub000/internal/core/domain"
	"github.com/Adekabang/DigitalID-sub000/internal/core/port"
)

// StubProvider is a local stand-in for the external KYC provider used in
// development and tests. With approveAll set it confirms everything;
// otherwise a "deny" marker in the claim metadata produces a denial so
// rejection paths can be exercised without a real provider.
type StubProvider struct {
	approveAll bool
	logger     *zap.Logger
}

// NewStubProvider constructs the stub.
func NewStubProvider(approveAll bool, logger *zap.Logger) *StubProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StubProvider{approveAll: approveAll, logger: logger}
}

// Verify returns a canned verdict without any network call.
func (s *StubProvider) Verify(_ context.Context, subject string, claimType domain.ClaimType, metadata string) (port.KYCResult, error) {
	if !s.approveAll && strings.Contains(metadata, "deny") {
		s.logger.Info("stub kyc denial",
			zap.String("subject", subject),
			zap.String("claim_type", string(claimType)))
		return port.KYCResult{Reason: "stub provider denial"}, nil
	}

	s.logger.Info("stub kyc approval",
		zap.String("subject", subject),
		zap.String("claim_type", string(claimType)))

	return port.KYCResult{
		Approved: true,
		Payload:  fmt.Sprintf("stub:%s:%s", claimType, time.Now().UTC().Format(time.RFC3339)),
	}, nil
}

var _ port.KYCProvider = (*StubProvider)(nil)
