package gateway

import "context"

// Stub is a no-op provider for development; every transaction checks out and
// verifies as paid.
type Stub struct{}

func (s *Stub) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	return &InitiateResult{
		CheckoutURL:   "https://checkout.stub.local/" + req.Reference,
		TransactionID: req.Reference,
	}, nil
}

func (s *Stub) Verify(ctx context.Context, transactionID string) (*VerifyResult, error) {
	return &VerifyResult{
		Status:        "success",
		TransactionID: transactionID,
		PaymentMethod: "stub",
	}, nil
}

func (s *Stub) Status(ctx context.Context, transactionID string) (string, error) {
	return StatusCompleted, nil
}
