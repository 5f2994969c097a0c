package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/credit-engine/internal/domain"
	"github.com/segyhp/credit-engine/internal/ledger"
	"github.com/segyhp/credit-engine/internal/repository"
	customError "github.com/segyhp/credit-engine/pkg/errors"
	"github.com/segyhp/credit-engine/pkg/validation"
)

// RegisterClient creates a borrower with no credit in use. The document pair is
// unique.
func (s *LoanService) RegisterClient(ctx context.Context, req *domain.RegisterClientRequest, actor string) (*domain.Client, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, customError.WrapInvalidInput(validation.Describe(err))
	}

	now := s.now()
	client := &domain.Client{
		ID:              uuid.New(),
		FullName:        strings.TrimSpace(req.FullName),
		DocumentType:    req.DocumentType,
		DocumentNumber:  strings.TrimSpace(req.DocumentNumber),
		Email:           req.Email,
		Phone:           req.Phone,
		MonthlyIncome:   req.MonthlyIncome,
		MaxCreditLimit:  req.MaxCreditLimit,
		UsedCreditLimit: decimal.Zero,
		Status:          domain.ClientStatusActive,
		CreatedBy:       actor,
		UpdatedBy:       actor,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	client.RecomputeAvailable()

	if err := s.store.Clients().Create(ctx, client); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"client_id": client.ID, "actor": actor}).Info("client registered")
	return client, nil
}

func (s *LoanService) GetClient(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	return s.store.Clients().GetByID(ctx, id)
}

// SetClientStatus activates, deactivates or blocks a client. Only active clients can
// take new loans; existing loans are not affected.
func (s *LoanService) SetClientStatus(ctx context.Context, id uuid.UUID, status domain.ClientStatus, actor string) (*domain.Client, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, customError.WrapInvalidInput("unrecognized client status " + string(status))
	}

	var out *domain.Client
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		client, err := tx.Clients().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		client.Status = status
		touchClient(client, actor, s.now())
		out = client
		return tx.Clients().Update(ctx, client)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"client_id": id, "status": status, "actor": actor}).Info("client status changed")
	return out, nil
}

// VerifyClientCredit compares the client's used credit with the principal balance
// of its loans, read from one snapshot so no concurrent write is half seen.
func (s *LoanService) VerifyClientCredit(ctx context.Context, clientID uuid.UUID) (*domain.ClientCreditReport, error) {
	var report domain.ClientCreditReport
	err := s.store.ReadInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		client, err := tx.Clients().GetByID(ctx, clientID)
		if err != nil {
			return err
		}
		loans, err := tx.Loans().ListByClient(ctx, clientID)
		if err != nil {
			return err
		}
		report = ledger.VerifyClient(client, loans)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}
