package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/credit-engine/internal/allocation"
	"github.com/segyhp/credit-engine/internal/domain"
	customError "github.com/segyhp/credit-engine/pkg/errors"
	"github.com/segyhp/credit-engine/pkg/response"
	"github.com/segyhp/credit-engine/pkg/validation"
)

// ActorHeader carries the caller identity recorded in audit fields.
const ActorHeader = "X-Actor"

// LoanService is the engine surface exposed over HTTP.
type LoanService interface {
	RegisterClient(ctx context.Context, req *domain.RegisterClientRequest, actor string) (*domain.Client, error)
	GetClient(ctx context.Context, id uuid.UUID) (*domain.Client, error)
	SetClientStatus(ctx context.Context, id uuid.UUID, status domain.ClientStatus, actor string) (*domain.Client, error)
	VerifyClientCredit(ctx context.Context, id uuid.UUID) (*domain.ClientCreditReport, error)

	DisburseLoan(ctx context.Context, terms *domain.LoanTerms, actor string) (*domain.CreateLoanResponse, error)
	GetLoan(ctx context.Context, id uuid.UUID) (*domain.Loan, error)
	GetSchedule(ctx context.Context, id uuid.UUID) (*domain.ScheduleResponse, error)
	GetLoanBalanceSnapshot(ctx context.Context, id uuid.UUID, asOf *time.Time, materialize bool, actor string) (*domain.BalanceSnapshot, error)
	SettlementQuote(ctx context.Context, id uuid.UUID) (*allocation.Quote, error)
	RestructureLoan(ctx context.Context, id uuid.UUID, terms *domain.RestructureTerms, actor string) (*domain.CreateLoanResponse, error)
	WriteOffLoan(ctx context.Context, id uuid.UUID, reason, actor string) (*domain.Loan, error)
	ChangeLoanStatus(ctx context.Context, id uuid.UUID, status string) error

	RecordPayment(ctx context.Context, req *domain.RecordPaymentRequest, actor string) (*domain.Payment, error)
	ConfirmPayment(ctx context.Context, id uuid.UUID, actor string) (*domain.Payment, error)
	CancelPayment(ctx context.Context, id uuid.UUID, reason, actor string) (*domain.Payment, error)
	ReversePayment(ctx context.Context, id uuid.UUID, reason, actor string) (*domain.Payment, error)
	ListPayments(ctx context.Context, loanID uuid.UUID) ([]*domain.Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error)

	RescheduleInstallment(ctx context.Context, id uuid.UUID, req *domain.RescheduleRequest, actor string) (*domain.Installment, error)
	ForgiveInstallment(ctx context.Context, id uuid.UUID, reason, actor string) (*domain.Installment, error)
}

type LoanHandler struct {
	service   LoanService
	validator *validator.Validate
	log       logrus.FieldLogger
}

func NewLoanHandler(service LoanService, log logrus.FieldLogger) *LoanHandler {
	return &LoanHandler{
		service:   service,
		validator: validation.New(),
		log:       log,
	}
}

// Register mounts the API routes under router.
func (h *LoanHandler) Register(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/clients", h.RegisterClient).Methods(http.MethodPost)
	api.HandleFunc("/clients/{id}", h.GetClient).Methods(http.MethodGet)
	api.HandleFunc("/clients/{id}/status", h.SetClientStatus).Methods(http.MethodPatch)
	api.HandleFunc("/clients/{id}/credit", h.VerifyClientCredit).Methods(http.MethodGet)

	api.HandleFunc("/loans", h.DisburseLoan).Methods(http.MethodPost)
	api.HandleFunc("/loans/{id}", h.GetLoan).Methods(http.MethodGet)
	api.HandleFunc("/loans/{id}/schedule", h.GetSchedule).Methods(http.MethodGet)
	api.HandleFunc("/loans/{id}/balance", h.GetBalance).Methods(http.MethodGet)
	api.HandleFunc("/loans/{id}/settlement-quote", h.SettlementQuote).Methods(http.MethodGet)
	api.HandleFunc("/loans/{id}/restructure", h.RestructureLoan).Methods(http.MethodPost)
	api.HandleFunc("/loans/{id}/write-off", h.WriteOffLoan).Methods(http.MethodPost)
	api.HandleFunc("/loans/{id}/status", h.ChangeLoanStatus).Methods(http.MethodPatch)
	api.HandleFunc("/loans/{id}/payments", h.ListPayments).Methods(http.MethodGet)
	api.HandleFunc("/loans/{id}/payments", h.RecordLoanPayment).Methods(http.MethodPost)

	api.HandleFunc("/installments/{id}/payments", h.RecordInstallmentPayment).Methods(http.MethodPost)
	api.HandleFunc("/installments/{id}/reschedule", h.RescheduleInstallment).Methods(http.MethodPost)
	api.HandleFunc("/installments/{id}/forgive", h.ForgiveInstallment).Methods(http.MethodPost)

	api.HandleFunc("/payments/{id}", h.GetPayment).Methods(http.MethodGet)
	api.HandleFunc("/payments/{id}/confirm", h.ConfirmPayment).Methods(http.MethodPost)
	api.HandleFunc("/payments/{id}/cancel", h.CancelPayment).Methods(http.MethodPost)
	api.HandleFunc("/payments/{id}/reverse", h.ReversePayment).Methods(http.MethodPost)
}

func (h *LoanHandler) RegisterClient(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterClientRequest
	if !h.decode(w, r, &req) {
		return
	}
	client, err := h.service.RegisterClient(r.Context(), &req, actorOf(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, client)
}

func (h *LoanHandler) GetClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	client, err := h.service.GetClient(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, client)
}

func (h *LoanHandler) SetClientStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req domain.ClientStatusRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	client, err := h.service.SetClientStatus(r.Context(), id, req.Status, actorOf(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, client)
}

func (h *LoanHandler) VerifyClientCredit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	report, err := h.service.VerifyClientCredit(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, report)
}

func (h *LoanHandler) DisburseLoan(w http.ResponseWriter, r *http.Request) {
	var terms domain.LoanTerms
	if !h.decode(w, r, &terms) {
		return
	}
	res, err := h.service.DisburseLoan(r.Context(), &terms, actorOf(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, res)
}

func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	loan, err := h.service.GetLoan(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, loan)
}

func (h *LoanHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	schedule, err := h.service.GetSchedule(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, schedule)
}

// GetBalance serves ?as_of=YYYY-MM-DD (or RFC 3339) and ?materialize=true.
func (h *LoanHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	var asOf *time.Time
	if raw := query.Get("as_of"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			response.BadRequest(w, customError.ErrCodeInvalidInput, "as_of must be YYYY-MM-DD or RFC 3339")
			return
		}
		asOf = &t
	}
	materialize := false
	if raw := query.Get("materialize"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			response.BadRequest(w, customError.ErrCodeInvalidInput, "materialize must be a boolean")
			return
		}
		materialize = v
	}

	snap, err := h.service.GetLoanBalanceSnapshot(r.Context(), id, asOf, materialize, actorOf(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, snap)
}

func (h *LoanHandler) SettlementQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	quote, err := h.service.SettlementQuote(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, quote)
}

func (h *LoanHandler) RestructureLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var terms domain.RestructureTerms
	if !h.decode(w, r, &terms) {
		return
	}
	res, err := h.service.RestructureLoan(r.Context(), id, &terms, actorOf(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, res)
}

func (h *LoanHandler) WriteOffLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req domain.WriteOffRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	loan, err := h.service.WriteOffLoan(r.Context(), id, req.Reason, actorOf(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, loan)
}

func (h *LoanHandler) ChangeLoanStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req domain.StatusChangeRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	if err := h.service.ChangeLoanStatus(r.Context(), id, req.Status); err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, nil)
}

func (h *LoanHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	payments, err := h.service.ListPayments(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, payments)
}

func (h *LoanHandler) RecordLoanPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req domain.RecordPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.LoanID = id
	h.recordPayment(w, r, &req)
}

func (h *LoanHandler) RecordInstallmentPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req domain.RecordPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.InstallmentID = &id
	h.recordPayment(w, r, &req)
}

func (h *LoanHandler) recordPayment(w http.ResponseWriter, r *http.Request, req *domain.RecordPaymentRequest) {
	if req.RequestID == "" {
		req.RequestID = r.Header.Get("Idempotency-Key")
	}
	payment, err := h.service.RecordPayment(r.Context(), req, actorOf(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, payment)
}

func (h *LoanHandler) RescheduleInstallment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req domain.RescheduleRequest
	if !h.decode(w, r, &req) {
		return
	}
	inst, err := h.service.RescheduleInstallment(r.Context(), id, &req, actorOf(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, inst)
}

func (h *LoanHandler) ForgiveInstallment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req domain.ForgiveRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	inst, err := h.service.ForgiveInstallment(r.Context(), id, req.Reason, actorOf(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, inst)
}

func (h *LoanHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	payment, err := h.service.GetPayment(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, payment)
}

func (h *LoanHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	payment, err := h.service.ConfirmPayment(r.Context(), id, actorOf(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, payment)
}

func (h *LoanHandler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req domain.CancelPaymentRequest
	if r.ContentLength != 0 && !h.decodeValid(w, r, &req) {
		return
	}
	payment, err := h.service.CancelPayment(r.Context(), id, req.Reason, actorOf(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, payment)
}

func (h *LoanHandler) ReversePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req domain.ReversePaymentRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	payment, err := h.service.ReversePayment(r.Context(), id, req.Reason, actorOf(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, payment)
}

func (h *LoanHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, customError.ErrCodeInvalidInput, "Invalid request body")
		return false
	}
	return true
}

// decodeValid decodes and validates request DTOs the service does not check itself.
func (h *LoanHandler) decodeValid(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if !h.decode(w, r, dst) {
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		response.BadRequest(w, customError.ErrCodeInvalidInput, validation.Describe(err))
		return false
	}
	return true
}

// fail writes err as an error envelope. Internal failures are logged and their
// details withheld.
func (h *LoanHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var be *customError.BusinessError
	if !customError.As(err, &be) {
		h.log.WithError(err).WithField("path", r.URL.Path).Error("unhandled error")
		response.InternalServerError(w, "Internal server error")
		return
	}

	status := StatusFor(be.Code)
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).WithFields(logrus.Fields{"path": r.URL.Path, "code": be.Code}).Error("request failed")
		response.Error(w, status, response.ErrorBody{Code: be.Code, Message: "Internal server error"})
		return
	}
	response.Error(w, status, response.ErrorBody{Code: be.Code, Message: be.Message, EntityID: be.EntityID})
}

// StatusFor maps a business error code to an HTTP status.
func StatusFor(code string) int {
	switch code {
	case customError.ErrCodeNotFound:
		return http.StatusNotFound
	case customError.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case customError.ErrCodeIllegalTransition,
		customError.ErrCodeAlreadyReversed,
		customError.ErrCodeAlreadyExists,
		customError.ErrCodeDuplicateRequest,
		customError.ErrCodeInvalidState:
		return http.StatusConflict
	case customError.ErrCodeInvalidScheduleInput,
		customError.ErrCodeCreditLimitExceeded,
		customError.ErrCodeDisallowedOperation,
		customError.ErrCodeOverpayment,
		customError.ErrCodeInvalidPaymentAmount:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		response.BadRequest(w, customError.ErrCodeInvalidInput, "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func actorOf(r *http.Request) string {
	return r.Header.Get(ActorHeader)
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
