package createticket

import (
	"context"
	"errors"
	"testing"

	"soloparent-workers/internal/audit"
	apperrors "soloparent-workers/internal/common/errors"
	"soloparent-workers/internal/common/logger"
	"soloparent-workers/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	accountID = "0015g00000AbCdEAAV"
	caseID    = "5005g00000XyZaBAAV"
)

type mockStore struct{ mock.Mock }

func (m *mockStore) Create(ctx context.Context, sobject string, fields interface{}) (string, error) {
	args := m.Called(ctx, sobject, fields)
	return args.String(0), args.Error(1)
}

func (m *mockStore) Retrieve(ctx context.Context, sobject, id string, fields []string, out interface{}) error {
	args := m.Called(ctx, sobject, id, fields)
	if rec, ok := args.Get(0).(models.CaseRecord); ok {
		*out.(*models.CaseRecord) = rec
	}
	return args.Error(1)
}

func createTestInput() *Input {
	return &Input{Ticket: models.Ticket{
		AccountID:    accountID,
		Type:         "Question",
		Status:       "New",
		Subject:      "ID card not yet released",
		Notes:        "Applied three weeks ago.",
		ContactEmail: "ana@example.ph",
	}}
}

func TestHandler_Execute_Success(t *testing.T) {
	store := &mockStore{}
	store.On("Create", mock.Anything, models.SObjectCase, mock.MatchedBy(func(c models.CaseRecord) bool {
		return c.Origin == "Web" && c.Description == "Applied three weeks ago." && c.SuppliedEmail == "ana@example.ph"
	})).Return(caseID, nil)
	store.On("Retrieve", mock.Anything, models.SObjectCase, caseID, []string{"CaseNumber"}).
		Return(models.CaseRecord{CaseNumber: "00001042"}, nil)

	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	dbMock.ExpectExec("INSERT INTO application_audit_log").
		WithArgs(sqlmock.AnyArg(), nil, audit.ActionTicketCreated, "created", nil, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	log := logger.NewTestLogger(t)
	out, err := NewHandler(LoadConfig(), store, audit.NewRecorder(db, log), log).Execute(context.Background(), createTestInput())
	require.NoError(t, err)
	assert.Equal(t, &Output{CaseID: caseID, CaseNumber: "00001042"}, out)
	store.AssertExpectations(t)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestHandler_Execute_ReadBackFailureStillSucceeds(t *testing.T) {
	store := &mockStore{}
	store.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(caseID, nil)
	store.On("Retrieve", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

	out, err := NewHandler(LoadConfig(), store, nil, logger.NewTestLogger(t)).Execute(context.Background(), createTestInput())
	require.NoError(t, err)
	assert.Equal(t, caseID, out.CaseID)
	assert.Empty(t, out.CaseNumber)
}

func TestHandler_Execute_CreateFailure(t *testing.T) {
	store := &mockStore{}
	store.On("Create", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("REQUIRED_FIELD_MISSING"))

	_, err := NewHandler(LoadConfig(), store, nil, logger.NewTestLogger(t)).Execute(context.Background(), createTestInput())
	assert.Equal(t, apperrors.ErrCodeTicketCreateFailed, apperrors.Normalize(err).Code)
	store.AssertNotCalled(t, "Retrieve", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_Execute_Validation(t *testing.T) {
	h := NewHandler(LoadConfig(), &mockStore{}, nil, logger.NewTestLogger(t))

	in := createTestInput()
	in.AccountID = "acct"
	_, err := h.Execute(context.Background(), in)
	assert.Contains(t, apperrors.Normalize(err).Details, "accountId")

	in = createTestInput()
	in.Subject = "  "
	_, err = h.Execute(context.Background(), in)
	assert.Contains(t, apperrors.Normalize(err).Details, "ticketSubject")
}
