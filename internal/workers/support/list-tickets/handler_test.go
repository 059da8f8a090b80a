package listtickets

import (
	"context"
	"errors"
	"testing"

	apperrors "soloparent-workers/internal/common/errors"
	"soloparent-workers/internal/common/logger"
	"soloparent-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const accountID = "0015g00000AbCdEAAV"

type mockQuerier struct{ mock.Mock }

func (m *mockQuerier) Query(ctx context.Context, soql string, out interface{}) error {
	args := m.Called(ctx, soql)
	if cases, ok := args.Get(0).([]models.CaseRecord); ok {
		*out.(*[]models.CaseRecord) = cases
	}
	return args.Error(1)
}

func TestHandler_Execute_Success(t *testing.T) {
	store := &mockQuerier{}
	store.On("Query", mock.Anything,
		"SELECT CreatedDate, CaseNumber, Type, Status, Description, SuppliedEmail FROM Case WHERE AccountId = '0015g00000AbCdEAAV' ORDER BY CreatedDate DESC",
	).Return([]models.CaseRecord{
		{CaseNumber: "00001042", Type: "Question", Status: "New", Description: "ID card", SuppliedEmail: "ana@example.ph", CreatedDate: "2026-03-01T02:00:00.000+0000"},
	}, nil)

	out, err := NewHandler(LoadConfig(), store, logger.NewTestLogger(t)).Execute(context.Background(), &Input{AccountID: accountID})
	require.NoError(t, err)
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "00001042", out.Tickets[0].TicketID)
	assert.Equal(t, "ana@example.ph", out.Tickets[0].ContactEmail)
	store.AssertExpectations(t)
}

func TestHandler_Execute_RejectsInjection(t *testing.T) {
	store := &mockQuerier{}
	_, err := NewHandler(LoadConfig(), store, logger.NewTestLogger(t)).Execute(context.Background(), &Input{AccountID: "x' OR Id != '"})
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.Normalize(err).Code)
	store.AssertNotCalled(t, "Query", mock.Anything, mock.Anything)
}

func TestHandler_Execute_QueryFailure(t *testing.T) {
	store := &mockQuerier{}
	store.On("Query", mock.Anything, mock.Anything).Return(nil, errors.New("INVALID_SESSION_ID"))
	_, err := NewHandler(LoadConfig(), store, logger.NewTestLogger(t)).Execute(context.Background(), &Input{AccountID: accountID})
	assert.Equal(t, apperrors.ErrCodeRecordQueryFailed, apperrors.Normalize(err).Code)
}

func TestHandler_Execute_Empty(t *testing.T) {
	store := &mockQuerier{}
	store.On("Query", mock.Anything, mock.Anything).Return([]models.CaseRecord{}, nil)
	out, err := NewHandler(LoadConfig(), store, logger.NewTestLogger(t)).Execute(context.Background(), &Input{AccountID: accountID})
	require.NoError(t, err)
	assert.NotNil(t, out.Tickets)
	assert.Zero(t, out.Count)
}
