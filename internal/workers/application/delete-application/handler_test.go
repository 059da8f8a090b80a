package deleteapplication

import (
	"context"
	"errors"
	"testing"

	"soloparent-workers/internal/audit"
	apperrors "soloparent-workers/internal/common/errors"
	"soloparent-workers/internal/common/logger"
	"soloparent-workers/internal/common/salesforce"
	"soloparent-workers/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const appID = "a0F5g000001AbCdEAK"

type mockStore struct{ mock.Mock }

func (m *mockStore) DocumentLinks(ctx context.Context, entityID string) ([]salesforce.DocumentLink, error) {
	args := m.Called(ctx, entityID)
	links, _ := args.Get(0).([]salesforce.DocumentLink)
	return links, args.Error(1)
}

func (m *mockStore) Destroy(ctx context.Context, sobject string, ids ...string) ([]salesforce.DeleteResult, error) {
	args := m.Called(ctx, sobject, ids)
	results, _ := args.Get(0).([]salesforce.DeleteResult)
	return results, args.Error(1)
}

func ok(id string) salesforce.DeleteResult {
	return salesforce.DeleteResult{ID: id, Success: true}
}

func failed(id, code string) salesforce.DeleteResult {
	return salesforce.DeleteResult{ID: id, Errors: []salesforce.ErrorDetail{{StatusCode: code, Message: code}}}
}

func TestHandler_Execute_DeletesFormThenDocuments(t *testing.T) {
	store := &mockStore{}
	store.On("DocumentLinks", mock.Anything, appID).Return([]salesforce.DocumentLink{
		{ID: "06A000000000001", ContentDocumentID: "069000000000001"},
		{ID: "06A000000000002", ContentDocumentID: "069000000000002"},
		{ID: "06A000000000003", ContentDocumentID: "069000000000002"},
	}, nil)
	form := store.On("Destroy", mock.Anything, models.SObjectApplicationForm, []string{appID}).
		Return([]salesforce.DeleteResult{ok(appID)}, nil)
	store.On("Destroy", mock.Anything, models.SObjectContentDocument, []string{"069000000000001", "069000000000002"}).
		Return([]salesforce.DeleteResult{ok("069000000000001"), failed("069000000000002", "INSUFFICIENT_ACCESS_OR_READONLY")}, nil).
		NotBefore(form)

	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	dbMock.ExpectExec("INSERT INTO application_audit_log").
		WithArgs(sqlmock.AnyArg(), appID, audit.ActionDeleted, "deleted", nil, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	log := logger.NewTestLogger(t)
	h := NewHandler(LoadConfig(), store, nil, nil, audit.NewRecorder(db, log), log)
	out, err := h.Execute(context.Background(), &Input{ApplicationID: appID})
	require.NoError(t, err)
	assert.True(t, out.Deleted)
	assert.Equal(t, 1, out.DocumentsDeleted)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "069000000000002")
	store.AssertExpectations(t)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestHandler_Execute_NoDocuments(t *testing.T) {
	store := &mockStore{}
	store.On("DocumentLinks", mock.Anything, appID).Return(nil, nil)
	store.On("Destroy", mock.Anything, models.SObjectApplicationForm, []string{appID}).
		Return([]salesforce.DeleteResult{ok(appID)}, nil).Once()

	h := NewHandler(LoadConfig(), store, nil, nil, nil, logger.NewTestLogger(t))
	out, err := h.Execute(context.Background(), &Input{ApplicationID: appID})
	require.NoError(t, err)
	assert.Zero(t, out.DocumentsDeleted)
	assert.Empty(t, out.Warnings)
	store.AssertExpectations(t)
}

func TestHandler_Execute_FormErrors(t *testing.T) {
	tests := []struct {
		name    string
		results []salesforce.DeleteResult
		err     error
		code    apperrors.ErrorCode
	}{
		{"already deleted", []salesforce.DeleteResult{failed(appID, "ENTITY_IS_DELETED")}, nil, apperrors.ErrCodeRecordNotFound},
		{"unknown id", []salesforce.DeleteResult{failed(appID, "INVALID_CROSS_REFERENCE_KEY")}, nil, apperrors.ErrCodeRecordNotFound},
		{"locked", []salesforce.DeleteResult{failed(appID, "UNABLE_TO_LOCK_ROW")}, nil, apperrors.ErrCodeRecordDeleteFailed},
		{"transport", nil, errors.New("connection refused"), apperrors.ErrCodeRecordDeleteFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{}
			store.On("DocumentLinks", mock.Anything, appID).Return([]salesforce.DocumentLink{{ContentDocumentID: "069000000000001"}}, nil)
			store.On("Destroy", mock.Anything, models.SObjectApplicationForm, []string{appID}).Return(tt.results, tt.err)

			h := NewHandler(LoadConfig(), store, nil, nil, nil, logger.NewTestLogger(t))
			_, err := h.Execute(context.Background(), &Input{ApplicationID: appID})
			assert.Equal(t, tt.code, apperrors.Normalize(err).Code)
			store.AssertNotCalled(t, "Destroy", mock.Anything, models.SObjectContentDocument, mock.Anything)
		})
	}
}

func TestHandler_Execute_InvalidID(t *testing.T) {
	store := &mockStore{}
	h := NewHandler(LoadConfig(), store, nil, nil, nil, logger.NewTestLogger(t))
	_, err := h.Execute(context.Background(), &Input{ApplicationID: "bad"})
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.Normalize(err).Code)
	store.AssertNotCalled(t, "DocumentLinks", mock.Anything, mock.Anything)
}
