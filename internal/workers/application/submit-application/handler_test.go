package submitapplication

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"soloparent-workers/internal/audit"
	apperrors "soloparent-workers/internal/common/errors"
	"soloparent-workers/internal/common/logger"
	"soloparent-workers/internal/models"
	"soloparent-workers/internal/submission"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSubmitter struct{ mock.Mock }

func (m *mockSubmitter) Submit(ctx context.Context, req submission.Request) (submission.Receipt, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(submission.Receipt), args.Error(1)
}

func createTestInput() *Input {
	data := base64.StdEncoding.EncodeToString([]byte("%PDF-1.4"))
	return &Input{
		PersonalInfo: models.Applicant{Surname: "Reyes", GivenName: "Ana", CivilStatus: models.CivilStatusWidowed},
		FamilyComposition: []models.FamilyMember{
			{Name: "Ben Reyes", Relationship: "Son"},
			{Name: "Cara Reyes", Relationship: "Daughter"},
		},
		Attachments: map[string]json.RawMessage{
			"birthCert": json.RawMessage(`{"name":"psa.pdf","data":"` + data + `"}`),
		},
	}
}

func newTestHandler(t *testing.T, sub Submitter, max int) (*Handler, sqlmock.Sqlmock) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	log := logger.NewTestLogger(t)
	return NewHandler(&Config{MaxAttachments: max}, sub, audit.NewRecorder(db, log), nil, log), dbMock
}

func TestHandler_Execute_Success(t *testing.T) {
	sub := &mockSubmitter{}
	sub.On("Submit", mock.Anything, mock.MatchedBy(func(req submission.Request) bool {
		return req.Applicant.Surname == "Reyes" && len(req.Members) == 2 &&
			len(req.Attachments) == 1 && req.Attachments[0].Name == "psa.pdf"
	})).Return(submission.Receipt{
		ApplicationID: "a0F000000000001",
		MemberIDs:     []string{"m1", "m2"},
		DocumentIDs:   []string{"d1"},
		LinkIDs:       []string{"l1"},
	}, nil)

	h, dbMock := newTestHandler(t, sub, 0)
	dbMock.ExpectExec("INSERT INTO application_audit_log").
		WithArgs(sqlmock.AnyArg(), "a0F000000000001", audit.ActionSubmitted, StatusCommitted, nil, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	out, err := h.Execute(context.Background(), createTestInput())
	require.NoError(t, err)
	assert.Equal(t, &Output{
		ApplicationID:     "a0F000000000001",
		SubmissionStatus:  StatusCommitted,
		FamilyMemberCount: 2,
		AttachmentCount:   1,
	}, out)
	sub.AssertExpectations(t)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestHandler_Execute_SubmissionFailure(t *testing.T) {
	subErr := &submission.Error{
		Kind:  submission.KindAttachmentUploadFailed,
		Cause: errors.New("STORAGE_LIMIT_EXCEEDED"),
		Rollback: []submission.RollbackFailure{
			{SObject: models.SObjectContentDocument, ID: "069000000000001", Err: errors.New("UNABLE_TO_LOCK_ROW")},
		},
	}
	sub := &mockSubmitter{}
	sub.On("Submit", mock.Anything, mock.Anything).Return(submission.Receipt{}, subErr)

	h, dbMock := newTestHandler(t, sub, 0)
	dbMock.ExpectExec("INSERT INTO application_audit_log").
		WithArgs(sqlmock.AnyArg(), nil, audit.ActionSubmitFailed, "failed", "ATTACHMENT_UPLOAD_FAILED", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	out, err := h.Execute(context.Background(), createTestInput())
	assert.Nil(t, out)
	assert.Same(t, subErr, err)
	assert.NoError(t, dbMock.ExpectationsWereMet())

	vars := failureVariables(err)
	assert.Equal(t, "ATTACHMENT_UPLOAD_FAILED", vars["errorCode"])
	assert.Equal(t, true, vars["rollbackIncomplete"])
	assert.Nil(t, failureVariables(errors.New("other")))
}

func TestHandler_Execute_InvalidAttachment(t *testing.T) {
	sub := &mockSubmitter{}
	h, _ := newTestHandler(t, sub, 0)

	input := createTestInput()
	input.Attachments["proofOfIncome"] = json.RawMessage(`{"name":"payslip.pdf","data":""}`)

	_, err := h.Execute(context.Background(), input)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeAttachmentInvalid, apperrors.Normalize(err).Code)
	sub.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestHandler_Execute_TooManyAttachments(t *testing.T) {
	sub := &mockSubmitter{}
	h, _ := newTestHandler(t, sub, 1)

	data := base64.StdEncoding.EncodeToString([]byte("x"))
	input := createTestInput()
	input.Attachments["proofOfIncome"] = json.RawMessage(`[{"name":"a","data":"` + data + `"},{"name":"b","data":"` + data + `"}]`)

	_, err := h.Execute(context.Background(), input)
	require.Error(t, err)
	assert.Contains(t, apperrors.Normalize(err).Details, `"proofOfIncome" has 2 files`)
}

func TestParseInput(t *testing.T) {
	input, err := parseInput(`{"personalInfo":{"surname":"Reyes","givenName":"Ana","age":41},"familyComposition":[{"name":"Ben"}]}`)
	require.NoError(t, err)
	assert.Equal(t, 41, *input.PersonalInfo.Age)
	assert.Len(t, input.FamilyComposition, 1)

	tests := []struct {
		name      string
		variables string
		contains  string
	}{
		{"missing personal info", `{}`, "personalInfo"},
		{"missing given name", `{"personalInfo":{"surname":"Reyes"}}`, "personalInfo.givenName"},
		{"bad civil status", `{"personalInfo":{"surname":"R","givenName":"A","civilStatus":"Divorced"}}`, "civilStatus"},
		{"member without name", `{"personalInfo":{"surname":"R","givenName":"A"},"familyComposition":[{"age":3}]}`, "name"},
		{"not json", `{`, "(root)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseInput(tt.variables)
			require.Error(t, err)
			stdErr := apperrors.Normalize(err)
			assert.Equal(t, apperrors.ErrCodeValidationFailed, stdErr.Code)
			assert.Contains(t, stdErr.Details, tt.contains)
		})
	}
}
