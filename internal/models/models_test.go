package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplicantForm_OmitsUnsetFields(t *testing.T) {
	age := 34
	a := Applicant{Surname: "Dela Cruz", GivenName: "Maria", Age: &age, CivilStatus: CivilStatusWidowed}

	raw, err := json.Marshal(a.Form())
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, map[string]interface{}{
		"Surname__c":      "Dela Cruz",
		"Given_Name__c":   "Maria",
		"Age__c":          34.0,
		"Civil_Status__c": "Widowed",
	}, fields)
}

func TestApplicationForm_ReadBack(t *testing.T) {
	body := `{"Id":"a0B5g000001AbCdEAK","Surname__c":"Santos","Given_Name__c":"Ana",
		"Age__c":29.0,"Monthly_Income__c":15000.5,"birthday_string__c":"1995-02-01"}`

	var form ApplicationForm
	require.NoError(t, json.Unmarshal([]byte(body), &form))

	view := form.View()
	assert.Equal(t, "a0B5g000001AbCdEAK", view.ID)
	assert.Equal(t, "Ana Santos", view.FullName())
	require.NotNil(t, view.Age)
	assert.Equal(t, 29, *view.Age)
	assert.Equal(t, "1995-02-01", view.DateOfBirth)
	require.NotNil(t, view.MonthlyIncome)
	assert.InDelta(t, 15000.5, *view.MonthlyIncome, 0.001)
}

func TestApplicant_IsEmpty(t *testing.T) {
	assert.True(t, Applicant{}.IsEmpty())
	assert.False(t, Applicant{Religion: "Catholic"}.IsEmpty())
}

func TestEnums(t *testing.T) {
	assert.True(t, CivilStatus("").Valid())
	assert.True(t, CivilStatusSeparated.Valid())
	assert.False(t, CivilStatus("Complicated").Valid())
	assert.True(t, SexFemale.Valid())
	assert.False(t, Sex("x").Valid())
}

func TestFamilyMemberRecord_CarriesOwner(t *testing.T) {
	rec := FamilyMember{Name: "Juan", Relationship: "Son"}.Record("a0B000000000001AAA")

	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Solo_Parent_Application_Form__c":"a0B000000000001AAA","Name":"Juan","Relationship__c":"Son"}`, string(raw))
}

func TestTicketCase(t *testing.T) {
	c := Ticket{AccountID: "001xx", Subject: "Status", Notes: "When?", ContactEmail: "a@b.c"}.Case()
	assert.Equal(t, "Web", c.Origin)
	assert.Equal(t, "When?", c.Description)
	assert.Equal(t, "a@b.c", c.SuppliedEmail)

	view := CaseRecord{CaseNumber: "00001026", Status: "New", SuppliedEmail: "a@b.c"}.View()
	assert.Equal(t, "00001026", view.TicketID)
	assert.Equal(t, "a@b.c", view.ContactEmail)
}
