package models

import "strings"

// SObject API names.
const (
	SObjectApplicationForm     = "Solo_Parent_Application_Form__c"
	SObjectFamilyMember        = "Family_Member__c"
	SObjectContentVersion      = "ContentVersion"
	SObjectContentDocument     = "ContentDocument"
	SObjectContentDocumentLink = "ContentDocumentLink"
	SObjectCase                = "Case"
)

type CivilStatus string

const (
	CivilStatusSingle    CivilStatus = "Single"
	CivilStatusMarried   CivilStatus = "Married"
	CivilStatusWidowed   CivilStatus = "Widowed"
	CivilStatusSeparated CivilStatus = "Separated"
	CivilStatusAnnulled  CivilStatus = "Annulled"
)

// Valid reports whether c is a known value. Empty is valid (field not provided).
func (c CivilStatus) Valid() bool {
	switch c {
	case "", CivilStatusSingle, CivilStatusMarried, CivilStatusWidowed, CivilStatusSeparated, CivilStatusAnnulled:
		return true
	}
	return false
}

type Sex string

const (
	SexMale   Sex = "Male"
	SexFemale Sex = "Female"
)

func (s Sex) Valid() bool {
	return s == "" || s == SexMale || s == SexFemale
}

// Applicant is the caller-facing personal information of a solo parent application.
type Applicant struct {
	Surname               string      `json:"surname"`
	GivenName             string      `json:"givenName"`
	MiddleName            string      `json:"middleName,omitempty"`
	Extension             string      `json:"extension,omitempty"`
	CivilStatus           CivilStatus `json:"civilStatus,omitempty"`
	Sex                   Sex         `json:"sex,omitempty"`
	Age                   *int        `json:"age,omitempty"`
	Email                 string      `json:"email,omitempty"`
	DateOfBirth           string      `json:"dateOfBirth,omitempty"`
	PlaceOfBirth          string      `json:"placeOfBirth,omitempty"`
	Religion              string      `json:"religion,omitempty"`
	MobileNumber          string      `json:"mobileNumber,omitempty"`
	LandlineNumber        string      `json:"landlineNumber,omitempty"`
	IDCardType            string      `json:"idCardType,omitempty"`
	IDCardNumber          string      `json:"idCardNumber,omitempty"`
	PresentAddress        string      `json:"presentAddress,omitempty"`
	EducationalAttainment string      `json:"educationalAttainment,omitempty"`
	Profession            string      `json:"profession,omitempty"`
	Occupation            string      `json:"occupation,omitempty"`
	MonthlyIncome         *float64    `json:"monthlyIncome,omitempty"`
	NameOfEmployer        string      `json:"nameOfEmployer,omitempty"`
	ContactNumberEmployer string      `json:"contactNumberEmployer,omitempty"`
	EmployerAddress       string      `json:"employerAddress,omitempty"`
	ContactPerson         string      `json:"contactPerson,omitempty"`
	ContactNumber         string      `json:"contactNumber,omitempty"`
}

// FullName joins the given, middle and surname parts that are present.
func (a Applicant) FullName() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.GivenName, a.MiddleName, a.Surname, a.Extension} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// IsEmpty reports whether no field is set; used to reject empty update patches.
func (a Applicant) IsEmpty() bool {
	return a.Form() == ApplicationForm{}
}

// ApplicationForm is the Solo_Parent_Application_Form__c record.
type ApplicationForm struct {
	ID                           string   `json:"Id,omitempty"`
	Surname                      string   `json:"Surname__c,omitempty"`
	GivenName                    string   `json:"Given_Name__c,omitempty"`
	MiddleName                   string   `json:"Middle_Name__c,omitempty"`
	Extension                    string   `json:"Extension__c,omitempty"`
	CivilStatus                  string   `json:"Civil_Status__c,omitempty"`
	Sex                          string   `json:"Sex__c,omitempty"`
	Age                          *float64 `json:"Age__c,omitempty"`
	Email                        string   `json:"Email__c,omitempty"`
	BirthdayString               string   `json:"birthday_string__c,omitempty"`
	PlaceOfBirth                 string   `json:"Place_of_Birth__c,omitempty"`
	Religion                     string   `json:"Religion__c,omitempty"`
	MobileNumber                 string   `json:"Mobile_Number__c,omitempty"`
	LandlineNumber               string   `json:"Landline_Number__c,omitempty"`
	IdentificationCardType       string   `json:"Identification_Card_Type__c,omitempty"`
	IdentificationCardNumber     string   `json:"Identification_Card_Number__c,omitempty"`
	PresentAddress               string   `json:"Present_Address__c,omitempty"`
	HighestEducationalAttainment string   `json:"Highest_Educational_Attainment__c,omitempty"`
	Profession                   string   `json:"Profession__c,omitempty"`
	Occupation                   string   `json:"Occupation__c,omitempty"`
	MonthlyIncome                *float64 `json:"Monthly_Income__c,omitempty"`
	NameOfEmployer               string   `json:"Name_of_Employer__c,omitempty"`
	ContactNumberEmployer        string   `json:"Contact_Number_Employer__c,omitempty"`
	EmployerAddress              string   `json:"Employer_Address__c,omitempty"`
	ContactPerson                string   `json:"Contact_Person__c,omitempty"`
	ContactNumberContactPerson   string   `json:"Contact_Number_Contact_Person__c,omitempty"`
}

// FormFields are the fields read back on retrieve and list.
var FormFields = []string{
	"Id", "Surname__c", "Given_Name__c", "Middle_Name__c", "Extension__c", "Civil_Status__c",
	"Sex__c", "Age__c", "Email__c", "birthday_string__c", "Place_of_Birth__c", "Religion__c",
	"Mobile_Number__c", "Landline_Number__c", "Identification_Card_Type__c",
	"Identification_Card_Number__c", "Present_Address__c", "Highest_Educational_Attainment__c",
	"Profession__c", "Occupation__c", "Monthly_Income__c", "Name_of_Employer__c",
	"Contact_Number_Employer__c", "Employer_Address__c", "Contact_Person__c",
	"Contact_Number_Contact_Person__c",
}

// Form maps the applicant onto the record. Id is never set here.
func (a Applicant) Form() ApplicationForm {
	return ApplicationForm{
		Surname:                      a.Surname,
		GivenName:                    a.GivenName,
		MiddleName:                   a.MiddleName,
		Extension:                    a.Extension,
		CivilStatus:                  string(a.CivilStatus),
		Sex:                          string(a.Sex),
		Age:                          intToFloat(a.Age),
		Email:                        a.Email,
		BirthdayString:               a.DateOfBirth,
		PlaceOfBirth:                 a.PlaceOfBirth,
		Religion:                     a.Religion,
		MobileNumber:                 a.MobileNumber,
		LandlineNumber:               a.LandlineNumber,
		IdentificationCardType:       a.IDCardType,
		IdentificationCardNumber:     a.IDCardNumber,
		PresentAddress:               a.PresentAddress,
		HighestEducationalAttainment: a.EducationalAttainment,
		Profession:                   a.Profession,
		Occupation:                   a.Occupation,
		MonthlyIncome:                a.MonthlyIncome,
		NameOfEmployer:               a.NameOfEmployer,
		ContactNumberEmployer:        a.ContactNumberEmployer,
		EmployerAddress:              a.EmployerAddress,
		ContactPerson:                a.ContactPerson,
		ContactNumberContactPerson:   a.ContactNumber,
	}
}

// Applicant maps the record back to the caller-facing shape.
func (f ApplicationForm) Applicant() Applicant {
	return Applicant{
		Surname:               f.Surname,
		GivenName:             f.GivenName,
		MiddleName:            f.MiddleName,
		Extension:             f.Extension,
		CivilStatus:           CivilStatus(f.CivilStatus),
		Sex:                   Sex(f.Sex),
		Age:                   floatToInt(f.Age),
		Email:                 f.Email,
		DateOfBirth:           f.BirthdayString,
		PlaceOfBirth:          f.PlaceOfBirth,
		Religion:              f.Religion,
		MobileNumber:          f.MobileNumber,
		LandlineNumber:        f.LandlineNumber,
		IDCardType:            f.IdentificationCardType,
		IDCardNumber:          f.IdentificationCardNumber,
		PresentAddress:        f.PresentAddress,
		EducationalAttainment: f.HighestEducationalAttainment,
		Profession:            f.Profession,
		Occupation:            f.Occupation,
		MonthlyIncome:         f.MonthlyIncome,
		NameOfEmployer:        f.NameOfEmployer,
		ContactNumberEmployer: f.ContactNumberEmployer,
		EmployerAddress:       f.EmployerAddress,
		ContactPerson:         f.ContactPerson,
		ContactNumber:         f.ContactNumberContactPerson,
	}
}

// ApplicationView is a stored application as returned to the process.
type ApplicationView struct {
	ID string `json:"applicationId"`
	Applicant
}

func (f ApplicationForm) View() ApplicationView {
	return ApplicationView{ID: f.ID, Applicant: f.Applicant()}
}

// Number fields come back from the store as JSON floats (34.0).
func intToFloat(v *int) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}

func floatToInt(v *float64) *int {
	if v == nil {
		return nil
	}
	i := int(*v)
	return &i
}
