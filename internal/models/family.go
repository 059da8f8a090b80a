package models

// FamilyMember is one entry of the applicant's family composition.
type FamilyMember struct {
	Name                  string   `json:"name"`
	Age                   *int     `json:"age,omitempty"`
	Sex                   Sex      `json:"sex,omitempty"`
	Relationship          string   `json:"relationship,omitempty"`
	EducationalAttainment string   `json:"educationalAttainment,omitempty"`
	Occupation            string   `json:"occupation,omitempty"`
	MonthlyIncome         *float64 `json:"monthlyIncome,omitempty"`
}

// FamilyMemberRecord is the Family_Member__c record. ApplicationFormID is the master-detail
// reference, so deleting the form deletes its members.
type FamilyMemberRecord struct {
	ApplicationFormID            string   `json:"Solo_Parent_Application_Form__c"`
	Name                         string   `json:"Name,omitempty"`
	Age                          *int     `json:"Age__c,omitempty"`
	Sex                          string   `json:"Sex__c,omitempty"`
	Relationship                 string   `json:"Relationship__c,omitempty"`
	HighestEducationalAttainment string   `json:"Highest_Educational_Attainment__c,omitempty"`
	Occupation                   string   `json:"Occupation__c,omitempty"`
	MonthlyIncome                *float64 `json:"Monthly_Income__c,omitempty"`
}

// Record binds the member to its owning form.
func (m FamilyMember) Record(formID string) FamilyMemberRecord {
	return FamilyMemberRecord{
		ApplicationFormID:            formID,
		Name:                         m.Name,
		Age:                          m.Age,
		Sex:                          string(m.Sex),
		Relationship:                 m.Relationship,
		HighestEducationalAttainment: m.EducationalAttainment,
		Occupation:                   m.Occupation,
		MonthlyIncome:                m.MonthlyIncome,
	}
}
