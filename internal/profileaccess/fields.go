package profileaccess

import (
	"errors"
	"sort"
)

// Profile document field keys.
const (
	FieldName        = "name"
	FieldEmail       = "email"
	FieldRole        = "role"
	FieldCompanyName = "companyName"
	FieldDepartment  = "department"
	FieldDesignation = "designation"
	FieldEmployeeID  = "employeeId"

	FieldSalary      = "salary"
	FieldJoiningDate = "joiningDate"
	FieldReportingTo = "reportingTo"

	FieldPhoneNumber              = "phoneNumber"
	FieldAddress                  = "address"
	FieldDateOfBirth              = "dateOfBirth"
	FieldSkills                   = "skills"
	FieldEmergencyContactName     = "emergencyContactName"
	FieldEmergencyContactPhone    = "emergencyContactPhone"
	FieldEmergencyContactRelation = "emergencyContactRelation"
	FieldExperience               = "experience"
	FieldTotalProjects            = "totalProjects"
	FieldActiveProjects           = "activeProjects"
	FieldCompletedProjects        = "completedProjects"
	FieldTotalComplaints          = "totalComplaints"
	FieldResolvedComplaints       = "resolvedComplaints"
	FieldPendingTasks             = "pendingTasks"
	FieldCompletedTasks           = "completedTasks"

	FieldImageURL = "imageUrl"
	FieldPassword = "password"
)

// Tier groups fields by sensitivity.
type Tier string

const (
	TierCoreIdentity Tier = "core_identity"
	TierSensitive    Tier = "sensitive"
	TierPersonal     Tier = "personal"
	TierImage        Tier = "image"
	TierPassword     Tier = "password"
)

// ErrCrossUserPassword is returned when a requester tries to set someone
// else's password. The target has to change it through self-service.
var ErrCrossUserPassword = errors.New("password can only be changed by its owner")

var fieldTiers = map[string]Tier{
	FieldName:        TierCoreIdentity,
	FieldEmail:       TierCoreIdentity,
	FieldRole:        TierCoreIdentity,
	FieldCompanyName: TierCoreIdentity,
	FieldDepartment:  TierCoreIdentity,
	FieldDesignation: TierCoreIdentity,
	FieldEmployeeID:  TierCoreIdentity,

	FieldSalary:      TierSensitive,
	FieldJoiningDate: TierSensitive,
	FieldReportingTo: TierSensitive,

	FieldPhoneNumber:              TierPersonal,
	FieldAddress:                  TierPersonal,
	FieldDateOfBirth:              TierPersonal,
	FieldSkills:                   TierPersonal,
	FieldEmergencyContactName:     TierPersonal,
	FieldEmergencyContactPhone:    TierPersonal,
	FieldEmergencyContactRelation: TierPersonal,
	FieldExperience:               TierPersonal,
	FieldTotalProjects:            TierPersonal,
	FieldActiveProjects:           TierPersonal,
	FieldCompletedProjects:        TierPersonal,
	FieldTotalComplaints:          TierPersonal,
	FieldResolvedComplaints:       TierPersonal,
	FieldPendingTasks:             TierPersonal,
	FieldCompletedTasks:           TierPersonal,

	FieldImageURL: TierImage,
	FieldPassword: TierPassword,
}

var tierLevels = map[Tier]map[AccessLevel]bool{
	TierCoreIdentity: {FullAccess: true},
	TierSensitive:    {FullAccess: true, HRAccess: true},
	TierPersonal:     {FullAccess: true, CompanyAccess: true, HRAccess: true, TeamAccess: true},
	TierImage:        {FullAccess: true, CompanyAccess: true, HRAccess: true},
	TierPassword:     {FullAccess: true},
}

// TierOf returns the sensitivity tier of a field, or false for unknown keys.
func TierOf(field string) (Tier, bool) {
	tier, ok := fieldTiers[field]
	return tier, ok
}

// CanWriteField reports whether the access level may write the field.
// Unknown fields are never writable.
func CanWriteField(level AccessLevel, field string) bool {
	tier, ok := fieldTiers[field]
	if !ok {
		return false
	}
	return tierLevels[tier][level]
}

// WritableFields lists the field keys an access level may write, sorted.
func WritableFields(level AccessLevel) []string {
	fields := make([]string, 0, len(fieldTiers))
	for field := range fieldTiers {
		if CanWriteField(level, field) {
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)
	return fields
}
