package domain

import "time"

// Identity is the resolved signed-in user.
type Identity struct {
	SubjectID   string `json:"subject_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	CompanyName string `json:"company_name"`
	Department  string `json:"department"`
	IsActive    bool   `json:"is_active"`
}

// AccessControl mirrors the users_access_control record. Role is free text.
type AccessControl struct {
	SubjectID    string    `json:"subject_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	CompanyName  string    `json:"company_name"`
	Department   string    `json:"department"`
	IsActive     bool      `json:"is_active"`
	Permissions  []string  `json:"permissions"`
	DocumentPath string    `json:"document_path"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Identity projects the record onto the session identity.
func (a *AccessControl) Identity() Identity {
	return Identity{
		SubjectID:   a.SubjectID,
		DisplayName: a.Name,
		Email:       a.Email,
		Role:        a.Role,
		CompanyName: a.CompanyName,
		Department:  a.Department,
		IsActive:    a.IsActive,
	}
}

// Profile is the full profile document stored at DocumentPath.
type Profile struct {
	DocumentPath string         `json:"document_path"`
	SubjectID    string         `json:"subject_id"`
	Data         map[string]any `json:"data"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// SearchEntry is the denormalized user search index row.
type SearchEntry struct {
	SubjectID   string
	Name        string
	Email       string
	CompanyName string
}
