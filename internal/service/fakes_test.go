package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/itconnect/internal/domain"
	"github.com/spec-kit/itconnect/internal/repository"
)

type fakeAccessRepo struct {
	mu      sync.Mutex
	records map[string]*domain.AccessControl
	err     error
}

func newFakeAccessRepo(records ...domain.AccessControl) *fakeAccessRepo {
	repo := &fakeAccessRepo{records: map[string]*domain.AccessControl{}}
	for i := range records {
		record := records[i]
		if record.DocumentPath == "" {
			record.DocumentPath = "users/" + record.SubjectID
		}
		repo.records[record.SubjectID] = &record
	}
	return repo
}

func (f *fakeAccessRepo) GetBySubjectID(_ context.Context, subjectID string) (*domain.AccessControl, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	record, ok := f.records[subjectID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *record
	return &copied, nil
}

func (f *fakeAccessRepo) ListByCompany(_ context.Context, company string, limit, offset int) ([]domain.AccessControl, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.AccessControl
	for _, record := range f.records {
		if record.CompanyName == company && record.IsActive {
			result = append(result, *record)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SubjectID < result[j].SubjectID })
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

type fakeProfileRepo struct {
	mu          sync.Mutex
	profiles    map[string]*domain.Profile
	access      *fakeAccessRepo
	credentials *fakeCredentialRepo
	updates     []repository.ProfileUpdate
	getErr      error
}

func newFakeProfileRepo(access *fakeAccessRepo) *fakeProfileRepo {
	repo := &fakeProfileRepo{profiles: map[string]*domain.Profile{}, access: access}
	for _, record := range access.records {
		repo.profiles[record.DocumentPath] = &domain.Profile{
			DocumentPath: record.DocumentPath,
			SubjectID:    record.SubjectID,
			Data:         map[string]any{"name": record.Name, "role": record.Role},
		}
	}
	return repo
}

func (f *fakeProfileRepo) GetByPath(_ context.Context, documentPath string) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	profile, ok := f.profiles[documentPath]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	data := make(map[string]any, len(profile.Data))
	for k, v := range profile.Data {
		data[k] = v
	}
	return &domain.Profile{DocumentPath: profile.DocumentPath, SubjectID: profile.SubjectID, Data: data}, nil
}

func (f *fakeProfileRepo) ApplyUpdate(_ context.Context, update repository.ProfileUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	profile, ok := f.profiles[update.DocumentPath]
	if !ok {
		return pgx.ErrNoRows
	}
	email, hasEmail := update.Fields["email"].(string)
	if hasEmail && f.credentials != nil {
		f.credentials.mu.Lock()
		defer f.credentials.mu.Unlock()
		for id, cred := range f.credentials.creds {
			if id != update.SubjectID && strings.EqualFold(cred.Email, email) {
				return repository.ErrEmailTaken
			}
		}
		if cred, ok := f.credentials.creds[update.SubjectID]; ok {
			cred.Email = email
		}
	}
	for k, v := range update.Fields {
		profile.Data[k] = v
	}

	f.access.mu.Lock()
	record := f.access.records[update.SubjectID]
	if name, ok := update.Fields["name"].(string); ok {
		record.Name = name
	}
	if hasEmail {
		record.Email = email
	}
	f.access.mu.Unlock()

	f.updates = append(f.updates, update)
	return nil
}

type fakeCredentialRepo struct {
	mu    sync.Mutex
	creds map[string]*domain.Credential
}

func (f *fakeCredentialRepo) GetBySubjectID(_ context.Context, subjectID string) (*domain.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cred, ok := f.creds[subjectID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *cred
	return &copied, nil
}

func (f *fakeCredentialRepo) GetByEmail(_ context.Context, email string) (*domain.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cred := range f.creds {
		if cred.Email == email {
			copied := *cred
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeCredentialRepo) UpdatePasswordHash(_ context.Context, subjectID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cred, ok := f.creds[subjectID]
	if !ok {
		return pgx.ErrNoRows
	}
	cred.PasswordHash = hash
	return nil
}

type fakeComplaintRepo struct {
	mu         sync.Mutex
	complaints map[string]*domain.Complaint
	filters    []repository.ComplaintFilter
	seq        int
}

func newFakeComplaintRepo(complaints ...domain.Complaint) *fakeComplaintRepo {
	repo := &fakeComplaintRepo{complaints: map[string]*domain.Complaint{}}
	for i := range complaints {
		complaint := complaints[i]
		repo.complaints[complaint.ID] = &complaint
	}
	return repo
}

func (f *fakeComplaintRepo) Create(_ context.Context, complaint *domain.Complaint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	complaint.ID = fmt.Sprintf("c-%d", f.seq)
	complaint.CreatedAt = time.Now()
	complaint.UpdatedAt = complaint.CreatedAt
	copied := *complaint
	f.complaints[complaint.ID] = &copied
	return nil
}

func (f *fakeComplaintRepo) Update(_ context.Context, complaint *domain.Complaint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.complaints[complaint.ID]; !ok {
		return pgx.ErrNoRows
	}
	complaint.UpdatedAt = time.Now()
	copied := *complaint
	f.complaints[complaint.ID] = &copied
	return nil
}

func (f *fakeComplaintRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.complaints[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.complaints, id)
	return nil
}

func (f *fakeComplaintRepo) GetByID(_ context.Context, id string) (*domain.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	complaint, ok := f.complaints[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *complaint
	return &copied, nil
}

func (f *fakeComplaintRepo) List(_ context.Context, filter repository.ComplaintFilter) ([]domain.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	var result []domain.Complaint
	for _, complaint := range f.complaints {
		if matches(filter, complaint) {
			result = append(result, *complaint)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (f *fakeComplaintRepo) Stats(ctx context.Context, filter repository.ComplaintFilter) (*domain.ComplaintStats, error) {
	complaints, err := f.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	stats := emptyStats()
	for _, complaint := range complaints {
		stats.Total++
		stats.ByStatus[complaint.Status]++
		stats.ByUrgency[complaint.Urgency]++
		if complaint.AssignedTo == nil {
			stats.Unassigned++
		}
	}
	return stats, nil
}

func matches(filter repository.ComplaintFilter, complaint *domain.Complaint) bool {
	if filter.CreatedBy != nil && complaint.CreatedBy != *filter.CreatedBy {
		return false
	}
	if filter.AssignedTo != nil && (complaint.AssignedTo == nil || *complaint.AssignedTo != *filter.AssignedTo) {
		return false
	}
	if filter.CompanyName != nil && complaint.CompanyName != *filter.CompanyName {
		return false
	}
	if filter.Department != nil && complaint.Department != *filter.Department {
		return false
	}
	if filter.GlobalOnly && !complaint.IsGlobal {
		return false
	}
	return true
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []domain.ComplaintHistory
}

func (f *fakeHistoryRepo) Create(_ context.Context, history *domain.ComplaintHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	history.ID = fmt.Sprintf("h-%d", len(f.entries)+1)
	history.CreatedAt = time.Now()
	f.entries = append(f.entries, *history)
	return nil
}

func (f *fakeHistoryRepo) ListByComplaint(_ context.Context, complaintID string, _, _ int) ([]domain.ComplaintHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.ComplaintHistory
	for _, entry := range f.entries {
		if entry.ComplaintID == complaintID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (f *fakeHistoryRepo) types() []domain.ComplaintChangeType {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]domain.ComplaintChangeType, 0, len(f.entries))
	for _, entry := range f.entries {
		result = append(result, entry.ChangeType)
	}
	return result
}

type fakeRoleUpgradeRepo struct {
	mu       sync.Mutex
	requests map[string]*domain.RoleUpgradeRequest
	access   *fakeAccessRepo
}

func (f *fakeRoleUpgradeRepo) Create(_ context.Context, req *domain.RoleUpgradeRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	req.ID = fmt.Sprintf("r-%d", len(f.requests)+1)
	req.CreatedAt = time.Now()
	copied := *req
	f.requests[req.ID] = &copied
	return nil
}

func (f *fakeRoleUpgradeRepo) GetByID(_ context.Context, id string) (*domain.RoleUpgradeRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *req
	return &copied, nil
}

func (f *fakeRoleUpgradeRepo) Approve(_ context.Context, req *domain.RoleUpgradeRequest, approverID string) error {
	return f.decide(req, approverID, domain.RoleUpgradeApproved)
}

func (f *fakeRoleUpgradeRepo) Reject(_ context.Context, req *domain.RoleUpgradeRequest, approverID string) error {
	return f.decide(req, approverID, domain.RoleUpgradeRejected)
}

func (f *fakeRoleUpgradeRepo) decide(req *domain.RoleUpgradeRequest, approverID string, status domain.RoleUpgradeStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.requests[req.ID]
	if !ok || stored.Status != domain.RoleUpgradePending {
		return pgx.ErrNoRows
	}
	now := time.Now()
	stored.Status = status
	stored.DecidedBy = &approverID
	stored.DecidedAt = &now
	if status == domain.RoleUpgradeApproved {
		f.access.mu.Lock()
		f.access.records[stored.SubjectID].Role = stored.RequestedRole
		f.access.mu.Unlock()
	}
	*req = *stored
	return nil
}

type fakeMirror struct {
	mu       sync.Mutex
	access   map[string]*domain.AccessControl
	profiles map[string]*domain.Profile
	evicted  []string
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{access: map[string]*domain.AccessControl{}, profiles: map[string]*domain.Profile{}}
}

func (f *fakeMirror) PutAccess(_ context.Context, record *domain.AccessControl) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access[record.SubjectID] = record
	return nil
}

func (f *fakeMirror) PutProfile(_ context.Context, profile *domain.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[profile.SubjectID] = profile
	return nil
}

func (f *fakeMirror) GetProfile(_ context.Context, subjectID string) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	profile, ok := f.profiles[subjectID]
	if !ok {
		return nil, fmt.Errorf("miss")
	}
	return profile, nil
}

func (f *fakeMirror) Evict(_ context.Context, subjectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.access, subjectID)
	delete(f.profiles, subjectID)
	f.evicted = append(f.evicted, subjectID)
	return nil
}
