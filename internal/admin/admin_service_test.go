package admin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jangteo/marketplace/backend/internal/repository"
)

// mockUserRepo implements repository.UserRepository in memory
type mockUserRepo struct {
	users map[uuid.UUID]*repository.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*repository.User)}
}

func (m *mockUserRepo) addUser(username string) uuid.UUID {
	id := uuid.New()
	m.users[id] = &repository.User{ID: id, Username: username, Status: repository.StatusActive}
	return id
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.User, error) {
	user, exists := m.users[id]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepo) List(ctx context.Context) ([]repository.User, error) {
	var result []repository.User
	for _, u := range m.users {
		result = append(result, *u)
	}
	return result, nil
}

func (m *mockUserRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	user, exists := m.users[id]
	if !exists {
		return repository.ErrUserNotFound
	}
	user.Status = status
	return nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *repository.User) error { return nil }
func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*repository.User, error) {
	return nil, repository.ErrUserNotFound
}
func (m *mockUserRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	return false, nil
}
func (m *mockUserRepo) UpdateFailedAttempts(ctx context.Context, id uuid.UUID, count int) error {
	return nil
}
func (m *mockUserRepo) SetLockout(ctx context.Context, id uuid.UUID, until time.Time) error {
	return nil
}
func (m *mockUserRepo) ResetFailedAttempts(ctx context.Context, id uuid.UUID) error { return nil }
func (m *mockUserRepo) UpdateBio(ctx context.Context, id uuid.UUID, bio string) error {
	return nil
}
func (m *mockUserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return nil
}

// mockProductRepo implements repository.ProductRepositoryInterface in memory
type mockProductRepo struct {
	products map[uuid.UUID]*repository.Product
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{products: make(map[uuid.UUID]*repository.Product)}
}

func (m *mockProductRepo) addProduct(title string) uuid.UUID {
	id := uuid.New()
	m.products[id] = &repository.Product{ID: id, Title: title}
	return id
}

func (m *mockProductRepo) Create(ctx context.Context, product *repository.Product) error {
	product.ID = uuid.New()
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.Product, error) {
	product, exists := m.products[id]
	if !exists {
		return nil, repository.ErrProductNotFound
	}
	return product, nil
}

func (m *mockProductRepo) List(ctx context.Context) ([]repository.Product, error) {
	var result []repository.Product
	for _, p := range m.products {
		result = append(result, *p)
	}
	return result, nil
}

func (m *mockProductRepo) Search(ctx context.Context, query string) ([]repository.Product, error) {
	return m.List(ctx)
}

func (m *mockProductRepo) Update(ctx context.Context, product *repository.Product) error {
	return nil
}

func (m *mockProductRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, exists := m.products[id]; !exists {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

// mockReportRepo implements repository.ReportRepository in memory
type mockReportRepo struct {
	reports map[uuid.UUID]*repository.Report
}

func newMockReportRepo() *mockReportRepo {
	return &mockReportRepo{reports: make(map[uuid.UUID]*repository.Report)}
}

func (m *mockReportRepo) addReport(targetID string) uuid.UUID {
	id := uuid.New()
	m.reports[id] = &repository.Report{ID: id, ReporterID: uuid.New(), TargetID: targetID, Reason: "spam"}
	return id
}

func (m *mockReportRepo) Create(ctx context.Context, report *repository.Report) error { return nil }

func (m *mockReportRepo) List(ctx context.Context) ([]repository.Report, error) {
	var result []repository.Report
	for _, r := range m.reports {
		result = append(result, *r)
	}
	return result, nil
}

func (m *mockReportRepo) CountByReporterAndTarget(ctx context.Context, reporterID uuid.UUID, targetID string, since time.Time) (int, error) {
	return 0, nil
}
func (m *mockReportRepo) CountByReporter(ctx context.Context, reporterID uuid.UUID, since time.Time) (int, error) {
	return 0, nil
}
func (m *mockReportRepo) CountForTarget(ctx context.Context, targetID string, since time.Time) (int, error) {
	return 0, nil
}

func (m *mockReportRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, exists := m.reports[id]; !exists {
		return repository.ErrReportNotFound
	}
	delete(m.reports, id)
	return nil
}

// mockChatRepo implements repository.ChatRepositoryInterface in memory
type mockChatRepo struct {
	messages []repository.ChatMessage
}

func (m *mockChatRepo) Create(ctx context.Context, msg *repository.ChatMessage) error { return nil }

func (m *mockChatRepo) GlobalHistory(ctx context.Context, limit int) ([]repository.ChatMessage, error) {
	if len(m.messages) > limit {
		return m.messages[:limit], nil
	}
	return m.messages, nil
}

func (m *mockChatRepo) PrivateHistory(ctx context.Context, user1, user2 uuid.UUID, limit int) ([]repository.ChatMessage, error) {
	return nil, nil
}

func (m *mockChatRepo) Delete(ctx context.Context, id uuid.UUID) error {
	for i, msg := range m.messages {
		if msg.ID == id {
			m.messages = append(m.messages[:i], m.messages[i+1:]...)
			return nil
		}
	}
	return repository.ErrChatNotFound
}

func newTestAdminService() (*Service, *mockUserRepo, *mockProductRepo, *mockReportRepo, *mockChatRepo) {
	users := newMockUserRepo()
	products := newMockProductRepo()
	reports := newMockReportRepo()
	chats := &mockChatRepo{}
	svc := NewService("admin", "hunter2admin", users, products, reports, chats, nil)
	return svc, users, products, reports, chats
}

func TestAuthenticate(t *testing.T) {
	svc, _, _, _, _ := newTestAdminService()

	if err := svc.Authenticate("admin", "hunter2admin"); err != nil {
		t.Errorf("correct credentials rejected: %v", err)
	}

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong username", "intruder", "hunter2admin"},
		{"wrong password", "admin", "wrong"},
		{"both wrong", "intruder", "wrong"},
		{"both empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.Authenticate(tt.username, tt.password); !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("err = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestSuspendAndRestoreUser(t *testing.T) {
	svc, users, _, _, _ := newTestAdminService()
	id := users.addUser("alice1")

	if err := svc.SuspendUser(context.Background(), id); err != nil {
		t.Fatalf("SuspendUser: %v", err)
	}
	if users.users[id].Status != repository.StatusSuspended {
		t.Errorf("status = %q, want suspended", users.users[id].Status)
	}

	if err := svc.RestoreUser(context.Background(), id); err != nil {
		t.Fatalf("RestoreUser: %v", err)
	}
	if users.users[id].Status != repository.StatusActive {
		t.Errorf("status = %q, want active", users.users[id].Status)
	}

	if err := svc.SuspendUser(context.Background(), uuid.New()); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown user err = %v, want ErrUserNotFound", err)
	}
}

func TestDeleteProduct(t *testing.T) {
	svc, _, products, _, _ := newTestAdminService()
	id := products.addProduct("counterfeit bag")

	if err := svc.DeleteProduct(context.Background(), id); err != nil {
		t.Fatalf("DeleteProduct: %v", err)
	}
	if len(products.products) != 0 {
		t.Error("product not removed")
	}
	if err := svc.DeleteProduct(context.Background(), id); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("second delete err = %v, want ErrProductNotFound", err)
	}
}

func TestListReportsResolvesTargets(t *testing.T) {
	svc, users, products, reports, _ := newTestAdminService()

	userTarget := users.addUser("mallory1")
	productTarget := products.addProduct("fake watch")
	reports.addReport(userTarget.String())
	reports.addReport(productTarget.String())
	reports.addReport(uuid.New().String())   // deleted row
	reports.addReport("free-text-target-id") // not a UUID at all

	enriched, err := svc.ListReports(context.Background())
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(enriched) != 4 {
		t.Fatalf("ListReports returned %d reports, want 4", len(enriched))
	}

	byType := make(map[string]int)
	for _, er := range enriched {
		byType[er.TargetType]++
		switch er.TargetType {
		case TargetTypeUser:
			if er.TargetName != "mallory1" || er.TargetStatus != repository.StatusActive {
				t.Errorf("user target = %+v", er)
			}
		case TargetTypeProduct:
			if er.TargetName != "fake watch" {
				t.Errorf("product target = %+v", er)
			}
		}
	}
	if byType[TargetTypeUser] != 1 || byType[TargetTypeProduct] != 1 || byType[TargetTypeUnknown] != 2 {
		t.Errorf("target type counts = %v", byType)
	}
}

func TestDeleteReport(t *testing.T) {
	svc, _, _, reports, _ := newTestAdminService()
	id := reports.addReport("whatever")

	if err := svc.DeleteReport(context.Background(), id); err != nil {
		t.Fatalf("DeleteReport: %v", err)
	}
	if err := svc.DeleteReport(context.Background(), id); !errors.Is(err, ErrReportNotFound) {
		t.Errorf("second delete err = %v, want ErrReportNotFound", err)
	}
}

func TestDeleteChat(t *testing.T) {
	svc, _, _, _, chats := newTestAdminService()
	id := uuid.New()
	chats.messages = []repository.ChatMessage{{ID: id, Message: "rude remark"}}

	if err := svc.DeleteChat(context.Background(), id); err != nil {
		t.Fatalf("DeleteChat: %v", err)
	}
	if len(chats.messages) != 0 {
		t.Error("message not removed")
	}
	if err := svc.DeleteChat(context.Background(), id); !errors.Is(err, ErrChatNotFound) {
		t.Errorf("second delete err = %v, want ErrChatNotFound", err)
	}
}
