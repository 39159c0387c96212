package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jangteo/marketplace/backend/internal/events"
	"github.com/jangteo/marketplace/backend/internal/repository"
)

// MockChatRepository implements repository.ChatRepositoryInterface in memory
type MockChatRepository struct {
	messages []repository.ChatMessage
}

func NewMockChatRepository() *MockChatRepository {
	return &MockChatRepository{}
}

func (m *MockChatRepository) Create(ctx context.Context, msg *repository.ChatMessage) error {
	msg.ID = uuid.New()
	msg.CreatedAt = time.Now().UTC()
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *MockChatRepository) GlobalHistory(ctx context.Context, limit int) ([]repository.ChatMessage, error) {
	var result []repository.ChatMessage
	for _, msg := range m.messages {
		if msg.RecipientID == repository.GlobalRecipient {
			result = append(result, msg)
		}
	}
	if len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result, nil
}

func (m *MockChatRepository) PrivateHistory(ctx context.Context, user1, user2 uuid.UUID, limit int) ([]repository.ChatMessage, error) {
	var result []repository.ChatMessage
	for _, msg := range m.messages {
		between := (msg.SenderID == user1 && msg.RecipientID == user2.String()) ||
			(msg.SenderID == user2 && msg.RecipientID == user1.String())
		if between {
			result = append(result, msg)
		}
	}
	if len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result, nil
}

func (m *MockChatRepository) Delete(ctx context.Context, id uuid.UUID) error {
	for i, msg := range m.messages {
		if msg.ID == id {
			m.messages = append(m.messages[:i], m.messages[i+1:]...)
			return nil
		}
	}
	return repository.ErrChatNotFound
}

// MockUserRepository tracks known user IDs for recipient checks
type MockUserRepository struct {
	known map[uuid.UUID]bool
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{known: make(map[uuid.UUID]bool)}
}

func (m *MockUserRepository) AddUser() uuid.UUID {
	id := uuid.New()
	m.known[id] = true
	return id
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*repository.User, error) {
	if !m.known[id] {
		return nil, repository.ErrUserNotFound
	}
	return &repository.User{ID: id, Status: repository.StatusActive}, nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *repository.User) error { return nil }
func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*repository.User, error) {
	return nil, repository.ErrUserNotFound
}
func (m *MockUserRepository) List(ctx context.Context) ([]repository.User, error) { return nil, nil }
func (m *MockUserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return false, nil
}
func (m *MockUserRepository) UpdateFailedAttempts(ctx context.Context, id uuid.UUID, count int) error {
	return nil
}
func (m *MockUserRepository) SetLockout(ctx context.Context, id uuid.UUID, until time.Time) error {
	return nil
}
func (m *MockUserRepository) ResetFailedAttempts(ctx context.Context, id uuid.UUID) error {
	return nil
}
func (m *MockUserRepository) UpdateBio(ctx context.Context, id uuid.UUID, bio string) error {
	return nil
}
func (m *MockUserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return nil
}
func (m *MockUserRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return nil
}

func newTestChatService() (*Service, *MockChatRepository, *MockUserRepository, *events.InMemoryEventBus) {
	chats := NewMockChatRepository()
	users := NewMockUserRepository()
	bus := events.NewEventBus(nil)
	return NewService(chats, users, bus, nil), chats, users, bus
}

func TestSendGlobal(t *testing.T) {
	svc, chats, users, bus := newTestChatService()
	sender := users.AddUser()

	var broadcast []events.Event
	unsubscribe := bus.Subscribe(events.BroadcastUserID, func(e events.Event) {
		broadcast = append(broadcast, e)
	})
	defer unsubscribe()

	msg, err := svc.SendGlobal(context.Background(), sender, "hello everyone")
	if err != nil {
		t.Fatalf("SendGlobal: %v", err)
	}
	if msg.RecipientID != repository.GlobalRecipient {
		t.Errorf("RecipientID = %q, want %q", msg.RecipientID, repository.GlobalRecipient)
	}
	if len(chats.messages) != 1 {
		t.Fatalf("stored %d messages, want 1", len(chats.messages))
	}

	// Global messages fan out on the broadcast channel.
	if len(broadcast) != 1 {
		t.Fatalf("broadcast received %d events, want 1", len(broadcast))
	}
	var payload events.ChatMessageEvent
	if err := json.Unmarshal(broadcast[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal chat event: %v", err)
	}
	if payload.Content != "hello everyone" || payload.SenderID != sender.String() {
		t.Errorf("payload = %+v", payload)
	}
}

func TestSendPrivate(t *testing.T) {
	svc, _, users, bus := newTestChatService()
	sender := users.AddUser()
	recipient := users.AddUser()
	bystander := users.AddUser()

	var toRecipient, toBystander int
	unsub1 := bus.Subscribe(recipient.String(), func(events.Event) { toRecipient++ })
	defer unsub1()
	unsub2 := bus.Subscribe(bystander.String(), func(events.Event) { toBystander++ })
	defer unsub2()

	msg, err := svc.SendPrivate(context.Background(), sender, recipient, "just for you")
	if err != nil {
		t.Fatalf("SendPrivate: %v", err)
	}
	if msg.RecipientID != recipient.String() {
		t.Errorf("RecipientID = %q, want %q", msg.RecipientID, recipient)
	}

	// Private messages reach only the recipient's channel.
	if toRecipient != 1 {
		t.Errorf("recipient received %d events, want 1", toRecipient)
	}
	if toBystander != 0 {
		t.Errorf("bystander received %d events, want 0", toBystander)
	}
}

func TestSendPrivateToSelf(t *testing.T) {
	svc, _, users, _ := newTestChatService()
	sender := users.AddUser()

	_, err := svc.SendPrivate(context.Background(), sender, sender, "talking to myself")
	if !errors.Is(err, ErrSelfMessage) {
		t.Errorf("err = %v, want ErrSelfMessage", err)
	}
}

func TestSendPrivateUnknownRecipient(t *testing.T) {
	svc, chats, users, _ := newTestChatService()
	sender := users.AddUser()

	_, err := svc.SendPrivate(context.Background(), sender, uuid.New(), "anyone there")
	if !errors.Is(err, ErrRecipientUnknown) {
		t.Errorf("err = %v, want ErrRecipientUnknown", err)
	}
	if len(chats.messages) != 0 {
		t.Error("undeliverable message must not be stored")
	}
}

func TestSendMessageValidation(t *testing.T) {
	svc, _, users, _ := newTestChatService()
	sender := users.AddUser()

	tests := []struct {
		name    string
		message string
		wantErr error
	}{
		{"empty", "", ErrEmptyMessage},
		{"whitespace only", "   \t  ", ErrEmptyMessage},
		{"markup only", "<script>alert(1)</script><br/>", ErrEmptyMessage},
		{"too long", strings.Repeat("a", MaxMessageLength+1), ErrMessageTooLong},
		{"multibyte too long", strings.Repeat("안", MaxMessageLength+1), ErrMessageTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SendGlobal(context.Background(), sender, tt.message)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	// Exactly at the limit is fine, and the limit counts characters,
	// not bytes: a max-length Korean message is three bytes per
	// character and must still pass.
	if _, err := svc.SendGlobal(context.Background(), sender, strings.Repeat("a", MaxMessageLength)); err != nil {
		t.Errorf("message at exact limit: %v", err)
	}
	if _, err := svc.SendGlobal(context.Background(), sender, strings.Repeat("안", MaxMessageLength)); err != nil {
		t.Errorf("multibyte message at exact limit: %v", err)
	}
}

func TestSendMessageSanitized(t *testing.T) {
	svc, _, users, _ := newTestChatService()
	sender := users.AddUser()

	msg, err := svc.SendGlobal(context.Background(), sender, `  <b>deal</b> at 50% & falling  `)
	if err != nil {
		t.Fatalf("SendGlobal: %v", err)
	}
	if msg.Message != "deal at 50% &amp; falling" {
		t.Errorf("stored message = %q", msg.Message)
	}
}

func TestGlobalHistory(t *testing.T) {
	svc, _, users, _ := newTestChatService()
	sender := users.AddUser()
	other := users.AddUser()

	for i := 0; i < 3; i++ {
		if _, err := svc.SendGlobal(context.Background(), sender, "global message"); err != nil {
			t.Fatalf("SendGlobal: %v", err)
		}
	}
	if _, err := svc.SendPrivate(context.Background(), sender, other, "private message"); err != nil {
		t.Fatalf("SendPrivate: %v", err)
	}

	history, err := svc.GlobalHistory(context.Background(), 0)
	if err != nil {
		t.Fatalf("GlobalHistory: %v", err)
	}
	if len(history) != 3 {
		t.Errorf("global history has %d messages, want 3", len(history))
	}
	for _, msg := range history {
		if msg.RecipientID != repository.GlobalRecipient {
			t.Errorf("private message %s leaked into global history", msg.ID)
		}
	}
}

func TestPrivateHistory(t *testing.T) {
	svc, _, users, _ := newTestChatService()
	a := users.AddUser()
	b := users.AddUser()
	c := users.AddUser()

	if _, err := svc.SendPrivate(context.Background(), a, b, "a to b"); err != nil {
		t.Fatalf("SendPrivate: %v", err)
	}
	if _, err := svc.SendPrivate(context.Background(), b, a, "b to a"); err != nil {
		t.Fatalf("SendPrivate: %v", err)
	}
	if _, err := svc.SendPrivate(context.Background(), a, c, "a to c"); err != nil {
		t.Fatalf("SendPrivate: %v", err)
	}

	history, err := svc.PrivateHistory(context.Background(), a, b, 0)
	if err != nil {
		t.Fatalf("PrivateHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("a-b conversation has %d messages, want 2", len(history))
	}
	for _, msg := range history {
		if msg.RecipientID == c.String() {
			t.Error("a-c message leaked into the a-b conversation")
		}
	}
}
