package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/prn-tf/teamdrop/internal/domain"
)

type messageFixture struct {
	svc      *MessageService
	projects *MockProjectRepository
	messages *MockMessageRepository

	owner  *domain.User
	reader *domain.User
	madmin *domain.User

	project *domain.Project
}

func newMessageFixture(t *testing.T) *messageFixture {
	t.Helper()
	projects := NewMockProjectRepository()
	messages := NewMockMessageRepository()

	f := &messageFixture{
		svc:      NewMessageService(messages, projects, zerolog.Nop()),
		projects: projects,
		messages: messages,
		owner:    &domain.User{ID: 1, Username: "alice", CanUpload: true},
		reader:   &domain.User{ID: 2, Username: "bob"},
		madmin:   &domain.User{ID: 3, Username: "carol"},
	}

	f.project = &domain.Project{
		Name:    "chatty",
		OwnerID: f.owner.ID,
		Collaborators: []domain.Collaborator{
			{UserID: f.reader.ID, Permission: domain.PermissionRead},
			{UserID: f.madmin.ID, Permission: domain.PermissionAdmin},
		},
	}
	if err := projects.Create(context.Background(), f.project); err != nil {
		t.Fatalf("create project failed: %v", err)
	}
	return f
}

func TestMessageService_Send(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	// Read tier may chat.
	msg, err := f.svc.Send(ctx, f.reader, f.project.ID, "hello")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if msg.Type != domain.MessageText {
		t.Errorf("expected text message, got %s", msg.Type)
	}
	if msg.SenderName != f.reader.Username {
		t.Errorf("expected sender name %s, got %s", f.reader.Username, msg.SenderName)
	}

	// Outsiders cannot even see the chat.
	outsider := &domain.User{ID: 9, Username: "eve"}
	if _, err := f.svc.Send(ctx, outsider, f.project.ID, "hi"); !errors.Is(err, domain.ErrProjectNotFound) {
		t.Errorf("expected ErrProjectNotFound, got %v", err)
	}

	// Content bounds.
	if _, err := f.svc.Send(ctx, f.reader, f.project.ID, "   "); !errors.Is(err, domain.ErrMessageContentLength) {
		t.Errorf("expected ErrMessageContentLength for blank content, got %v", err)
	}
	if _, err := f.svc.Send(ctx, f.reader, f.project.ID, strings.Repeat("x", 1001)); !errors.Is(err, domain.ErrMessageContentLength) {
		t.Errorf("expected ErrMessageContentLength for long content, got %v", err)
	}
}

func TestMessageService_Edit(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	msg, err := f.svc.Send(ctx, f.reader, f.project.ID, "tpyo")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	// The sender fixes their own message.
	edited, err := f.svc.Edit(ctx, f.reader, msg.ID, "typo")
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if !edited.IsEdited || edited.EditedAt == nil {
		t.Error("edit should mark the message as edited")
	}
	if edited.Content != "typo" {
		t.Errorf("expected content %q, got %q", "typo", edited.Content)
	}

	// The owner holds no tier and no admin flag: no moderation.
	if _, err := f.svc.Edit(ctx, f.owner, msg.ID, "mine now"); !errors.Is(err, domain.ErrAccessDenied) {
		t.Errorf("owner without a tier should not edit, got %v", err)
	}

	// Admin tier moderates.
	if _, err := f.svc.Edit(ctx, f.madmin, msg.ID, "moderated"); err != nil {
		t.Errorf("admin tier edit failed: %v", err)
	}

	// Global admins moderate any project's chat, even without a tier
	// or view access on the project.
	globalAdmin := &domain.User{ID: 10, Username: "root", IsAdmin: true}
	if _, err := f.svc.Edit(ctx, globalAdmin, msg.ID, "overruled"); err != nil {
		t.Errorf("global admin edit failed: %v", err)
	}

	// Outsiders without the admin flag still see nothing.
	outsider := &domain.User{ID: 11, Username: "eve"}
	if _, err := f.svc.Edit(ctx, outsider, msg.ID, "sneaky"); !errors.Is(err, domain.ErrMessageNotFound) {
		t.Errorf("expected ErrMessageNotFound for outsider, got %v", err)
	}
}

func TestMessageService_SystemMessagesImmutable(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	system := domain.NewMessage(f.project.ID, f.owner.ID, "alice uploaded notes.txt", domain.MessageSystem, nil)
	if err := f.messages.Create(ctx, system); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := f.svc.Edit(ctx, f.owner, system.ID, "rewritten"); !errors.Is(err, domain.ErrSystemMessageImmutable) {
		t.Errorf("expected ErrSystemMessageImmutable, got %v", err)
	}

	// System messages can still be deleted by moderators.
	if err := f.svc.Delete(ctx, f.madmin, system.ID); err != nil {
		t.Errorf("admin tier should delete system messages: %v", err)
	}
}

func TestMessageService_Delete(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	msg, err := f.svc.Send(ctx, f.reader, f.project.ID, "delete me")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	// Read tier cannot delete others' messages.
	other, err := f.svc.Send(ctx, f.madmin, f.project.ID, "keep out")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if err := f.svc.Delete(ctx, f.reader, other.ID); !errors.Is(err, domain.ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied, got %v", err)
	}

	// The sender deletes their own.
	if err := f.svc.Delete(ctx, f.reader, msg.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := f.svc.Delete(ctx, f.reader, msg.ID); !errors.Is(err, domain.ErrMessageNotFound) {
		t.Errorf("expected ErrMessageNotFound, got %v", err)
	}

	// Global admins delete in projects they cannot otherwise see.
	globalAdmin := &domain.User{ID: 10, Username: "root", IsAdmin: true}
	if err := f.svc.Delete(ctx, globalAdmin, other.ID); err != nil {
		t.Errorf("global admin delete failed: %v", err)
	}
}

func TestMessageService_List(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	for _, content := range []string{"one", "two", "three"} {
		if _, err := f.svc.Send(ctx, f.owner, f.project.ID, content); err != nil {
			t.Fatalf("send failed: %v", err)
		}
	}

	result, err := f.svc.List(ctx, f.reader, f.project.ID, listOpts())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(result.Items) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(result.Items))
	}
	// Newest first.
	if result.Items[0].Content != "three" {
		t.Errorf("expected newest message first, got %q", result.Items[0].Content)
	}

	outsider := &domain.User{ID: 9, Username: "eve"}
	if _, err := f.svc.List(ctx, outsider, f.project.ID, listOpts()); !errors.Is(err, domain.ErrProjectNotFound) {
		t.Errorf("expected ErrProjectNotFound, got %v", err)
	}
}
