package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/finscale/internal/auth"
	"github.com/Veraticus/finscale/internal/common"
	"github.com/Veraticus/finscale/internal/model"
)

func (m *Machine) chooseAuth(ctx context.Context, s *session) ([]Reply, error) {
	switch s.event.Callback {
	case cbAuthLogin:
		return m.transition(ctx, s, StepLoginEmail, Draft{}, Reply{Text: "📧 Enter your email:"})
	case cbAuthRegister:
		return m.transition(ctx, s, StepRegisterName, Draft{}, Reply{Text: "👤 Enter your name:"})
	default:
		return nil, nil
	}
}

func (m *Machine) enterLoginEmail(ctx context.Context, s *session, text string) ([]Reply, error) {
	draft := s.state.Draft
	draft.Email = text
	return m.transition(ctx, s, StepLoginPassword, draft, Reply{Text: "🔒 Enter your password:"})
}

func (m *Machine) enterLoginPassword(ctx context.Context, s *session, password string) ([]Reply, error) {
	user, err := m.deps.Store.FindUserByEmail(ctx, s.state.Draft.Email)
	if errors.Is(err, common.ErrNotFound) {
		return m.resetWith(ctx, s, "❌ Email not found. Try again with /start.")
	}
	if err != nil {
		return m.fail(ctx, s, err)
	}

	if !m.deps.Passwords.Compare(user.PasswordHash, password) {
		return m.resetWith(ctx, s, "❌ Wrong password. Try again with /start.")
	}

	linked, ok, err := m.lookupOwner(ctx, s.event.ActorID)
	if err != nil {
		return m.fail(ctx, s, err)
	}
	if ok && linked.ID != user.ID {
		return m.resetWith(ctx, s, "⚠️ This Telegram account is already linked to another account.")
	}

	if err := m.deps.Store.LinkTelegram(ctx, user.ID, s.event.ActorID); err != nil {
		return m.fail(ctx, s, err)
	}
	return m.resetWith(ctx, s, fmt.Sprintf("✅ Logged in!\n\n👋 Welcome, %s!\n\n%s", user.Name, msgUseMenu))
}

func (m *Machine) enterRegisterName(ctx context.Context, s *session, text string) ([]Reply, error) {
	draft := s.state.Draft
	draft.Name = text
	return m.transition(ctx, s, StepRegisterEmail, draft, Reply{Text: "📧 Enter your email:"})
}

// looksLikeEmail only checks for "@" and ".".
func looksLikeEmail(text string) bool {
	return strings.Contains(text, "@") && strings.Contains(text, ".")
}

func (m *Machine) enterRegisterEmail(ctx context.Context, s *session, text string) ([]Reply, error) {
	if !looksLikeEmail(text) {
		return []Reply{{Text: "❌ Invalid email. Try again:"}}, nil
	}

	_, err := m.deps.Store.FindUserByEmail(ctx, text)
	if err == nil {
		return m.resetWith(ctx, s, "❌ This email is already registered. Use /start to log in.")
	}
	if !errors.Is(err, common.ErrNotFound) {
		return m.fail(ctx, s, err)
	}

	draft := s.state.Draft
	draft.Email = text
	return m.transition(ctx, s, StepRegisterPassword, draft, Reply{
		Text: fmt.Sprintf("🔒 Choose a password (at least %d characters):", auth.MinPasswordLength),
	})
}

func (m *Machine) enterRegisterPassword(ctx context.Context, s *session, password string) ([]Reply, error) {
	if err := auth.ValidatePassword(password); err != nil {
		return []Reply{{Text: fmt.Sprintf("❌ The password must have at least %d characters. Try again:", auth.MinPasswordLength)}}, nil
	}

	hash, err := m.deps.Passwords.Hash(password)
	if err != nil {
		return m.fail(ctx, s, err)
	}

	actorID := s.event.ActorID
	user := &model.User{
		Name:         s.state.Draft.Name,
		Email:        s.state.Draft.Email,
		PasswordHash: hash,
		TelegramID:   &actorID,
	}
	if err := m.deps.Store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, common.ErrDuplicateEntry) {
			return m.resetWith(ctx, s, "❌ This email is already registered. Use /start to log in.")
		}
		return m.fail(ctx, s, err)
	}

	return m.resetWith(ctx, s, fmt.Sprintf("✅ Account created!\n\n👋 Welcome, %s!\n\n%s", user.Name, msgUseMenu))
}
