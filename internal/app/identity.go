package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/hylla/nexus/internal/domain"
)

// ResolveIdentity maps an authenticated identity onto a local user, creating one on first sight.
// An invited user with a matching email and no subject yet is linked instead of duplicated.
func (s *Service) ResolveIdentity(ctx context.Context, identity domain.Identity) (domain.User, error) {
	identity, err := identity.Normalize()
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	user, err := s.repo.GetUserBySubject(ctx, identity.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return domain.User{}, err
	}

	now := s.clock()
	user, err = s.repo.GetUserByEmail(ctx, identity.Email)
	switch {
	case err == nil && user.Subject == "":
		if err := user.Link(identity.Subject, now); err != nil {
			return domain.User{}, err
		}
		if err := s.repo.UpdateUser(ctx, user); err != nil {
			return domain.User{}, err
		}
		s.logger.Info("linked invited user", "user_id", user.ID, "subject", identity.Subject)
		return user, nil
	case err == nil:
		return domain.User{}, fmt.Errorf("%w: email %s belongs to another identity", ErrConflict, identity.Email)
	case !errors.Is(err, ErrNotFound):
		return domain.User{}, err
	}

	user, err = domain.NewUser(domain.UserInput{
		ID:          s.idGen(),
		Subject:     identity.Subject,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
	}, now)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrConflict) {
			// Lost a first-login race with a concurrent request for the same subject.
			return s.repo.GetUserBySubject(ctx, identity.Subject)
		}
		return domain.User{}, err
	}
	s.logger.Info("created user from identity", "user_id", user.ID, "subject", identity.Subject)
	return user, nil
}

// CurrentUser returns the caller's user record.
func (s *Service) CurrentUser(ctx context.Context) (domain.User, error) {
	caller, err := s.requireCaller(ctx)
	if err != nil {
		return domain.User{}, err
	}
	return s.repo.GetUser(ctx, caller.UserID)
}

// ListUsers returns up to limit users for member pickers. A non-positive limit uses the configured default.
func (s *Service) ListUsers(ctx context.Context, limit int) ([]domain.User, error) {
	if _, err := s.requireCaller(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.cfg.UserListLimit {
		limit = s.cfg.UserListLimit
	}
	return s.repo.ListUsers(ctx, limit)
}
