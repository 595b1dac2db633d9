package service

import (
	"context"

	"github.com/garyjia/discussion-review/internal/application/port"
	"github.com/garyjia/discussion-review/internal/domain/apperr"
	"github.com/garyjia/discussion-review/internal/domain/entity"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// rolePolicy names an action and the roles that may perform it
type rolePolicy struct {
	action  string
	allowed func(entity.Role) bool
}

var (
	policyAnnotate  = rolePolicy{"submit annotations", entity.Role.CanAnnotate}
	policyConsensus = rolePolicy{"manage consensus", entity.Role.CanManageConsensus}
	policyAdmin     = rolePolicy{"administer the workflow", func(r entity.Role) bool { return r == entity.RoleAdmin }}
)

// authorize resolves actor and checks the role against policy.
// Unknown users are refused like users with the wrong role.
func authorize(ctx context.Context, users port.UserRepository, op, actor string, policy rolePolicy) (*entity.AuthorizedUser, error) {
	email := entity.NormalizeEmail(actor)
	if email == "" {
		return nil, apperr.Permission(op, "an acting user is required")
	}

	user, err := users.Get(ctx, email)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, apperr.Permission(op, "%s is not an authorized user", email)
	}
	if err != nil {
		return nil, err
	}

	if !policy.allowed(user.Role) {
		return nil, apperr.Permission(op, "%s (%s) may not %s", email, user.Role, policy.action)
	}
	return user, nil
}
