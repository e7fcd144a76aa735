package service

import (
	"context"
	"errors"

	groupserrors "fleetbook/internal/groups/errors"
	"fleetbook/internal/groups/repository"
	apperrors "fleetbook/pkg/errors"
)

// AdminGate answers the "is this user an admin of this group" question for
// the other domains. It sits directly on the repository so consumers do not
// have to depend on the full group service.
type AdminGate struct {
	repo repository.GroupRepository
}

func NewAdminGate(repo repository.GroupRepository) *AdminGate {
	return &AdminGate{repo: repo}
}

func (g *AdminGate) IsAdmin(ctx context.Context, groupID, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	if groupID == "" {
		return false, apperrors.InvalidInput("Group ID cannot be empty")
	}

	group, err := g.repo.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, groupserrors.ErrNotFound) {
			return false, apperrors.NotFoundWithID("Group", groupID)
		}
		if errors.Is(err, groupserrors.ErrInvalidID) {
			return false, apperrors.InvalidInput("Invalid group ID format")
		}
		return false, apperrors.Internal("Failed to retrieve group", err)
	}

	member := group.Member(userID)
	return member != nil && member.Admin, nil
}
