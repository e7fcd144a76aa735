package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	groupserrors "fleetbook/internal/groups/errors"
	"fleetbook/internal/groups/repository"
	"fleetbook/internal/groups/validator"
	"fleetbook/pkg/config"
	mongotx "fleetbook/pkg/db/mongo"
	apperrors "fleetbook/pkg/errors"
	"fleetbook/pkg/events"
	"fleetbook/pkg/model"
	"fleetbook/pkg/sanitizer"
)

// VehicleCascader deletes a group's vehicles and their bookings when the
// group itself is deleted.
type VehicleCascader interface {
	DeleteByGroup(ctx context.Context, groupID string) error
}

// Membership is a group seen from one user's perspective.
type Membership struct {
	Group    *model.Group `json:"group"`
	IsMember bool         `json:"is_member"`
	IsAdmin  bool         `json:"is_admin"`
}

type GroupService interface {
	Create(ctx context.Context, creatorID string, group *model.Group) error
	GetByID(ctx context.Context, userID, id string) (*Membership, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Group, int64, error)
	Update(ctx context.Context, groupID, editorID string, update *model.GroupUpdate) error
	Delete(ctx context.Context, groupID, editorID string) error
	Join(ctx context.Context, groupID, userID string) (joined bool, err error)
	Leave(ctx context.Context, groupID, userID string) error
	IsAdmin(ctx context.Context, groupID, userID string) (bool, error)
}

type groupService struct {
	repo      repository.GroupRepository
	lockRepo  mongotx.SlotLockRepository
	validator *validator.GroupValidator
	vehicles  VehicleCascader
	publisher events.Publisher
	cfg       *config.Config
}

func NewGroupService(
	repo repository.GroupRepository,
	lockRepo mongotx.SlotLockRepository,
	groupValidator *validator.GroupValidator,
	vehicles VehicleCascader,
	publisher events.Publisher,
	cfg *config.Config,
) GroupService {
	return &groupService{
		repo:      repo,
		lockRepo:  lockRepo,
		validator: groupValidator,
		vehicles:  vehicles,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *groupService) Create(ctx context.Context, creatorID string, group *model.Group) error {
	if creatorID == "" {
		return apperrors.Unauthorized("Creating a group requires an authenticated user")
	}

	group.Name = sanitizer.NormalizeName(group.Name)
	group.Description = sanitizer.NormalizeComment(group.Description)
	group.CreatedBy = creatorID
	// The creator is the sole initial member and automatically admin.
	group.Members = []model.GroupMember{
		{UserID: creatorID, Admin: true, JoinedAt: time.Now().UTC()},
	}

	if err := s.validator.Validate(group); err != nil {
		s.cfg.Log.Warn("Group validation failed", "name", group.Name, "error", err)
		return apperrors.Validation("Group validation failed", map[string]any{"error": err.Error()})
	}

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		existing, err := s.repo.FindByName(sessCtx, group.Name)
		if err != nil && !errors.Is(err, groupserrors.ErrNotFound) {
			return apperrors.Internal("Failed to check group name", err)
		}
		if existing != nil {
			return apperrors.Conflict(fmt.Sprintf("A group named %q already exists", group.Name))
		}
		if err := s.repo.Create(sessCtx, group); err != nil {
			return apperrors.Internal("Failed to create group", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create group", "name", group.Name, "error", err)
		return err
	}

	s.publish(ctx, events.Event{
		Type: events.TypeGroupCreated,
		Key:  group.ID,
		Payload: map[string]any{
			"group_id":   group.ID,
			"name":       group.Name,
			"created_by": creatorID,
		},
	})

	s.cfg.Log.Info("Group created successfully", "id", group.ID, "name", group.Name, "created_by", creatorID)
	return nil
}

func (s *groupService) GetByID(ctx context.Context, userID, id string) (*Membership, error) {
	group, err := s.findGroup(ctx, id)
	if err != nil {
		return nil, err
	}

	member := group.Member(userID)
	return &Membership{
		Group:    group,
		IsMember: member != nil,
		IsAdmin:  member != nil && member.Admin,
	}, nil
}

func (s *groupService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Group, int64, error) {
	var count int64
	var groups []*model.Group
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count groups", "error", errCount)
			errCount = apperrors.Internal("Failed to count groups", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		groups, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list groups", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve groups", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return groups, count, nil
}

// Update edits name/description and applies the proposed admin flags to the
// current member set. The no-admins check runs against the member set after
// all proposed changes, before anything is persisted. Name uniqueness is
// not rechecked on rename; the original system behaved the same way.
func (s *groupService) Update(ctx context.Context, groupID, editorID string, update *model.GroupUpdate) error {
	if err := s.validator.ValidateUpdate(update); err != nil {
		s.cfg.Log.Warn("Group update validation failed", "id", groupID, "error", err)
		return apperrors.Validation("Group update validation failed", map[string]any{"error": err.Error()})
	}

	lockID, err := s.acquireGroupLock(ctx, groupID)
	if err != nil {
		return err
	}
	defer s.releaseGroupLock(ctx, lockID)

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		group, err := s.findGroup(sessCtx, groupID)
		if err != nil {
			return err
		}

		editor := group.Member(editorID)
		if editor == nil || !editor.Admin {
			return apperrors.Forbidden("Only group admins may edit the group")
		}

		group.Name = sanitizer.NormalizeName(update.Name)
		group.Description = sanitizer.NormalizeComment(update.Description)
		for i := range group.Members {
			if admin, proposed := update.AdminFlags[group.Members[i].UserID]; proposed {
				group.Members[i].Admin = admin
			}
		}

		if len(group.Members) > 0 && group.AdminCount() == 0 {
			return apperrors.Conflict(groupserrors.ErrNoAdmins.Error())
		}

		group.UpdatedBy = editorID
		group.UpdatedAt = time.Now().UTC()
		if err := s.repo.UpdateDetails(sessCtx, group); err != nil {
			return apperrors.Internal("Failed to update group", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to update group", "id", groupID, "editor", editorID, "error", err)
		return err
	}

	s.cfg.Log.Info("Group updated successfully", "id", groupID, "editor", editorID)
	return nil
}

func (s *groupService) Delete(ctx context.Context, groupID, editorID string) error {
	lockID, err := s.acquireGroupLock(ctx, groupID)
	if err != nil {
		return err
	}
	defer s.releaseGroupLock(ctx, lockID)

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		group, err := s.findGroup(sessCtx, groupID)
		if err != nil {
			return err
		}

		editor := group.Member(editorID)
		if editor == nil || !editor.Admin {
			return apperrors.Forbidden("Only group admins may delete the group")
		}

		// Vehicles and their bookings go with the group.
		if err := s.vehicles.DeleteByGroup(sessCtx, groupID); err != nil {
			return apperrors.Internal("Failed to delete group vehicles", err)
		}
		if err := s.repo.Delete(sessCtx, groupID); err != nil {
			return apperrors.Internal("Failed to delete group", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to delete group", "id", groupID, "editor", editorID, "error", err)
		return err
	}

	s.publish(ctx, events.Event{
		Type:    events.TypeGroupDeleted,
		Key:     groupID,
		Payload: map[string]any{"group_id": groupID, "deleted_by": editorID},
	})

	s.cfg.Log.Info("Group deleted successfully", "id", groupID, "editor", editorID)
	return nil
}

// Join is idempotent: joining a group twice leaves one membership row and
// reports joined=false the second time.
func (s *groupService) Join(ctx context.Context, groupID, userID string) (bool, error) {
	if userID == "" {
		return false, apperrors.Unauthorized("Joining a group requires an authenticated user")
	}

	lockID, err := s.acquireGroupLock(ctx, groupID)
	if err != nil {
		return false, err
	}
	defer s.releaseGroupLock(ctx, lockID)

	joined := false
	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		group, err := s.findGroup(sessCtx, groupID)
		if err != nil {
			return err
		}

		if group.Member(userID) != nil {
			return nil
		}

		members := append(group.Members, model.GroupMember{
			UserID:   userID,
			Admin:    false,
			JoinedAt: time.Now().UTC(),
		})
		if err := s.repo.ReplaceMembers(sessCtx, groupID, members); err != nil {
			return apperrors.Internal("Failed to add group member", err)
		}
		joined = true
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to join group", "id", groupID, "user_id", userID, "error", err)
		return false, err
	}

	if joined {
		s.publish(ctx, events.Event{
			Type:    events.TypeMemberJoined,
			Key:     groupID,
			Payload: map[string]any{"group_id": groupID, "user_id": userID},
		})
		s.cfg.Log.Info("User joined group", "id", groupID, "user_id", userID)
	}
	return joined, nil
}

// Leave removes the membership unless the leaver is the only admin left:
// the admin count is computed from the committed member set inside the same
// lock+transaction scope Update uses.
func (s *groupService) Leave(ctx context.Context, groupID, userID string) error {
	if userID == "" {
		return apperrors.Unauthorized("Leaving a group requires an authenticated user")
	}

	lockID, err := s.acquireGroupLock(ctx, groupID)
	if err != nil {
		return err
	}
	defer s.releaseGroupLock(ctx, lockID)

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		group, err := s.findGroup(sessCtx, groupID)
		if err != nil {
			return err
		}

		member := group.Member(userID)
		if member == nil {
			return apperrors.Conflict(groupserrors.ErrNotAMember.Error())
		}
		if member.Admin && group.AdminCount() == 1 {
			return apperrors.Conflict(groupserrors.ErrLastAdmin.Error())
		}

		members := make([]model.GroupMember, 0, len(group.Members)-1)
		for _, m := range group.Members {
			if m.UserID != userID {
				members = append(members, m)
			}
		}
		if err := s.repo.ReplaceMembers(sessCtx, groupID, members); err != nil {
			return apperrors.Internal("Failed to remove group member", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to leave group", "id", groupID, "user_id", userID, "error", err)
		return err
	}

	s.publish(ctx, events.Event{
		Type:    events.TypeMemberLeft,
		Key:     groupID,
		Payload: map[string]any{"group_id": groupID, "user_id": userID},
	})

	s.cfg.Log.Info("User left group", "id", groupID, "user_id", userID)
	return nil
}

// IsAdmin reports whether userID is a member with the admin flag set. This
// is the authorization gate the vehicles and bookings domains consult.
func (s *groupService) IsAdmin(ctx context.Context, groupID, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	group, err := s.findGroup(ctx, groupID)
	if err != nil {
		return false, err
	}
	member := group.Member(userID)
	return member != nil && member.Admin, nil
}

// --- Helpers ---

func (s *groupService) findGroup(ctx context.Context, id string) (*model.Group, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Group ID cannot be empty")
	}
	group, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, groupserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Group", id)
		}
		if errors.Is(err, groupserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid group ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve group", err)
	}
	return group, nil
}

func (s *groupService) acquireGroupLock(ctx context.Context, groupID string) (string, error) {
	lockID := fmt.Sprintf("group_lock_%s", groupID)

	lock := &model.SlotLock{
		ID:        lockID,
		ExpiresAt: time.Now().Add(s.cfg.SlotLockTTL),
	}

	if _, err := s.lockRepo.Acquire(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", apperrors.Conflict("This group is currently being modified by another request. Please try again.")
		}
		return "", apperrors.Internal("Failed to acquire group lock", err)
	}

	return lockID, nil
}

func (s *groupService) releaseGroupLock(ctx context.Context, lockID string) {
	if err := s.lockRepo.Release(ctx, lockID); err != nil {
		s.cfg.Log.Warn("Failed to release group lock", "lock_id", lockID, "error", err)
	}
}

func (s *groupService) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.cfg.Log.Warn("Failed to publish event", "type", event.Type, "key", event.Key, "error", err)
	}
}
