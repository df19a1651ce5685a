package service

import (
	"context"
	"encoding/json"
	"fmt"

	"contractflow/internal/model"
	"contractflow/internal/repository"
	"contractflow/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type BandPayload struct {
	UserID       string          `json:"user_id" binding:"required"`
	RoleLabel    string          `json:"role_label"`
	MinAmount    decimal.Decimal `json:"min_amount"`
	MaxAmount    decimal.Decimal `json:"max_amount"`
	NoUpperLimit bool            `json:"no_upper_limit"`
}

type CreateTeamRequest struct {
	Name           string        `json:"name" binding:"required"`
	LeaderID       string        `json:"leader_id" binding:"required"`
	LeaderOverride bool          `json:"leader_override"`
	Bands          []BandPayload `json:"bands" binding:"required"`
}

type UpdateTeamRequest struct {
	Name           *string        `json:"name"`
	LeaderID       *string        `json:"leader_id"`
	LeaderOverride *bool          `json:"leader_override"`
	Active         *bool          `json:"active"`
	Bands          *[]BandPayload `json:"bands"` // nil = keep current set
}

type BandResponse struct {
	UserID       uuid.UUID       `json:"user_id"`
	Username     string          `json:"username"`
	RoleLabel    string          `json:"role_label"`
	MinAmount    decimal.Decimal `json:"min_amount"`
	MaxAmount    decimal.Decimal `json:"max_amount"`
	NoUpperLimit bool            `json:"no_upper_limit"`
}

type TeamResponse struct {
	ID             uuid.UUID      `json:"id"`
	Name           string         `json:"name"`
	LeaderID       uuid.UUID      `json:"leader_id"`
	LeaderName     string         `json:"leader_name,omitempty"`
	LeaderOverride bool           `json:"leader_override"`
	Active         bool           `json:"active"`
	Bands          []BandResponse `json:"bands"`
}

// --- Interface ---

type TeamService interface {
	CreateTeam(ctx context.Context, actorID string, req CreateTeamRequest) (TeamResponse, error)
	UpdateTeam(ctx context.Context, actorID, id string, req UpdateTeamRequest) (TeamResponse, error)
	GetTeam(ctx context.Context, id string) (TeamResponse, error)
	ListTeams(ctx context.Context, page, limit int) ([]TeamResponse, int64, error)
	AddBand(ctx context.Context, actorID, teamID string, band BandPayload) (TeamResponse, error)
	RemoveBand(ctx context.Context, actorID, teamID, userID string) (TeamResponse, error)
	DeleteTeam(ctx context.Context, actorID, id string) error
}

type teamService struct {
	teamRepo  repository.TeamRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
}

func NewTeamService(teamRepo repository.TeamRepository, auditRepo repository.AuditRepository, txManager repository.TransactionManager) TeamService {
	return &teamService{teamRepo: teamRepo, auditRepo: auditRepo, txManager: txManager}
}

// --- Helpers ---

func toBandModels(payloads []BandPayload) ([]model.ApproverBand, error) {
	bands := make([]model.ApproverBand, 0, len(payloads))
	for i, p := range payloads {
		userID, err := uuid.Parse(p.UserID)
		if err != nil {
			return nil, apperr.Validation("BAND_USER_INVALID",
				fmt.Sprintf("bands[%d]: invalid approver user id", i))
		}
		bands = append(bands, model.ApproverBand{
			UserID:       userID,
			RoleLabel:    p.RoleLabel,
			Sequence:     (i + 1) * 10,
			MinAmount:    p.MinAmount,
			MaxAmount:    p.MaxAmount,
			NoUpperLimit: p.NoUpperLimit,
		})
	}
	return bands, nil
}

func toTeamResponse(t model.ApprovalTeam) TeamResponse {
	resp := TeamResponse{
		ID:             t.ID,
		Name:           t.Name,
		LeaderID:       t.LeaderID,
		LeaderOverride: t.LeaderOverride,
		Active:         t.Active,
		Bands:          make([]BandResponse, 0, len(t.Bands)),
	}
	if t.Leader != nil {
		resp.LeaderName = t.Leader.Username
	}
	for _, b := range t.Bands {
		band := BandResponse{
			UserID:       b.UserID,
			RoleLabel:    b.RoleLabel,
			MinAmount:    b.MinAmount,
			MaxAmount:    b.MaxAmount,
			NoUpperLimit: b.NoUpperLimit,
		}
		if b.User != nil {
			band.Username = b.User.Username
		}
		resp.Bands = append(resp.Bands, band)
	}
	return resp
}

func (s *teamService) audit(ctx context.Context, actorID, action string, entityID uuid.UUID, entityName string, details map[string]interface{}) error {
	var userID *uuid.UUID
	if parsed, err := uuid.Parse(actorID); err == nil {
		userID = &parsed
	}
	payload, _ := json.Marshal(details)
	return s.auditRepo.Create(ctx, &model.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityID:   entityID.String(),
		EntityName: entityName,
		Details:    string(payload),
	})
}

// --- Operations ---

func (s *teamService) CreateTeam(ctx context.Context, actorID string, req CreateTeamRequest) (TeamResponse, error) {
	leaderID, err := uuid.Parse(req.LeaderID)
	if err != nil {
		return TeamResponse{}, apperr.Validation("LEADER_INVALID", "invalid leader user id")
	}

	bands, err := toBandModels(req.Bands)
	if err != nil {
		return TeamResponse{}, err
	}

	team := &model.ApprovalTeam{
		Name:           req.Name,
		LeaderID:       leaderID,
		LeaderOverride: req.LeaderOverride,
		Active:         true,
		Bands:          bands,
	}
	if err := team.Validate(); err != nil {
		return TeamResponse{}, err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.teamRepo.Create(txCtx, team); createErr != nil {
			return fmt.Errorf("failed to create approval team: %w", createErr)
		}
		return s.audit(txCtx, actorID, model.ActionCreateTeam, team.ID, team.Name,
			map[string]interface{}{"bands": len(team.Bands)})
	})
	if err != nil {
		return TeamResponse{}, err
	}

	return toTeamResponse(*team), nil
}

func (s *teamService) UpdateTeam(ctx context.Context, actorID, id string, req UpdateTeamRequest) (TeamResponse, error) {
	teamID, err := uuid.Parse(id)
	if err != nil {
		return TeamResponse{}, apperr.Validation("TEAM_ID_INVALID", "invalid team id")
	}

	var updated *model.ApprovalTeam
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		team, findErr := s.teamRepo.FindByID(txCtx, teamID)
		if findErr != nil {
			return fmt.Errorf("approval team not found: %w", findErr)
		}

		if req.Name != nil {
			team.Name = *req.Name
		}
		if req.LeaderID != nil {
			leaderID, parseErr := uuid.Parse(*req.LeaderID)
			if parseErr != nil {
				return apperr.Validation("LEADER_INVALID", "invalid leader user id")
			}
			team.LeaderID = leaderID
		}
		if req.LeaderOverride != nil {
			team.LeaderOverride = *req.LeaderOverride
		}
		if req.Active != nil {
			team.Active = *req.Active
		}

		newBands := team.Bands
		if req.Bands != nil {
			bands, convErr := toBandModels(*req.Bands)
			if convErr != nil {
				return convErr
			}
			newBands = bands
		}

		// Validate against the prospective band set before touching rows.
		check := *team
		check.Bands = newBands
		if valErr := check.Validate(); valErr != nil {
			return valErr
		}

		if req.Bands != nil {
			if repErr := s.teamRepo.ReplaceBands(txCtx, team, newBands); repErr != nil {
				return fmt.Errorf("failed to replace approver bands: %w", repErr)
			}
		}
		if saveErr := s.teamRepo.Update(txCtx, team); saveErr != nil {
			return fmt.Errorf("failed to update approval team: %w", saveErr)
		}

		updated = team
		return s.audit(txCtx, actorID, model.ActionUpdateTeam, team.ID, team.Name, nil)
	})
	if err != nil {
		return TeamResponse{}, err
	}

	return s.GetTeam(ctx, updated.ID.String())
}

func (s *teamService) GetTeam(ctx context.Context, id string) (TeamResponse, error) {
	teamID, err := uuid.Parse(id)
	if err != nil {
		return TeamResponse{}, apperr.Validation("TEAM_ID_INVALID", "invalid team id")
	}
	team, err := s.teamRepo.FindByID(ctx, teamID)
	if err != nil {
		return TeamResponse{}, fmt.Errorf("approval team not found: %w", err)
	}
	return toTeamResponse(*team), nil
}

func (s *teamService) ListTeams(ctx context.Context, page, limit int) ([]TeamResponse, int64, error) {
	teams, total, err := s.teamRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list approval teams: %w", err)
	}
	result := make([]TeamResponse, 0, len(teams))
	for _, t := range teams {
		result = append(result, toTeamResponse(t))
	}
	return result, total, nil
}

// AddBand appends one band and re-validates the whole set.
func (s *teamService) AddBand(ctx context.Context, actorID, teamID string, payload BandPayload) (TeamResponse, error) {
	id, err := uuid.Parse(teamID)
	if err != nil {
		return TeamResponse{}, apperr.Validation("TEAM_ID_INVALID", "invalid team id")
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		team, findErr := s.teamRepo.FindByID(txCtx, id)
		if findErr != nil {
			return fmt.Errorf("approval team not found: %w", findErr)
		}

		bands, convErr := toBandModels([]BandPayload{payload})
		if convErr != nil {
			return convErr
		}
		newBand := bands[0]
		newBand.Sequence = (len(team.Bands) + 1) * 10
		all := append(append([]model.ApproverBand{}, team.Bands...), newBand)

		check := *team
		check.Bands = all
		if valErr := check.Validate(); valErr != nil {
			return valErr
		}

		if repErr := s.teamRepo.ReplaceBands(txCtx, team, all); repErr != nil {
			return fmt.Errorf("failed to add approver band: %w", repErr)
		}
		return s.audit(txCtx, actorID, model.ActionUpdateTeam, team.ID, team.Name,
			map[string]interface{}{"added_band_user": payload.UserID})
	})
	if err != nil {
		return TeamResponse{}, err
	}

	return s.GetTeam(ctx, teamID)
}

// RemoveBand drops one approver and re-validates; removing the last band fails
// because every team must keep at least one.
func (s *teamService) RemoveBand(ctx context.Context, actorID, teamID, userID string) (TeamResponse, error) {
	id, err := uuid.Parse(teamID)
	if err != nil {
		return TeamResponse{}, apperr.Validation("TEAM_ID_INVALID", "invalid team id")
	}
	uid, err := uuid.Parse(userID)
	if err != nil {
		return TeamResponse{}, apperr.Validation("BAND_USER_INVALID", "invalid approver user id")
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		team, findErr := s.teamRepo.FindByID(txCtx, id)
		if findErr != nil {
			return fmt.Errorf("approval team not found: %w", findErr)
		}

		remaining := make([]model.ApproverBand, 0, len(team.Bands))
		removed := false
		for _, b := range team.Bands {
			if b.UserID == uid {
				removed = true
				continue
			}
			b.ID = uuid.Nil // re-created by ReplaceBands
			remaining = append(remaining, b)
		}
		if !removed {
			return apperr.Validation("BAND_NOT_FOUND", "approver is not a member of this team")
		}

		check := *team
		check.Bands = remaining
		if valErr := check.Validate(); valErr != nil {
			return valErr
		}

		if repErr := s.teamRepo.ReplaceBands(txCtx, team, remaining); repErr != nil {
			return fmt.Errorf("failed to remove approver band: %w", repErr)
		}
		return s.audit(txCtx, actorID, model.ActionUpdateTeam, team.ID, team.Name,
			map[string]interface{}{"removed_band_user": userID})
	})
	if err != nil {
		return TeamResponse{}, err
	}

	return s.GetTeam(ctx, teamID)
}

// DeleteTeam refuses to delete a team that contracts still reference.
func (s *teamService) DeleteTeam(ctx context.Context, actorID, id string) error {
	teamID, err := uuid.Parse(id)
	if err != nil {
		return apperr.Validation("TEAM_ID_INVALID", "invalid team id")
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		team, findErr := s.teamRepo.FindByID(txCtx, teamID)
		if findErr != nil {
			return fmt.Errorf("approval team not found: %w", findErr)
		}

		count, countErr := s.teamRepo.CountContracts(txCtx, teamID)
		if countErr != nil {
			return fmt.Errorf("failed to check contract references: %w", countErr)
		}
		if count > 0 {
			return apperr.Policy("TEAM_IN_USE", fmt.Sprintf(
				"cannot delete approval team: %d contract(s) still reference it", count))
		}

		if delErr := s.teamRepo.Delete(txCtx, teamID); delErr != nil {
			return fmt.Errorf("failed to delete approval team: %w", delErr)
		}
		return s.audit(txCtx, actorID, model.ActionDeleteTeam, team.ID, team.Name, nil)
	})
}
