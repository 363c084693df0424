package usecase

import (
	"context"
	"fmt"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type AdminAuditUsecase struct {
	audits repo.AuditLogRepository
}

func NewAdminAuditUsecase(audits repo.AuditLogRepository) *AdminAuditUsecase {
	return &AdminAuditUsecase{audits: audits}
}

type AuditLogListOutput struct {
	Items  []model.AuditLog `json:"items"`
	Total  int64            `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

func (u *AdminAuditUsecase) List(ctx context.Context, actor model.AuthenticatedUser, f repo.AuditLogFilter) (AuditLogListOutput, error) {
	if err := requireAdmin(actor); err != nil {
		return AuditLogListOutput{}, err
	}
	if f.Limit < 0 || f.Limit > 200 || f.Offset < 0 {
		return AuditLogListOutput{}, fmt.Errorf("%w: invalid paging", ErrInvalidInput)
	}
	if f.CreatedFrom != nil && f.CreatedTo != nil && f.CreatedFrom.After(*f.CreatedTo) {
		return AuditLogListOutput{}, fmt.Errorf("%w: from must be before to", ErrInvalidInput)
	}
	if f.Limit == 0 {
		f.Limit = 50
	}

	logs, total, err := u.audits.List(ctx, f)
	if err != nil {
		return AuditLogListOutput{}, err
	}
	if logs == nil {
		logs = []model.AuditLog{}
	}
	return AuditLogListOutput{Items: logs, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}
