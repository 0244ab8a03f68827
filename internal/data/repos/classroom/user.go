package classroom

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/lectern-backend/internal/domain"
	"github.com/yungbote/lectern-backend/internal/platform/dbctx"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

type UserRepo interface {
	Create(dbc dbctx.Context, user *types.User) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.User, error)
	GetByUsername(dbc dbctx.Context, username string) (*types.User, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.User, error)
	UsernameExists(dbc dbctx.Context, username string) (bool, error)
	ListByRole(dbc dbctx.Context, role string) ([]*types.User, error)
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (r *userRepo) Create(dbc dbctx.Context, user *types.User) error {
	return dbc.DB(r.db).Create(user).Error
}

func (r *userRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.User, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var u types.User
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&u).Error; err != nil {
		return nil, err
	}
	if u.ID == uuid.Nil {
		return nil, nil
	}
	return &u, nil
}

func (r *userRepo) GetByUsername(dbc dbctx.Context, username string) (*types.User, error) {
	if username == "" {
		return nil, nil
	}
	var u types.User
	if err := dbc.DB(r.db).Where("username = ?", username).Limit(1).Find(&u).Error; err != nil {
		return nil, err
	}
	if u.ID == uuid.Nil {
		return nil, nil
	}
	return &u, nil
}

func (r *userRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.User, error) {
	var out []*types.User
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *userRepo) UsernameExists(dbc dbctx.Context, username string) (bool, error) {
	var count int64
	if err := dbc.DB(r.db).Model(&types.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRepo) ListByRole(dbc dbctx.Context, role string) ([]*types.User, error) {
	var out []*types.User
	if err := dbc.DB(r.db).Where("role = ?", role).Order("username ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
