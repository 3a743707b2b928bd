package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/tunedesk/internal/identity"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectReport  = "report"
	ObjectPeriod  = "period"
	ObjectInsight = "insight"
	ObjectAudit   = "audit"
)

const (
	ActionView   = "view"
	ActionManage = "manage"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, caller identity.Identity, object string, action string) error {
	userID := strings.TrimSpace(caller.UserID)
	if userID == "" {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	roleName, err := roleFor(caller.Role)
	if err != nil {
		s.log.Debug("authorization denied", zap.String("user_id", userID), zap.String("role", caller.Role))
		return err
	}

	subject := "user:" + userID
	domain := domainFor(caller.AccountID)
	if err := s.ensureGrouping(subject, roleName, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("user_id", userID),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func roleFor(role string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case identity.RoleAdmin:
		return "role:admin", nil
	case identity.RoleUser:
		return "role:user", nil
	default:
		return "", ErrForbidden
	}
}

func domainFor(accountID string) string {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return "account:default"
	}
	return fmt.Sprintf("account:%s", accountID)
}

// ensureGrouping keeps exactly one role binding per subject and domain, following the role the
// authentication layer reports on each request.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// User permissions (read-only)
		{"role:user", ObjectReport, ActionView},
		{"role:user", ObjectPeriod, ActionView},
		{"role:user", ObjectInsight, ActionView},

		// Admin permissions
		{"role:admin", ObjectReport, ActionView},
		{"role:admin", ObjectReport, ActionManage},
		{"role:admin", ObjectPeriod, ActionView},
		{"role:admin", ObjectPeriod, ActionManage},
		{"role:admin", ObjectInsight, ActionView},
		{"role:admin", ObjectAudit, ActionView},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
