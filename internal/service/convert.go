package service

import (
	"time"

	"github.com/qs3c/subscription_server/internal/model"
	"github.com/qs3c/subscription_server/internal/model/dto"
)

func toFeatureItem(f *model.Feature) *dto.FeatureItem {
	return &dto.FeatureItem{ID: f.ID, Name: f.Name}
}

func toPlanItem(p *model.Plan) *dto.PlanItem {
	if p == nil {
		return nil
	}
	item := &dto.PlanItem{
		ID:       p.ID,
		Name:     p.Name,
		Features: make([]*dto.FeatureItem, 0, len(p.Features)),
	}
	for _, f := range p.Features {
		item.Features = append(item.Features, toFeatureItem(f))
	}
	return item
}

func toSubscriptionItem(s *model.Subscription) *dto.SubscriptionItem {
	return &dto.SubscriptionItem{
		ID:        s.ID,
		StartDate: s.StartDate,
		IsActive:  s.IsActive,
		Plan:      toPlanItem(s.Plan),
	}
}

func toSubscriptionItems(subs []*model.Subscription) []*dto.SubscriptionItem {
	items := make([]*dto.SubscriptionItem, 0, len(subs))
	for _, s := range subs {
		items = append(items, toSubscriptionItem(s))
	}
	return items
}

func buildUserInfo(user *model.User) *dto.UserInfo {
	info := &dto.UserInfo{
		ID:        user.ID,
		Username:  user.Username,
		AvatarURL: user.AvatarURL,
		IsAdmin:   user.IsAdmin,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}

	if user.Email != nil {
		info.Email = *user.Email
	}

	return info
}
