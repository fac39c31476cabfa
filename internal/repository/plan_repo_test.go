package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/subscription_server/internal/model"
	"github.com/qs3c/subscription_server/internal/testutil"
)

func TestPlanRepository_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewPlanRepository(db)
	f1 := testutil.TestFeature(t, db, "Storage")
	f2 := testutil.TestFeature(t, db, "Support")

	plan := &model.Plan{Name: "Pro"}
	require.NoError(t, repo.Create(plan, []int64{f1.ID, f2.ID, f1.ID}))
	assert.NotZero(t, plan.ID)

	found, err := repo.GetByID(plan.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pro", found.Name)
	require.Len(t, found.Features, 2)
	assert.Equal(t, "Storage", found.Features[0].Name)
	assert.Equal(t, "Support", found.Features[1].Name)
}

func TestPlanRepository_Create_NoFeatures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewPlanRepository(db)

	plan := &model.Plan{Name: "Free"}
	require.NoError(t, repo.Create(plan, nil))

	found, err := repo.GetByID(plan.ID)
	require.NoError(t, err)
	assert.Empty(t, found.Features)
}

func TestPlanRepository_Create_UnknownFeature(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewPlanRepository(db)
	f1 := testutil.TestFeature(t, db, "Storage")

	err := repo.Create(&model.Plan{Name: "Broken"}, []int64{f1.ID, 9999})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// 不留下半成品
	var count int64
	require.NoError(t, db.Model(&model.Plan{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPlanRepository_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	_, err := NewPlanRepository(db).GetByID(9999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPlanRepository_Exists(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewPlanRepository(db)
	plan := testutil.TestPlan(t, db, "Basic")

	exists, err := repo.Exists(plan.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Exists(9999)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPlanRepository_List(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewPlanRepository(db)
	shared := testutil.TestFeature(t, db, "Shared")
	extra := testutil.TestFeature(t, db, "Extra")
	testutil.TestPlan(t, db, "Basic", shared)
	testutil.TestPlan(t, db, "Pro", shared, extra)

	plans, err := repo.List()
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "Basic", plans[0].Name)
	assert.Len(t, plans[0].Features, 1)
	assert.Equal(t, "Pro", plans[1].Name)
	assert.Len(t, plans[1].Features, 2)
}

func TestPlanRepository_Delete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewPlanRepository(db)
	feature := testutil.TestFeature(t, db, "Storage")
	plan := testutil.TestPlan(t, db, "Doomed", feature)
	keep := testutil.TestPlan(t, db, "Keep", feature)
	user := testutil.TestUser(t, db)
	testutil.TestSubscription(t, db, user.ID, plan.ID, false)
	testutil.TestSubscription(t, db, user.ID, keep.ID, false)
	testutil.TestSubscription(t, db, user.ID, plan.ID, true)

	require.NoError(t, repo.Delete(plan.ID))

	_, err := repo.GetByID(plan.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// 引用该套餐的订阅（含历史记录）级联删除，其他套餐的订阅保留
	var subs []model.Subscription
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&subs).Error)
	require.Len(t, subs, 1)
	assert.Equal(t, keep.ID, subs[0].PlanID)

	// 功能项本身保留，仍被其他套餐使用
	var links int64
	require.NoError(t, db.Table("plan_features").Where("plan_id = ?", plan.ID).Count(&links).Error)
	assert.Zero(t, links)

	found, err := repo.GetByID(keep.ID)
	require.NoError(t, err)
	assert.Len(t, found.Features, 1)
}

func TestPlanRepository_Delete_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	err := NewPlanRepository(db).Delete(9999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
