package container

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/hei-liquidation/internal/application/service"
	"github.com/garyjia/hei-liquidation/internal/domain/entity"
	domainwf "github.com/garyjia/hei-liquidation/internal/domain/workflow"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "db", "liquidation.db")
	cfg.Storage.DocumentDir = filepath.Join(dir, "documents")
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"missing document dir", func(c *Config) { c.Storage.DocumentDir = "" }, "storage.document_dir"},
		{"half lark credentials", func(c *Config) { c.Lark.AppID = "cli_x" }, "lark.app_id"},
		{"zero cache ttl", func(c *Config) { c.Workflow.CacheTTL = 0 }, "workflow.cache_ttl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestContainer_Lifecycle(t *testing.T) {
	ctr, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, ctr.Start(context.Background()))
	assert.True(t, ctr.Ready())
	assert.Error(t, ctr.Start(context.Background()), "second start")

	health := ctr.Health()
	assert.True(t, health.Overall)
	assert.True(t, health.Components["database"].Healthy)
	_, hasRedis := health.Components["redis"]
	assert.False(t, hasRedis, "redis is only checked when configured")

	assert.Nil(t, ctr.LarkMessenger(), "lark stays off without credentials")
	assert.Equal(t, 0, ctr.Workers().GetWorkerCount())

	require.NoError(t, ctr.Close())
	assert.False(t, ctr.Ready())
	assert.Error(t, ctr.Close(), "second close")
	assert.Error(t, ctr.Start(context.Background()), "start after close")
}

func TestContainer_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Path = ""

	_, err := NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(nil, zap.NewNop())
	assert.Error(t, err)
}

func TestContainer_WiresLiquidationWorkflow(t *testing.T) {
	ctx := context.Background()
	ctr, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, ctr.Start(ctx))
	t.Cleanup(func() { _ = ctr.Close() })

	svc := ctr.Services()
	admin := entity.Actor{ID: "u-admin", Roles: []string{entity.RoleAdmin}}

	region := &entity.Region{Code: "R7", Name: "Central Visayas"}
	require.NoError(t, svc.Reference.SaveRegion(ctx, admin, region))
	hei := &entity.HEI{ExternalID: "HEI-07-001", Name: "Cebu Polytechnic", RegionID: region.ID}
	require.NoError(t, svc.Reference.SaveHEI(ctx, admin, hei))
	program := &entity.Program{Code: "tdp-tes", Name: "Tertiary Education Subsidy"}
	require.NoError(t, svc.Reference.SaveProgram(ctx, admin, program))
	require.NoError(t, svc.Reference.SaveAcademicYear(ctx, admin, &entity.AcademicYear{Label: "2023-2024"}))

	heiUser := entity.Actor{ID: "u-hei", Roles: []string{entity.RoleHEI}, HEIID: &hei.ID}
	l, err := svc.Liquidation.CreateLiquidation(ctx, heiUser, service.CreateLiquidationInput{
		HEIExternalID:    hei.ExternalID,
		ProgramID:        program.ID,
		AcademicYear:     "2023-2024",
		Semester:         "Second Semester",
		AmountReceived:   decimal.RequireFromString("150000.00"),
		NumberOfGrantees: 30,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(l.ControlNo, "TDPTES-"), l.ControlNo)
	assert.True(t, strings.HasSuffix(l.ControlNo, "-00001"), l.ControlNo)
	assert.Equal(t, domainwf.StateDraft, l.Status)

	_, err = svc.Liquidation.AddBeneficiary(ctx, l.ID, heiUser, entity.Beneficiary{
		StudentNo: "2021-0001", LastName: "Dela Cruz", FirstName: "Juan", Amount: decimal.RequireFromString("5000"),
	})
	require.NoError(t, err)

	submitted, err := svc.Workflow.SubmitForReview(ctx, l.ID, heiUser, "")
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateForInitialReview, submitted.Status)

	activity, err := svc.Activity.ListActivity(ctx, entity.ActivityEntityLiquidation, l.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, activity)
}
