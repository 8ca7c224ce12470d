package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/bundler/internal/core/domain"
	"go.trai.ch/zerr"
)

func TestBuildTarget_Transition(t *testing.T) {
	tests := []struct {
		name    string
		from    domain.TargetStatus
		to      domain.TargetStatus
		wantErr bool
	}{
		{name: "pending to building", from: domain.StatusPending, to: domain.StatusBuilding},
		{name: "building to ready", from: domain.StatusBuilding, to: domain.StatusReady},
		{name: "building to failed", from: domain.StatusBuilding, to: domain.StatusFailed},
		{name: "ready to pending", from: domain.StatusReady, to: domain.StatusPending},
		{name: "failed to pending", from: domain.StatusFailed, to: domain.StatusPending},
		{name: "building to pending", from: domain.StatusBuilding, to: domain.StatusPending},
		{name: "pending to ready", from: domain.StatusPending, to: domain.StatusReady, wantErr: true},
		{name: "ready to building", from: domain.StatusReady, to: domain.StatusBuilding, wantErr: true},
		{name: "failed to ready", from: domain.StatusFailed, to: domain.StatusReady, wantErr: true},
		{name: "unknown status", from: domain.StatusPending, to: domain.TargetStatus("done"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := domain.NewBuildTarget("main.js", []string{"main.ts"}, 0)
			target.Status = tt.from

			err := target.Transition(tt.to)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, tt.to, target.Status)
				return
			}

			require.Error(t, err)
			assert.ErrorContains(t, err, domain.ErrInvalidTransition.Error())
			assert.Equal(t, tt.from, target.Status)

			zErr, ok := err.(*zerr.Error)
			require.True(t, ok)
			meta := zErr.Metadata()
			assert.Equal(t, "main.js", meta["target"])
			assert.Equal(t, string(tt.from), meta["from"])
			assert.Equal(t, string(tt.to), meta["to"])
		})
	}
}

func TestBuildTarget_Fail(t *testing.T) {
	target := domain.NewBuildTarget("main.js", []string{"main.ts"}, 0)
	require.NoError(t, target.Transition(domain.StatusBuilding))

	cause := errors.New("syntax error")
	require.NoError(t, target.Fail(cause))
	assert.Equal(t, domain.StatusFailed, target.Status)
	assert.Equal(t, cause, target.Err)

	require.NoError(t, target.Transition(domain.StatusPending))
	assert.NoError(t, target.Err)
}

func TestBuildTarget_FailRequiresBuilding(t *testing.T) {
	target := domain.NewBuildTarget("main.js", []string{"main.ts"}, 0)
	require.Error(t, target.Fail(errors.New("boom")))
	assert.Equal(t, domain.StatusPending, target.Status)
	assert.NoError(t, target.Err)
}

func TestBuildTarget_Clone(t *testing.T) {
	target := domain.NewBuildTarget("app.js", []string{"a.ts", "b.ts"}, 3)
	target.DependsOn = domain.NewInternedStrings([]string{"vendor.js"})

	clone := target.Clone()
	clone.Entries[0] = domain.NewInternedString("changed.ts")
	clone.DependsOn[0] = domain.NewInternedString("changed.js")

	assert.Equal(t, "a.ts", target.Entries[0].String())
	assert.Equal(t, "vendor.js", target.DependsOn[0].String())
	assert.Equal(t, 3, clone.Order)
	assert.True(t, target.HasEntry(domain.NewInternedString("b.ts")))
	assert.False(t, target.HasEntry(domain.NewInternedString("c.ts")))
}
