package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/bundler/internal/core/domain"
	"go.trai.ch/zerr"
)

func TestReport_Err(t *testing.T) {
	var r domain.Report
	r.Record("a.js", domain.OutcomeBuilt)
	r.Record("b.js", domain.OutcomeCached)
	require.NoError(t, r.Err())
	assert.False(t, r.HasFailures())

	r.RecordFailure("c.js", errors.New("unexpected token"))
	r.Record("d.js", domain.OutcomeSkipped)

	err := r.Err()
	require.Error(t, err)
	assert.True(t, r.HasFailures())
	assert.ErrorIs(t, err, domain.ErrBuildFailed)
	assert.ErrorIs(t, err, domain.ErrTransformFailure)
	assert.ErrorContains(t, err, "transform failed: unexpected token")
	assert.Equal(t, []string{"d.js"}, r.Skipped)
}

func TestTransformFailure(t *testing.T) {
	cause := errors.New("syntax error")

	tests := []struct {
		name  string
		cause error
		want  string
	}{
		{name: "wraps a plain cause", cause: cause, want: "transform failed: syntax error"},
		{name: "nil cause", cause: nil, want: "transform failed"},
		{name: "already classified", cause: domain.ErrTransformFailure, want: "transform failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := domain.TransformFailure("x.js", tt.cause)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrTransformFailure)
			assert.EqualError(t, err, tt.want)
			if tt.cause != nil {
				assert.ErrorIs(t, err, tt.cause)
			}

			var z *zerr.Error
			require.ErrorAs(t, err, &z)
			assert.Equal(t, "x.js", z.Metadata()["target"])
		})
	}
}

func TestModuleKey(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{name: "absolute inside root", path: "/project/src/main.ts", want: "src/main.ts"},
		{name: "relative", path: "src/app.ts", want: "src/app.ts"},
		{name: "outside root", path: "/elsewhere/main.ts", wantErr: true},
		{name: "parent escape", path: "../main.ts", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := domain.ModuleKey("/project", tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorContains(t, err, domain.ErrPathOutsideRoot.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "/project/"+tt.want, domain.ModulePath("/project", domain.NewInternedString(got)))
		})
	}
}

func TestContentFingerprint(t *testing.T) {
	a := domain.ContentFingerprint([]byte("console.log(1)"))
	assert.Len(t, a, 16)
	assert.Equal(t, a, domain.ContentFingerprint([]byte("console.log(1)")))
	assert.NotEqual(t, a, domain.ContentFingerprint([]byte("console.log(2)")))

	art := domain.NewArtifact("main.js", "main.js", []byte("console.log(1)"))
	assert.Equal(t, a, art.Fingerprint)
}
