package settings

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/meghashyamc/churnsearch/config"
	"github.com/meghashyamc/churnsearch/db/kvdb"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, policy string) *Service {
	t.Helper()
	t.Setenv("ENV", "test")
	t.Setenv("INDEX_RESOLUTION", policy)
	cfg, err := config.Load()
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	store, err := kvdb.Open(log, filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return New(log, store, cfg)
}

func existing(names ...string) func(string) bool {
	return func(name string) bool {
		for _, n := range names {
			if n == name {
				return true
			}
		}
		return false
	}
}

func TestGetSetAndReset(t *testing.T) {
	assert := require.New(t)
	service := newTestService(t, config.IndexResolutionSettingFirst)

	value, err := service.Get(IndexPatternKey)
	assert.NoError(err)
	assert.Equal("customer_churn_model", value)

	assert.NoError(service.Set(IndexPatternKey, "calls_2024"))
	value, err = service.Get(IndexPatternKey)
	assert.NoError(err)
	assert.Equal("calls_2024", value)

	all := service.All()
	assert.Equal([]Setting{{Key: IndexPatternKey, Value: "calls_2024", Default: "customer_churn_model", UserValue: true}}, all)

	assert.NoError(service.Set(IndexPatternKey, ""))
	value, err = service.Get(IndexPatternKey)
	assert.NoError(err)
	assert.Equal("customer_churn_model", value)
}

func TestUnknownSetting(t *testing.T) {
	assert := require.New(t)
	service := newTestService(t, config.IndexResolutionSettingFirst)

	_, err := service.Get("search:unknown")
	assert.True(errors.Is(err, ErrUnknownSetting))
	assert.True(errors.Is(service.Set("search:unknown", "x"), ErrUnknownSetting))
}

var resolveTestCases = []struct {
	name     string
	policy   string
	existing []string
	expected Resolution
}{
	{
		name:     "Setting first, setting exists",
		policy:   config.IndexResolutionSettingFirst,
		existing: []string{"customer_churn_model", "churn_predictions"},
		expected: Resolution{Index: "customer_churn_model", Source: SourceSetting},
	},
	{
		name:     "Setting first, setting missing",
		policy:   config.IndexResolutionSettingFirst,
		existing: []string{"churn_predictions"},
		expected: Resolution{Index: "churn_predictions", Source: SourcePlatform},
	},
	{
		name:     "Setting first, nothing exists",
		policy:   config.IndexResolutionSettingFirst,
		expected: Resolution{Index: "churn_predictions", Source: SourcePlatform},
	},
	{
		name:     "Platform first, platform exists",
		policy:   config.IndexResolutionPlatformFirst,
		existing: []string{"customer_churn_model", "churn_predictions"},
		expected: Resolution{Index: "churn_predictions", Source: SourcePlatform},
	},
	{
		name:     "Platform first, platform missing",
		policy:   config.IndexResolutionPlatformFirst,
		existing: []string{"customer_churn_model"},
		expected: Resolution{Index: "customer_churn_model", Source: SourceSetting},
	},
}

func TestResolveDefaultIndex(t *testing.T) {
	for _, testCase := range resolveTestCases {
		t.Run(testCase.name, func(t *testing.T) {
			service := newTestService(t, testCase.policy)
			require.Equal(t, testCase.expected, service.ResolveDefaultIndex(existing(testCase.existing...)))
		})
	}
}
