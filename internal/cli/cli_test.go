package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/growth/internal/auth"
	"example.com/growth/internal/routine"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommandHasSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"fingerprint", "predict", "plan", "catalog", "token"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		require.Equal(t, name, sub.Name())
	}
}

func TestRootCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd.PersistentFlags().Lookup("verbose"))
	require.NotNil(t, cmd.PersistentFlags().ShorthandLookup("v"))
	require.Equal(t, "text", cmd.PersistentFlags().Lookup("format").DefValue)
	require.NotNil(t, cmd.PersistentFlags().Lookup("catalog"))

	plan, _, err := cmd.Find([]string{"plan"})
	require.NoError(t, err)
	require.Equal(t, "active", plan.Flags().Lookup("mode").DefValue)
}

func TestInvalidFormatIsRejected(t *testing.T) {
	_, err := execute(t, "catalog", "--format", "xml")
	require.ErrorContains(t, err, `invalid format "xml"`)
}

func TestParseProfile(t *testing.T) {
	profile, measurements, err := LoadProfile(filepath.Join("testdata", "profile.yaml"))
	require.NoError(t, err)
	require.Equal(t, "demo", profile.UserID)
	require.Equal(t, "female", profile.Gender)
	require.Equal(t, 2011, profile.DateOfBirth.Year())
	require.Len(t, measurements, 2)
	require.Equal(t, "m2", measurements[1].ID)
	require.Equal(t, 152, measurements[1].HeightCm)

	cases := map[string]string{
		"unknown key":       "user_id: a\nshoe: 1\n",
		"bad date":          "date_of_birth: 03/02/2011\nmother_height_cm: 1\nfather_height_cm: 1\ndream_height_cm: 1\n",
		"missing heights":   "date_of_birth: \"2011-02-03\"\n",
		"empty measurement": "date_of_birth: \"2011-02-03\"\nmother_height_cm: 160\nfather_height_cm: 170\ndream_height_cm: 170\nmeasurements:\n  - height_cm: 150\n",
	}
	for name, doc := range cases {
		_, _, err := ParseProfile([]byte(doc))
		require.Error(t, err, name)
	}

	profile, _, err = ParseProfile([]byte("date_of_birth: \"2011-02-03\"\nmother_height_cm: 160\nfather_height_cm: 170\ndream_height_cm: 170\n"))
	require.NoError(t, err)
	require.Equal(t, "local", profile.UserID)
}

func TestPlanWithoutInferenceMatchesFallbackGolden(t *testing.T) {
	out, err := execute(t, "plan", filepath.Join("testdata", "profile.yaml"))
	require.NoError(t, err)

	golden, err := os.ReadFile(filepath.Join("..", "routine", "testdata", "golden", "fallback_active.golden"))
	require.NoError(t, err)
	require.Equal(t, string(golden), out)
}

func TestPlanJSON(t *testing.T) {
	out, err := execute(t, "plan", filepath.Join("testdata", "profile.yaml"), "--mode", "recovery", "--format", "json")
	require.NoError(t, err)

	var plan planOutput
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	require.Equal(t, "recovery", plan.Status)
	require.Equal(t, "fallback", plan.Source)
	require.Len(t, plan.Days, routine.DayCount)

	_, err = execute(t, "plan", filepath.Join("testdata", "profile.yaml"), "--mode", "rest")
	require.ErrorContains(t, err, "invalid routine mode")
}

func TestPredictJSON(t *testing.T) {
	out, err := execute(t, "predict", filepath.Join("testdata", "profile.yaml"), "--format", "json")
	require.NoError(t, err)

	var rec predictionOutput
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	require.Equal(t, "fallback", rec.Source)
	require.GreaterOrEqual(t, rec.PredictedHeightCm, 152)
	require.NotEmpty(t, rec.Fingerprint)
}

func TestFingerprintIsStable(t *testing.T) {
	first, err := execute(t, "fingerprint", filepath.Join("testdata", "profile.yaml"), "--format", "json")
	require.NoError(t, err)
	second, err := execute(t, "fingerprint", filepath.Join("testdata", "profile.yaml"), "--format", "json")
	require.NoError(t, err)
	require.Equal(t, first, second)

	recovery, err := execute(t, "fingerprint", filepath.Join("testdata", "profile.yaml"), "--format", "json", "--mode", "recovery")
	require.NoError(t, err)

	var a, b map[string]string
	require.NoError(t, json.Unmarshal([]byte(first), &a))
	require.NoError(t, json.Unmarshal([]byte(recovery), &b))
	require.Equal(t, a["prediction"], b["prediction"])
	require.NotEqual(t, a["routine"], b["routine"])
}

func TestCatalogListsEveryCategory(t *testing.T) {
	out, err := execute(t, "catalog")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "catalog "+routine.DefaultCatalog().Version()))
	for _, category := range routine.Categories {
		require.Contains(t, out, string(category)+" ")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("JWT_ISSUER", "growth.identity")

	out, err := execute(t, "token", "--subject", "user-9", "--scope", auth.ScopeGrowthRead)
	require.NoError(t, err)

	claims, err := auth.ParseClaims(strings.TrimSpace(out), auth.Config{Secret: "cli-secret", Issuer: "growth.identity"})
	require.NoError(t, err)
	require.Equal(t, "user-9", claims.Subject)
	require.True(t, claims.HasScope(auth.ScopeGrowthRead))
	require.False(t, claims.HasScope(auth.ScopeGrowthWrite))

	_, err = execute(t, "token")
	require.ErrorContains(t, err, "--subject is required")
}
