package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-cli/internal/model"
)

func parseRunFlags(t *testing.T, args ...string) (*cobra.Command, runFlags) {
	t.Helper()
	var o runFlags
	c := &cobra.Command{Use: "run"}
	bindRunFlags(c, &o)
	require.NoError(t, c.ParseFlags(args))
	return c, o
}

func TestFilterFromFlags_Defaults(t *testing.T) {
	c, o := parseRunFlags(t)

	f, err := filterFromFlags(c, o)
	require.NoError(t, err)

	def := model.DefaultFilter()
	assert.Equal(t, *def.RevenueMin, *f.RevenueMin)
	assert.Equal(t, *def.RevenueMax, *f.RevenueMax)
	assert.Equal(t, 10, f.Cap)
	assert.Equal(t, model.RevenueServer, f.Mode())
	assert.Empty(t, f.Region)
}

func TestFilterFromFlags_AllFlags(t *testing.T) {
	c, o := parseRunFlags(t,
		"--ca-min", "2.5", "--ca-max", "20",
		"--region", "11", "--sector", "62.01z", "--form", "sas",
		"--brackets", "21,22",
		"--age-min", "10",
		"--director-age-min", "55", "--director-age-max", "70",
		"--limit", "40", "--revenue-mode", "post",
	)

	f, err := filterFromFlags(c, o)
	require.NoError(t, err)

	assert.Equal(t, int64(2_500_000), *f.RevenueMin)
	assert.Equal(t, int64(20_000_000), *f.RevenueMax)
	assert.Equal(t, "11", f.Region)
	assert.Equal(t, "62.01Z", f.Sector)
	assert.Equal(t, "SAS", f.LegalForm)
	assert.Equal(t, []string{"21", "22"}, f.EmployeeBrackets)
	assert.Equal(t, 10, f.MinCompanyAge)
	assert.Equal(t, 55, f.DirectorAgeMin)
	assert.Equal(t, 70, f.DirectorAgeMax)
	assert.Equal(t, 40, f.Cap)
	assert.Equal(t, model.RevenuePost, f.Mode())
}

func TestFilterFromFlags_ZeroClearsRevenueBound(t *testing.T) {
	c, o := parseRunFlags(t, "--ca-min", "0")

	f, err := filterFromFlags(c, o)
	require.NoError(t, err)
	assert.Nil(t, f.RevenueMin)
	require.NotNil(t, f.RevenueMax)
}

func TestFilterFromFlags_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"min above max", []string{"--ca-min", "30", "--ca-max", "10"}},
		{"unknown region", []string{"--region", "99"}},
		{"bad sector", []string{"--sector", "6201"}},
		{"unknown form", []string{"--form", "LLC"}},
		{"bad revenue mode", []string{"--revenue-mode", "later"}},
		{"director window inverted", []string{"--director-age-min", "70", "--director-age-max", "50"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, o := parseRunFlags(t, tt.args...)
			_, err := filterFromFlags(c, o)
			assert.Error(t, err)
		})
	}
}

func TestEuros(t *testing.T) {
	assert.Nil(t, euros(0))
	assert.Nil(t, euros(-1))
	assert.Equal(t, int64(5_000_000), *euros(5))
	assert.Equal(t, int64(1_230_000), *euros(1.23))
}
