package opstasks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

func TestLoadCatalog(t *testing.T) {
	ctx := context.Background()
	c, err := LoadCatalog("testdata/service_plans.yaml")
	require.NoError(t, err)

	cfg, err := c.ServiceConfig(ctx, "villa-azure")
	require.NoError(t, err)
	require.Equal(t, "premium", cfg.Plan.Code)
	require.Len(t, cfg.Plan.Tasks, 4)
	require.True(t, cfg.Flags["linen_service"])
	require.Equal(t, -6*time.Hour, cfg.Plan.Tasks[0].Offset)
	require.Equal(t, reservations.AnchorCheckOut, cfg.Plan.Tasks[3].Anchor)

	cfg, err = c.ServiceConfig(ctx, "loft-12")
	require.NoError(t, err)
	require.Equal(t, "standard", cfg.Plan.Code)
	require.True(t, cfg.Flags["in_person_checkin"])

	cfg, err = c.ServiceConfig(ctx, "unknown")
	require.NoError(t, err)
	require.Equal(t, "standard", cfg.Plan.Code)
	require.Empty(t, cfg.Flags)
}

func TestParseCatalog_Errors(t *testing.T) {
	cases := map[string]string{
		"no plans":        "default_plan: x\n",
		"missing default": "default_plan: gold\nplans:\n  standard:\n    tasks: []\n",
		"bad anchor":      "plans:\n  standard:\n    tasks:\n      - kind: cleaning\n        anchor: noon\n",
		"bad offset":      "plans:\n  standard:\n    tasks:\n      - kind: cleaning\n        offset: soon\n",
		"unknown plan":    "plans:\n  standard:\n    tasks: []\nproperties:\n  p1:\n    plan: gold\n",
		"not yaml":        "plans: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestDefaultCatalog(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)
	cfg, err := c.ServiceConfig(context.Background(), "P1")
	require.NoError(t, err)
	require.Equal(t, "P1", cfg.PropertyID)
	require.Len(t, cfg.Plan.Tasks, 2)
}
