package config

import (
	"testing"

	"github.com/fatflowers/clinicbilling/pkg/types"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:      EnvProd,
		Database: DBConfig{Driver: DBDriverPostgres},
		Auth:     AuthConfig{JWTSecret: "secret"},
		MercadoPago: MercadoPagoConfig{
			WebhookSecret: "whsec",
		},
		Plans: PlansConfig{
			Monthly:          PlanPrice{Amount: 49.9, Frequency: 1, FrequencyType: "months"},
			Yearly:           PlanPrice{Amount: 499, Frequency: 1, FrequencyType: "years"},
			MonthlyMaxAmount: 49.9,
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid prod", mutate: func(c *Config) {}},
		{name: "prod without webhook secret", mutate: func(c *Config) { c.MercadoPago.WebhookSecret = "" }, wantErr: "webhook_secret"},
		{name: "prod with unsigned webhooks", mutate: func(c *Config) { c.MercadoPago.AllowUnsignedWebhooks = true }, wantErr: "allow_unsigned_webhooks"},
		{name: "prod with memory store", mutate: func(c *Config) { c.Database.Driver = DBDriverMemory }, wantErr: "memory"},
		{name: "missing jwt secret", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, wantErr: "jwt_secret"},
		{name: "dev may skip secrets", mutate: func(c *Config) {
			c.Env = EnvDev
			c.Auth.JWTSecret = ""
			c.MercadoPago.WebhookSecret = ""
			c.MercadoPago.AllowUnsignedWebhooks = true
		}},
		{name: "padded webhook secret", mutate: func(c *Config) { c.MercadoPago.WebhookSecret = "whsec\n" }, wantErr: "whitespace"},
		{name: "padded webhook secret in dev", mutate: func(c *Config) {
			c.Env = EnvDev
			c.MercadoPago.WebhookSecret = " whsec"
		}, wantErr: "whitespace"},
		{name: "threshold required", mutate: func(c *Config) { c.Plans.MonthlyMaxAmount = 0 }, wantErr: "monthly_max_amount"},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "sqlite" }, wantErr: "unknown database.driver"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := validConfig()
			tc.mutate(c)
			err := c.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestPlanPrice(t *testing.T) {
	c := validConfig()

	p, err := c.PlanPrice(types.PlanMonthly)
	require.NoError(t, err)
	require.Equal(t, 49.9, p.Amount)

	p, err = c.PlanPrice(types.PlanYearly)
	require.NoError(t, err)
	require.Equal(t, "years", p.FrequencyType)

	_, err = c.PlanPrice(types.PlanPremium)
	require.Error(t, err)
}
