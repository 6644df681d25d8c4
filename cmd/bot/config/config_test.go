package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Jacobbrewer1/ticketbot/pkg/logging"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	EnvConfigFile, EnvBotToken, EnvApplicationId, EnvPublicChannelId, EnvSupportChannelId, EnvLogChannelId,
	EnvAdminRoleIds, EnvEscalationRoleId, EnvStoreDriver, EnvDbPath, EnvMongoUri, EnvMonitoringPort,
	EnvStalePublicDays, EnvStalePrivateDays, EnvReminderHours, EnvAutoPurgeDays, EnvMaxTitleLen,
	EnvTicketCooldownSeconds, EnvDuplicateSimilarity, EnvDmOnClose, EnvAllowAnonPublic, EnvInProgressEmoji,
}

func setEnv(t *testing.T, env map[string]string) {
	t.Helper()

	for _, k := range allKeys {
		t.Setenv(k, "")
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func TestLoad(t *testing.T) {
	l, err := logging.CommonLogger(logging.NewConfig(`tests`))
	require.NoError(t, err)

	setEnv(t, map[string]string{
		EnvBotToken:              "token",
		EnvApplicationId:         "app",
		EnvSupportChannelId:      "support",
		EnvAdminRoleIds:          " staff, tier2 ,,",
		EnvTicketCooldownSeconds: "30",
		EnvDmOnClose:             "true",
		EnvDuplicateSimilarity:   "0.9",
	})

	c, err := Load(l)
	require.NoError(t, err)

	want := Default()
	want.BotToken = "token"
	want.ApplicationId = "app"
	want.SupportChannelId = "support"
	want.AdminRoleIds = []string{"staff", "tier2"}
	want.TicketCooldownSeconds = 30
	want.DmOnClose = true
	want.DuplicateSimilarity = 0.9
	require.Equal(t, want, c)
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	l, err := logging.CommonLogger(logging.NewConfig(`tests`))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
bot_token: from-file
application_id: app
public_channel_id: public
admin_role_ids: [staff]
store_driver: mongo
mongo_uri: mongodb://localhost:27017
stale_public_days: 3
allow_anon_public: true
`), 0o600))

	setEnv(t, map[string]string{
		EnvConfigFile:      path,
		EnvBotToken:        "from-env",
		EnvStalePublicDays: "4",
	})

	c, err := Load(l)
	require.NoError(t, err)
	require.Equal(t, "from-env", c.BotToken)
	require.Equal(t, "public", c.PublicChannelId)
	require.Equal(t, []string{"staff"}, c.AdminRoleIds)
	require.Equal(t, "mongo", c.StoreDriver)
	require.Equal(t, 4, c.StalePublicDays)
	require.Equal(t, 7, c.StalePrivateDays)
	require.True(t, c.AllowAnonPublic)
}

func TestLoad_Errors(t *testing.T) {
	l, err := logging.CommonLogger(logging.NewConfig(`tests`))
	require.NoError(t, err)

	base := map[string]string{
		EnvBotToken:        "token",
		EnvApplicationId:   "app",
		EnvPublicChannelId: "public",
	}

	tests := []struct {
		name    string
		env     map[string]string
		missing []string
		invalid string
	}{
		{
			name:    "nothing set",
			env:     map[string]string{},
			missing: []string{EnvBotToken, EnvApplicationId, EnvPublicChannelId + " or " + EnvSupportChannelId},
		},
		{
			name:    "mongo without uri",
			env:     map[string]string{EnvStoreDriver: "mongo"},
			missing: []string{EnvMongoUri},
		},
		{
			name:    "unknown driver",
			env:     map[string]string{EnvStoreDriver: "postgres"},
			invalid: EnvStoreDriver,
		},
		{
			name:    "bad number",
			env:     map[string]string{EnvAutoPurgeDays: "soon"},
			invalid: EnvAutoPurgeDays,
		},
		{
			name:    "bad bool",
			env:     map[string]string{EnvDmOnClose: "sometimes"},
			invalid: EnvDmOnClose,
		},
		{
			name:    "similarity out of range",
			env:     map[string]string{EnvDuplicateSimilarity: "1.2"},
			invalid: EnvDuplicateSimilarity,
		},
		{
			name:    "negative cooldown",
			env:     map[string]string{EnvTicketCooldownSeconds: "-5"},
			invalid: EnvTicketCooldownSeconds,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := make(map[string]string)
			if tt.missing == nil || len(tt.env) > 0 {
				for k, v := range base {
					env[k] = v
				}
			}
			for k, v := range tt.env {
				env[k] = v
			}
			setEnv(t, env)

			_, err := Load(l)
			if tt.missing != nil {
				var me *MissingError
				require.ErrorAs(t, err, &me)
				require.Equal(t, tt.missing, me.Keys)
				return
			}

			var ie *InvalidError
			require.ErrorAs(t, err, &ie)
			require.Equal(t, tt.invalid, ie.Key)
		})
	}
}
