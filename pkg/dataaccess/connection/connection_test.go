package connection

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMongoDB_RequiresURI(t *testing.T) {
	_, err := (&MongoDB{}).Connect(context.Background())
	require.ErrorIs(t, err, ErrNoURI)
}

func TestSQLite_Connect(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "file", path: filepath.Join(t.TempDir(), "tickets.db")},
		{name: "memory", path: ":memory:"},
		{name: "empty path", path: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := (&SQLite{Path: tt.path}).Connect(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() {
				_ = db.Close()
			})
			require.NoError(t, db.PingContext(context.Background()))
		})
	}
}
