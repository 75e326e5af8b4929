package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fatali-fataliyev/wallet_tracker/internal/config"
	"github.com/fatali-fataliyev/wallet_tracker/internal/notify"
	"github.com/fatali-fataliyev/wallet_tracker/internal/storage"
	"github.com/stretchr/testify/require"
)

func TestOpenStorage(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		cfg      config.Config
		wantType string
		wantErr  bool
	}{
		{
			name:     "Success - memory",
			cfg:      config.Config{StorageDriver: config.DriverMemory},
			wantType: storage.TypeMemory,
		},
		{
			name:     "Success - sqlite file",
			cfg:      config.Config{StorageDriver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "data", "wallet.db")},
			wantType: storage.TypeSQLite,
		},
		{
			name:    "Fail - unknown driver",
			cfg:     config.Config{StorageDriver: "postgres"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, closeStorage, err := openStorage(ctx, &tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer closeStorage()
			require.Equal(t, tt.wantType, s.GetStorageType())
		})
	}
}

func TestOpenNotifierDefaultsToLog(t *testing.T) {
	n, closeNotifier, err := openNotifier(&config.Config{})
	require.NoError(t, err)
	defer closeNotifier()
	require.IsType(t, &notify.LogNotifier{}, n)
}
