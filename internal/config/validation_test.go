package config_test

import (
	"errors"
	"testing"

	"coursemind/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	valid := config.Config{
		DBHost:       "localhost",
		DBUser:       "user",
		DBName:       "db",
		ChunkSize:    1000,
		ChunkOverlap: 200,
	}

	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr bool
		errIs   error
	}{
		{
			name:    "Valid Config",
			mutate:  func(c *config.Config) {},
			wantErr: false,
		},
		{
			name:    "Missing DBHost",
			mutate:  func(c *config.Config) { c.DBHost = "" },
			wantErr: true,
			errIs:   config.ErrMissingRequired,
		},
		{
			name:    "Missing DBUser",
			mutate:  func(c *config.Config) { c.DBUser = "" },
			wantErr: true,
			errIs:   config.ErrMissingRequired,
		},
		{
			name:    "Missing DBName",
			mutate:  func(c *config.Config) { c.DBName = "" },
			wantErr: true,
			errIs:   config.ErrMissingRequired,
		},
		{
			name:    "Zero Overlap",
			mutate:  func(c *config.Config) { c.ChunkOverlap = 0 },
			wantErr: true,
			errIs:   config.ErrMissingRequired,
		},
		{
			name:    "Overlap Equal To Chunk Size",
			mutate:  func(c *config.Config) { c.ChunkOverlap = c.ChunkSize },
			wantErr: true,
			errIs:   config.ErrMissingRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				if tt.errIs != nil {
					assert.True(t, errors.Is(err, tt.errIs))
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
