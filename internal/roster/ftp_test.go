package roster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFTPURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantHost string
		wantPath string
		wantErr  bool
	}{
		{
			name:     "standard ftp url",
			url:      "ftp://ftp.example.com/pub/roster.csv",
			wantHost: "ftp.example.com:21",
			wantPath: "/pub/roster.csv",
		},
		{
			name:     "ftp url with port",
			url:      "ftp://ftp.example.com:2121/roster.csv",
			wantHost: "ftp.example.com:2121",
			wantPath: "/roster.csv",
		},
		{
			name:    "http scheme rejected",
			url:     "http://example.com/roster.csv",
			wantErr: true,
		},
		{
			name:    "empty path",
			url:     "ftp://ftp.example.com",
			wantErr: true,
		},
		{
			name:    "invalid url",
			url:     "://bad",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, path, err := parseFTPURL(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPath, path)
		})
	}
}

func TestFTPOpen_BadURL(t *testing.T) {
	_, err := ftpOpen(context.Background(), "ftp://host-without-path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty path")
}

func TestImportCSV_FTPConnectionRefused(t *testing.T) {
	rec := &importRecorder{}
	// Port 1 is never listening; the dial fails fast.
	_, err := ImportCSV(context.Background(), rec, "ftp://127.0.0.1:1/roster.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ftp dial")
}
