package salesforce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	gosf "github.com/k-capehart/go-salesforce/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestSFClient creates an sfClient backed by an httptest server.
func newTestSFClient(t *testing.T, handler http.Handler) (Client, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)

	sf, err := gosf.Init(gosf.Creds{
		AccessToken: "test-token",
		Domain:      ts.URL,
	},
		gosf.WithValidateAuthentication(false),
		gosf.WithRoundTripper(http.DefaultTransport),
	)
	require.NoError(t, err)
	require.NotNil(t, sf)

	return NewClient(sf), ts
}

func TestSFClient_Query(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/query")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"totalSize": 1,
			"done":      true,
			"records": []map[string]any{
				{
					"attributes": map[string]any{"type": "Account"},
					"Id":         "001xx",
					"Name":       "Acme Corp",
					"Website":    "acme.com",
				},
			},
		})
	})

	client, ts := newTestSFClient(t, handler)
	defer ts.Close()

	var accounts []Account
	err := client.Query(context.Background(), "SELECT Id, Name FROM Account", &accounts)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "001xx", accounts[0].ID)
	assert.Equal(t, "Acme Corp", accounts[0].Name)
}

func TestSFClient_Query_Error(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"message": "invalid SOQL", "errorCode": "MALFORMED_QUERY"},
		})
	})

	client, ts := newTestSFClient(t, handler)
	defer ts.Close()

	var accounts []Account
	err := client.Query(context.Background(), "INVALID SOQL", &accounts)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sf: query")
}

func TestSFClient_UpdateOne(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	client, ts := newTestSFClient(t, handler)
	defer ts.Close()

	err := client.UpdateOne(context.Background(), "Account", "001xx", map[string]any{
		"Posts_Per_Month__c": 3.2,
	})
	require.NoError(t, err)
}

func TestSFClient_UpdateOne_Error(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"message": "invalid field", "errorCode": "INVALID_FIELD"},
		})
	})

	client, ts := newTestSFClient(t, handler)
	defer ts.Close()

	err := client.UpdateOne(context.Background(), "Account", "001xx", map[string]any{
		"BadField": "value",
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sf: update")
}
