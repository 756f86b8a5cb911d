package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFetchFriendlyNameStripsVendorPrefixAndUppercases(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<Envelope><Body><Relationship><Host><ThisDevice><FriendlyName>Nintendo n3dssmb</FriendlyName></ThisDevice></Host></Relationship></Body></Envelope>`)
	}))
	defer srv.Close()

	name, err := fetchFriendlyName(context.Background(), srv.URL, time.Second)
	require.NoError(t, err)
	require.Equal(t, "N3DSSMB", name)
}

func TestFetchFriendlyNameErrorsOnNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := fetchFriendlyName(context.Background(), srv.URL, time.Second)
	require.Error(t, err)
}

func TestFetchFriendlyNameErrorsOnMissingElement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<Envelope><Body></Body></Envelope>`)
	}))
	defer srv.Close()

	_, err := fetchFriendlyName(context.Background(), srv.URL, time.Second)
	require.Error(t, err)
}

func TestGetMetadataEnvelopeAddressesXAddr(t *testing.T) {
	env := string(getMetadataEnvelope("http://10.0.0.5:5357/svc"))
	require.Contains(t, env, "http://10.0.0.5:5357/svc")
	require.Contains(t, env, getMetadataAction)
}
