package tlsconfig_test

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/influxdata/rundeckaction/tlsconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	c, err := tlsconfig.Create("", "", "", true)
	require.NoError(t, err)
	assert.True(t, c.InsecureSkipVerify)
	assert.Nil(t, c.RootCAs)
	assert.Empty(t, c.Certificates)
}

func TestCreate_Errors(t *testing.T) {
	dir := t.TempDir()
	notPEM := filepath.Join(dir, "ca.pem")
	require.NoError(t, ioutil.WriteFile(notPEM, []byte("not a certificate"), 0600))

	testCases := []struct {
		name          string
		ca, cert, key string
		expErr        string
	}{
		{
			name:   "cert without key",
			cert:   "client.pem",
			expErr: "must provide both key and cert files: only cert file provided",
		},
		{
			name:   "key without cert",
			key:    "client.key",
			expErr: "must provide both key and cert files: only key file provided",
		},
		{
			name:   "missing CA",
			ca:     filepath.Join(dir, "missing.pem"),
			expErr: "could not load TLS CA",
		},
		{
			name:   "CA without certificates",
			ca:     notPEM,
			expErr: "no certificates found in TLS CA",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tlsconfig.Create(tc.ca, tc.cert, tc.key, false)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.expErr)
		})
	}
}
