package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceKey(t *testing.T) {
	key := instanceKey("/services/", &ServiceInstance{Name: "storefront", Host: "10.0.0.1", Port: 50060})
	assert.Equal(t, "/services/storefront/10.0.0.1:50060", key)
}

func TestParseInstance(t *testing.T) {
	inst, err := parseInstance("card-gateway", "10.0.0.2:8443")
	require.NoError(t, err)
	assert.Equal(t, &ServiceInstance{Name: "card-gateway", Host: "10.0.0.2", Port: 8443}, inst)

	_, err = parseInstance("card-gateway", "10.0.0.2")
	assert.Error(t, err)

	_, err = parseInstance("card-gateway", "10.0.0.2:https")
	assert.Error(t, err)
}

func TestEndpointURL(t *testing.T) {
	inst := &ServiceInstance{Host: "wallet.internal", Port: 9000}
	assert.Equal(t, "https://wallet.internal:9000", endpointURL("https://api.wallet.example", inst))
	assert.Equal(t, "http://wallet.internal:9000", endpointURL("", inst))
}
