package agentconfig

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPathAllowed(t *testing.T) {
	assert.True(t, IsPathAllowed("model"))
	assert.True(t, IsPathAllowed("gateway.port"))
	assert.False(t, IsPathAllowed("channels.telegram.botToken"))
	assert.False(t, IsPathAllowed("gateway"))
	assert.False(t, IsPathAllowed("gateway.port.extra"))
	assert.False(t, IsPathAllowed(""))
}

func TestValidateValueNumbers(t *testing.T) {
	assert.False(t, ValidateValue("gateway.port", 70000).OK)
	assert.True(t, ValidateValue("gateway.port", 8080).OK)
	assert.True(t, ValidateValue("gateway.port", 65535.0).OK)
	assert.True(t, ValidateValue("gateway.port", json.Number("1")).OK)
	assert.False(t, ValidateValue("gateway.port", 0).OK)
	assert.False(t, ValidateValue("gateway.port", "8080").OK)
	assert.False(t, ValidateValue("gateway.port", math.NaN()).OK)
}

func TestValidateValueStringsAndBooleans(t *testing.T) {
	assert.True(t, ValidateValue("model", "anthropic/claude-opus-4-6").OK)
	assert.False(t, ValidateValue("model", 42).OK)
	assert.True(t, ValidateValue("gateway.mode", "local").OK)

	res := ValidateValue("gateway.mode", "cloud")
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "local, remote")

	assert.True(t, ValidateValue("browser.enabled", false).OK)
	assert.False(t, ValidateValue("browser.enabled", "true").OK)
	assert.False(t, ValidateValue("browser.enabled", 1).OK)
	assert.False(t, ValidateValue("unknown.path", true).OK)
}

func TestAffectsGateway(t *testing.T) {
	assert.True(t, AffectsGateway("gateway"))
	assert.True(t, AffectsGateway("gateway.port"))
	assert.False(t, AffectsGateway("gateways.port"))
	assert.False(t, AffectsGateway("model"))
}

func TestAllowlistIsSorted(t *testing.T) {
	entries := Allowlist()
	for i := 1; i < len(entries); i++ {
		assert.Less(t, entries[i-1].Path, entries[i].Path)
	}
}
