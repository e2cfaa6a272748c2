package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDefaultsFillsZeroValues(t *testing.T) {
	c := Config{InterfaceName: "eth0", ExecutorName: "main"}.WithDefaults()
	assert.Equal(t, DefaultMaxInflightAecpMessages, c.MaxInflightAecpMessages)
	assert.Equal(t, DefaultAutomaticDiscoveryDelay, c.AutomaticDiscoveryDelay)
}

func TestWithDefaultsPreservesExplicitValues(t *testing.T) {
	c := Config{
		InterfaceName:           "eth0",
		ExecutorName:            "main",
		MaxInflightAecpMessages: 4,
		AutomaticDiscoveryDelay: 5 * time.Second,
	}.WithDefaults()
	assert.Equal(t, 4, c.MaxInflightAecpMessages)
	assert.Equal(t, 5*time.Second, c.AutomaticDiscoveryDelay)
}

func TestValidateRequiresInterfaceAndExecutorName(t *testing.T) {
	err := Config{}.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInterfaceNameRequired)
	assert.ErrorIs(t, err, ErrExecutorNameRequired)
}

func TestValidateRejectsNegativeFields(t *testing.T) {
	err := Config{
		InterfaceName:           "eth0",
		ExecutorName:            "main",
		MaxInflightAecpMessages: -1,
		AutomaticDiscoveryDelay: -time.Second,
	}.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidMaxInflightAecpMessages)
	assert.ErrorIs(t, err, ErrNegativeAutomaticDiscoveryDelay)
}

func TestValidateAcceptsMinimalConfig(t *testing.T) {
	err := Config{InterfaceName: "eth0", ExecutorName: "main"}.Validate()
	assert.NoError(t, err)
}
