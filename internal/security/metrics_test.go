package security

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMetricsLabels(t *testing.T) {
	labels, err := ParseMetricsLabels("")
	require.NoError(t, err)
	require.Nil(t, labels)

	t.Setenv("SOCIAL_TEST_ZONE", "eu-1")
	labels, err = ParseMetricsLabels("service=social-service,zone=${SOCIAL_TEST_ZONE}")
	require.NoError(t, err)
	require.Equal(t, "social-service", labels["service"])
	require.Equal(t, "eu-1", labels["zone"])

	_, err = ParseMetricsLabels("novalue")
	require.Error(t, err)

	_, err = ParseMetricsLabels("9bad=x")
	require.Error(t, err)
}
