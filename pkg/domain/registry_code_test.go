package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRegistryCode(t *testing.T) {
	t.Run("accepts caregiver membership code", func(t *testing.T) {
		code, err := ParseRegistryCode("NIC-MEM-5502")
		require.NoError(t, err)
		assert.Equal(t, RegistryCode("NIC-MEM-5502"), code)
		assert.Equal(t, KindCaregiver, code.Kind())
	})

	t.Run("accepts facility code", func(t *testing.T) {
		code, err := ParseRegistryCode("NIC-FAC-0417")
		require.NoError(t, err)
		assert.Equal(t, KindFacility, code.Kind())
	})

	t.Run("normalizes case and whitespace", func(t *testing.T) {
		code, err := ParseRegistryCode("  nic-mem-5502 ")
		require.NoError(t, err)
		assert.Equal(t, RegistryCode("NIC-MEM-5502"), code)
	})

	t.Run("rejects malformed codes", func(t *testing.T) {
		cases := []string{"", "NIC-MEM-", "NIC-XYZ-5502", "MEM-5502", "NIC-MEM-55", "NIC-MEM-5502-1"}
		for _, c := range cases {
			_, err := ParseRegistryCode(c)
			require.Error(t, err, "expected error for %q", c)
		}
	})
}

func TestNewRegistryCode(t *testing.T) {
	t.Run("generated codes parse back", func(t *testing.T) {
		for _, kind := range []RegistrantKind{KindCaregiver, KindFacility} {
			code, err := NewRegistryCode(kind)
			require.NoError(t, err)
			parsed, err := ParseRegistryCode(code.String())
			require.NoError(t, err)
			assert.Equal(t, kind, parsed.Kind())
		}
	})

	t.Run("caregiver codes carry MEM segment", func(t *testing.T) {
		code, err := NewRegistryCode(KindCaregiver)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(code.String(), "NIC-MEM-"))
	})
}
