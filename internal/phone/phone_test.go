package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"9876543210":        "+919876543210",
		"+1 (555) 123-4567": "+15551234567",
		"919876543210":      "+919876543210",
		" 98765-43210 ":     "+919876543210",
		"+91 98765 43210":   "+919876543210",
		"(020) 7183 8750":   "+9102071838750",
		"":                  "",
		"98765\r43210":      "+919876543210",
		"98765\v43210":      "+919876543210",
		"98765\u00a043210":  "+919876543210",
		" \r\n ":            "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "input %q", in)
	}
}

func TestNormalize_IsIdempotent(t *testing.T) {
	for _, in := range []string{"9876543210", "+1 (555) 123-4567", "919876543210"} {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once))
	}
}

func TestRegion(t *testing.T) {
	assert.Equal(t, "IN", Region("+919876543210"))
	assert.Equal(t, "GB", Region("+442071838750"))
	assert.Equal(t, "", Region("9876543210"))
	assert.Equal(t, "", Region("+"))
}
