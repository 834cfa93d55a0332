package checkdigit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidIBAN(t *testing.T) {
	assert.True(t, ValidIBAN("DE89370400440532013000"))
	assert.True(t, ValidIBAN("GB82 WEST 1234 5698 7654 32"))
	assert.True(t, ValidIBAN("gb82west12345698765432"))
	assert.False(t, ValidIBAN("DE89370400440532013001"))
	assert.False(t, ValidIBAN("12345"))
	assert.False(t, ValidIBAN(""))
}

func TestCreditorReference(t *testing.T) {
	// ISO 11649 worked example
	assert.Equal(t, "RF18539007547034", CreditorReference("539007547034"))

	ref := CreditorReference("inv-2024/001")
	assert.Equal(t, "RF", ref[:2])
	assert.Equal(t, "INV2024001", ref[4:])
	rem, ok := Mod97(ref[4:] + ref[:4])
	assert.True(t, ok)
	assert.Equal(t, 1, rem)

	assert.Equal(t, "", CreditorReference("---"))
	assert.Len(t, CreditorReference("ABCDEFGHIJKLMNOPQRSTUVWXYZ"), 25)
}
