package wayforpay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "flk3409refn54t54t*FNJRET"

func TestSignVerifyRoundTrip(t *testing.T) {
	fields := []string{"test_merch_n1", "t.me/BotName", "SUB_42_1000", "1000", "100", "UAH", "Subscription 1 Месяц", "1", "100"}

	sig := Sign(testSecret, fields...)
	require.NotEmpty(t, sig)
	assert.True(t, Verify(testSecret, sig, fields...))
}

func TestVerifyRejectsMutatedField(t *testing.T) {
	fields := []string{"SUB_42_1000", "accept", "1700000000"}
	sig := Sign(testSecret, fields...)

	for i := range fields {
		mutated := make([]string, len(fields))
		copy(mutated, fields)
		mutated[i] = mutated[i] + "x"
		assert.False(t, Verify(testSecret, sig, mutated...), "field %d", i)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	fields := []string{"SUB_42_1000", "accept", "1700000000"}
	sig := Sign(testSecret, fields...)
	assert.False(t, Verify("other-secret", sig, fields...))
}

func TestVerifyRejectsReorderedFields(t *testing.T) {
	sig := Sign(testSecret, "a", "b", "c")
	assert.False(t, Verify(testSecret, sig, "b", "a", "c"))
}

func TestOrderReferenceRoundTrip(t *testing.T) {
	for _, uid := range []int64{1, 42, 367335715, 1003690130785} {
		ref := NewOrderReference(uid)
		got, err := UserIDFromOrderReference(ref)
		require.NoError(t, err)
		assert.Equal(t, uid, got)
	}
}

func TestOrderReferencesUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ref := NewOrderReference(42)
		assert.False(t, seen[ref], "duplicate reference %s", ref)
		seen[ref] = true
	}
}

func TestUserIDFromOrderReferenceMalformed(t *testing.T) {
	for _, ref := range []string{"", "SUB", "SUB_", "SUB_abc_1000", "plainstring"} {
		_, err := UserIDFromOrderReference(ref)
		assert.Error(t, err, "ref %q", ref)
	}
}
